package domain

import (
	"encoding/json"
	"sort"
)

// ToolCallRecord is the external shape of a Record in query results.
type ToolCallRecord struct {
	ToolName   string          `json:"tool_name"`
	Timestamp  string          `json:"timestamp"`
	DurationMS int64           `json:"duration_ms"`
	ArgsJSON   json.RawMessage `json:"args_json,omitempty"`
	OutputJSON json.RawMessage `json:"output_json,omitempty"`
}

// ToToolCallRecord maps the canonical Record onto the query output schema.
func ToToolCallRecord(r Record) ToolCallRecord {
	return ToolCallRecord{
		ToolName:   r.ToolName,
		Timestamp:  r.Timestamp.String(),
		DurationMS: r.DurationMS,
		ArgsJSON:   r.Arguments,
		OutputJSON: r.Output,
	}
}

// ToolCallsResult is the structured answer to a history query.
type ToolCallsResult struct {
	Success              bool             `json:"success"`
	Count                int              `json:"count"`
	TotalEntriesInMemory int              `json:"total_entries_in_memory"`
	Calls                []ToolCallRecord `json:"calls"`
	FilterToolName       *string          `json:"filter_tool_name"`
	FilterSince          *string          `json:"filter_since"`
	Offset               int              `json:"offset"`
	MaxResults           int              `json:"max_results"`
}

// NewToolCallsResult builds the output schema from a page and the query that
// produced it.
func NewToolCallsResult(q HistoryQuery, page HistoryPage) ToolCallsResult {
	calls := make([]ToolCallRecord, 0, len(page.Calls))
	for _, rec := range page.Calls {
		calls = append(calls, ToToolCallRecord(rec))
	}
	return ToolCallsResult{
		Success:              true,
		Count:                len(calls),
		TotalEntriesInMemory: page.TotalEntriesInMemory,
		Calls:                calls,
		FilterToolName:       optional(q.ToolName),
		FilterSince:          optional(q.Since),
		Offset:               q.Offset,
		MaxResults:           q.MaxResults,
	}
}

// ToolUsageStats is one row of the per-tool breakdown.
type ToolUsageStats struct {
	ToolName        string `json:"tool_name"`
	CallCount       uint64 `json:"call_count"`
	TotalDurationMS int64  `json:"total_duration_ms"`
	AvgDurationMS   int64  `json:"avg_duration_ms"`
}

// UsageResult is the structured answer to a usage request.
type UsageResult struct {
	Success           bool             `json:"success"`
	TotalCalls        uint64           `json:"total_calls"`
	ToolsUsed         int              `json:"tools_used"`
	ToolUsage         []ToolUsageStats `json:"tool_usage"`
	SessionDurationMS int64            `json:"session_duration_ms"`
	SuccessRate       float64          `json:"success_rate"`
	SuccessfulCalls   uint64           `json:"successful_calls"`
	FailedCalls       uint64           `json:"failed_calls"`
}

// NewUsageResult builds the output schema from counters. The session
// duration is passed in because a fleet uses the longest member session
// rather than the merged window.
func NewUsageResult(c UsageCounters, sessionDurationMS int64) UsageResult {
	usage := ToolUsageFromCounters(c)
	return UsageResult{
		Success:           true,
		TotalCalls:        c.TotalCalls,
		ToolsUsed:         len(usage),
		ToolUsage:         usage,
		SessionDurationMS: sessionDurationMS,
		SuccessRate:       c.SuccessRate(),
		SuccessfulCalls:   c.SuccessfulCalls,
		FailedCalls:       c.FailedCalls,
	}
}

// ToolUsageFromCounters returns the per-tool rows sorted by call count
// (descending) then tool name (ascending).
func ToolUsageFromCounters(c UsageCounters) []ToolUsageStats {
	stats := make([]ToolUsageStats, 0, len(c.ToolCounts))
	for name, count := range c.ToolCounts {
		total := c.ToolDurationsMS[name]
		var avg int64
		if count > 0 {
			avg = total / int64(count)
		}
		stats = append(stats, ToolUsageStats{
			ToolName:        name,
			CallCount:       count,
			TotalDurationMS: total,
			AvgDurationMS:   avg,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CallCount == stats[j].CallCount {
			return stats[i].ToolName < stats[j].ToolName
		}
		return stats[i].CallCount > stats[j].CallCount
	})
	return stats
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
