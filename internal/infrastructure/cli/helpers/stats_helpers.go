package helpers

import (
	"sort"

	"github.com/doeshing/calltrail/internal/domain"
)

// ToolStatistic represents how often a tool appears in the journal
type ToolStatistic struct {
	Tool     string
	Count    int
	Failures int
}

// JournalStatistics summarises a slice of journal records
type JournalStatistics struct {
	Entries    int
	Successful int
	Tools      map[string]*ToolStatistic
}

// AnalyzeRecords counts successes and per-tool frequency
func AnalyzeRecords(records []domain.Record) JournalStatistics {
	stats := JournalStatistics{
		Entries: len(records),
		Tools:   make(map[string]*ToolStatistic),
	}
	for _, rec := range records {
		row, ok := stats.Tools[rec.ToolName]
		if !ok {
			row = &ToolStatistic{Tool: rec.ToolName}
			stats.Tools[rec.ToolName] = row
		}
		row.Count++
		if rec.Success {
			stats.Successful++
		} else {
			row.Failures++
		}
	}
	return stats
}

// CalculateTopTools returns the top N most frequently called tools
// If limit is 0 or negative, returns all tools
func CalculateTopTools(stats JournalStatistics, limit int) []ToolStatistic {
	rows := make([]ToolStatistic, 0, len(stats.Tools))
	for _, row := range stats.Tools {
		rows = append(rows, *row)
	}
	sortStatisticsByFrequency(rows)

	if shouldLimitResults(limit, len(rows)) {
		return rows[:limit]
	}
	return rows
}

// sortStatisticsByFrequency sorts statistics by count (descending) then by tool name (ascending)
func sortStatisticsByFrequency(stats []ToolStatistic) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Tool < stats[j].Tool
		}
		return stats[i].Count > stats[j].Count
	})
}

// shouldLimitResults checks if we should limit the results based on the limit and actual length
func shouldLimitResults(limit int, actualLength int) bool {
	return limit > 0 && actualLength > limit
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, executedCount int) float64 {
	return domain.SuccessRate(uint64(successfulCount), uint64(executedCount))
}
