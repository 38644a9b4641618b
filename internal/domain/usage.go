package domain

// UsageCounters are the aggregate statistics of one process (or of a fleet
// once merged). Counts only grow over a process lifetime.
type UsageCounters struct {
	TotalCalls      uint64            `json:"total_tool_calls"`
	SuccessfulCalls uint64            `json:"successful_calls"`
	FailedCalls     uint64            `json:"failed_calls"`
	ToolCounts      map[string]uint64 `json:"tool_counts"`
	ToolDurationsMS map[string]int64  `json:"tool_durations_ms,omitempty"`
	FirstUsed       Timestamp         `json:"first_used"`
	LastUsed        Timestamp         `json:"last_used"`
}

// NewUsageCounters returns empty counters with initialised maps.
func NewUsageCounters() UsageCounters {
	return UsageCounters{
		ToolCounts:      make(map[string]uint64),
		ToolDurationsMS: make(map[string]int64),
	}
}

// SuccessRate is the percentage of successful calls, 0 when nothing ran.
func (u UsageCounters) SuccessRate() float64 {
	return SuccessRate(u.SuccessfulCalls, u.TotalCalls)
}

// SessionDurationMS is last_used - first_used, never negative.
func (u UsageCounters) SessionDurationMS() int64 {
	if u.FirstUsed.IsZero() || u.LastUsed.IsZero() {
		return 0
	}
	d := u.LastUsed.Millis() - u.FirstUsed.Millis()
	if d < 0 {
		return 0
	}
	return d
}

// Clone deep-copies the counter maps.
func (u UsageCounters) Clone() UsageCounters {
	out := u
	out.ToolCounts = make(map[string]uint64, len(u.ToolCounts))
	for k, v := range u.ToolCounts {
		out.ToolCounts[k] = v
	}
	out.ToolDurationsMS = make(map[string]int64, len(u.ToolDurationsMS))
	for k, v := range u.ToolDurationsMS {
		out.ToolDurationsMS[k] = v
	}
	return out
}

// Merge folds other into u: totals and per-tool maps are summed, the
// first/last used window widens to cover both.
func (u *UsageCounters) Merge(other UsageCounters) {
	if u.ToolCounts == nil {
		u.ToolCounts = make(map[string]uint64)
	}
	if u.ToolDurationsMS == nil {
		u.ToolDurationsMS = make(map[string]int64)
	}
	u.TotalCalls += other.TotalCalls
	u.SuccessfulCalls += other.SuccessfulCalls
	u.FailedCalls += other.FailedCalls
	for name, count := range other.ToolCounts {
		u.ToolCounts[name] += count
	}
	for name, ms := range other.ToolDurationsMS {
		u.ToolDurationsMS[name] += ms
	}
	if !other.FirstUsed.IsZero() && (u.FirstUsed.IsZero() || other.FirstUsed.Before(u.FirstUsed.Time)) {
		u.FirstUsed = other.FirstUsed
	}
	if other.LastUsed.After(u.LastUsed.Time) {
		u.LastUsed = other.LastUsed
	}
}

// SuccessRate calculates the success rate as a percentage. Zero calls yield
// 0 rather than 100: no data is not a perfect record.
func SuccessRate(successful, total uint64) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(successful) / float64(total) * 100.0
}
