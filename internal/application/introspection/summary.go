package introspection

import (
	"fmt"

	"github.com/doeshing/calltrail/internal/domain"
)

// HistorySummary renders the two-line summary of a history result.
func HistorySummary(r domain.ToolCallsResult) string {
	if len(r.Calls) == 0 {
		return "Tool Call History\nCalls: 0 | No calls matching criteria"
	}
	return fmt.Sprintf("Tool Call History\nCalls: %d | Latest: %s", len(r.Calls), r.Calls[0].ToolName)
}

// UsageSummary renders the two-line summary of a usage result.
func UsageSummary(r domain.UsageResult) string {
	return fmt.Sprintf("Usage Statistics\nTotal: %d | Success: %d | Failed: %d | Rate: %.1f%%",
		r.TotalCalls, r.SuccessfulCalls, r.FailedCalls, r.SuccessRate)
}
