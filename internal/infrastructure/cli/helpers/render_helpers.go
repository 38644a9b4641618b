package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/calltrail/internal/application/introspection"
	"github.com/doeshing/calltrail/internal/domain"
)

// maxPreview bounds how much of an argument payload a table row shows.
const maxPreview = 60

// WriteJSON prints v as indented JSON.
func WriteJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderToolCalls prints a history report in a friendly, ASCII-only format.
func RenderToolCalls(out io.Writer, report introspection.ToolCallsReport, now time.Time) {
	fmt.Fprintln(out, report.Summary)
	r := report.Result
	fmt.Fprintf(out, "In memory: %s | Offset: %d | Max: %d\n",
		humanize.Comma(int64(r.TotalEntriesInMemory)), r.Offset, r.MaxResults)
	if len(r.Calls) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, call := range r.Calls {
		fmt.Fprintf(out, "  %-24s %8s  %-16s %s\n",
			call.ToolName,
			formatDuration(call.DurationMS),
			age(call.Timestamp, now),
			preview(call.ArgsJSON))
	}
}

// RenderUsage prints a usage report.
func RenderUsage(out io.Writer, report introspection.UsageReport) {
	fmt.Fprintln(out, report.Summary)
	r := report.Result
	fmt.Fprintf(out, "Tools used: %d | Session: %s\n", r.ToolsUsed, formatDuration(r.SessionDurationMS))
	if len(r.ToolUsage) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-24s %10s %12s %10s\n", "TOOL", "CALLS", "TOTAL", "AVG")
	for _, row := range r.ToolUsage {
		fmt.Fprintf(out, "  %-24s %10s %12s %10s\n",
			row.ToolName,
			humanize.Comma(int64(row.CallCount)),
			formatDuration(row.TotalDurationMS),
			formatDuration(row.AvgDurationMS))
	}
}

// RenderFleetUsage lists per-server availability under a usage report.
func RenderFleetUsage(out io.Writer, fleet domain.FleetUsage) {
	fmt.Fprintf(out, "\nConnection %s: %d/%d servers available\n", fleet.ConnectionID, fleet.AvailableCount(), len(fleet.Servers))
	for _, s := range fleet.Servers {
		if s.Available {
			fmt.Fprintf(out, "  [OK]   %-20s %s calls\n", s.Peer, humanize.Comma(int64(s.Stats.TotalCalls)))
		} else {
			fmt.Fprintf(out, "  [DOWN] %-20s %s\n", s.Peer, s.Error)
		}
	}
}

// RenderRecords prints raw journal records oldest first.
func RenderRecords(out io.Writer, records []domain.Record) {
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		fmt.Fprintf(out, "%s | %-24s | %8s | %-6s | %s\n",
			rec.Timestamp.Format(domain.TimestampFormat),
			rec.ToolName,
			formatDuration(rec.DurationMS),
			status,
			preview(rec.Arguments))
	}
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

func age(raw string, now time.Time) string {
	ts, err := domain.ParseTimestamp(raw)
	if err != nil {
		return raw
	}
	return humanize.RelTime(ts.Time, now, "ago", "from now")
}

func preview(raw json.RawMessage) string {
	s := strings.Join(strings.Fields(string(raw)), " ")
	if len(s) > maxPreview {
		return s[:maxPreview-3] + "..."
	}
	return s
}
