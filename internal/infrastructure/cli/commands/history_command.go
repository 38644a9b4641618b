package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/infrastructure/cli/helpers"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the durable call journal",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistoryExportCommand(container),
		newHistoryPathCommand(container),
		newHistoryStatsCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest journal records, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listHistoryEntries(cmd.Context(), cmd.OutOrStdout(), container, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Max entries to show")
	return cmd
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(container *app.Container) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Export journal records to a JSONL file (\"-\" for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportHistory(cmd.Context(), cmd.OutOrStdout(), container, args[0], limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.MaxEntries, "Max entries to export")
	return cmd
}

// newHistoryPathCommand creates the 'history path' subcommand
func newHistoryPathCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the journal location",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Journal == nil {
				return fmt.Errorf(ErrJournalUnavailable)
			}
			fmt.Fprintln(cmd.OutOrStdout(), container.Journal.Path())
			return nil
		},
	}
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rate and top tools from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistoryStats(cmd.Context(), cmd.OutOrStdout(), container)
		},
	}
}

func replayJournal(ctx context.Context, container *app.Container, limit int) ([]domain.Record, error) {
	if container.Journal == nil {
		return nil, fmt.Errorf(ErrJournalUnavailable)
	}
	records, err := container.Journal.Replay(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", container.Journal.Path(), err)
	}
	return records, nil
}

// listHistoryEntries lists recent journal records
func listHistoryEntries(ctx context.Context, out io.Writer, container *app.Container, limit int) error {
	records, err := replayJournal(ctx, container, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}
	helpers.RenderRecords(out, records)
	return nil
}

// exportHistory writes journal records as JSON lines
func exportHistory(ctx context.Context, stdout io.Writer, container *app.Container, path string, limit int) error {
	records, err := replayJournal(ctx, container, limit)
	if err != nil {
		return err
	}

	out := stdout
	if path != "-" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.FilePermissions)
		if err != nil {
			return fmt.Errorf("failed to export history to %s: %w", path, err)
		}
		defer file.Close()
		out = file
	}

	enc := json.NewEncoder(out)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to export history to %s: %w", path, err)
		}
	}
	if path != "-" {
		fmt.Fprintf(stdout, "Exported %s records to %s\n", humanize.Comma(int64(len(records))), path)
	}
	return nil
}

// showHistoryStats displays success rate and top tools
func showHistoryStats(ctx context.Context, out io.Writer, container *app.Container) error {
	records, err := replayJournal(ctx, container, MaxHistoryAnalysisRecords)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return nil
	}

	stats := helpers.AnalyzeRecords(records)
	displayHistoryStatistics(out, stats, records)
	return nil
}

// displayHistoryStatistics displays formatted journal statistics
func displayHistoryStatistics(out io.Writer, stats helpers.JournalStatistics, records []domain.Record) {
	first, last := records[0].Timestamp, records[len(records)-1].Timestamp
	fmt.Fprintf(out, "Entries analyzed: %s\nSuccess rate: %.1f%%\nSpan: %s to %s\n",
		humanize.Comma(int64(stats.Entries)),
		helpers.CalculateSuccessRate(stats.Successful, stats.Entries),
		humanize.Time(first.Time),
		humanize.Time(last.Time))

	fmt.Fprintln(out, "Top tools:")
	for _, stat := range helpers.CalculateTopTools(stats, DefaultTopTools) {
		fmt.Fprintf(out, "  %s (%d calls, %d failed)\n", stat.Tool, stat.Count, stat.Failures)
	}
}
