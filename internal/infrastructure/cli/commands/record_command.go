package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/domain"
	fleetinfra "github.com/doeshing/calltrail/internal/infrastructure/fleet"
)

// recordOptions holds the flags of the record command
type recordOptions struct {
	tool       string
	durationMS int64
	args       string
	output     string
	failed     bool
	server     string
	timeout    time.Duration
}

// NewRecordCommand creates the record command
func NewRecordCommand(container *app.Container) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a completed tool call",
		Long: "Record a completed tool call in the local journal, or on a running " +
			"`calltrail serve` process when --server is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.tool == "" {
				return fmt.Errorf(ErrToolRequired)
			}
			inv, err := opts.invocation()
			if err != nil {
				return err
			}

			var rec domain.Record
			if opts.server != "" {
				rec, err = recordRemote(cmd.Context(), opts, inv)
			} else {
				rec, err = recordLocal(cmd.Context(), container, inv)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s (seq %d) at %s\n",
				rec.ToolName, rec.Seq, rec.Timestamp.Format(TimestampFormat))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.tool, "tool", "", "Tool name")
	cmd.Flags().Int64Var(&opts.durationMS, "duration-ms", 0, "Call duration in milliseconds")
	cmd.Flags().StringVar(&opts.args, "args", "", "Arguments as JSON")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output as JSON (ignored for failed calls)")
	cmd.Flags().BoolVar(&opts.failed, "failed", false, "Mark the call as failed")
	cmd.Flags().StringVar(&opts.server, "server", "", "Base URL of a running calltrail serve process")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", DefaultRecordTimeout, "Timeout for --server requests")
	return cmd
}

func (o recordOptions) invocation() (domain.Invocation, error) {
	inv := domain.Invocation{
		ToolName:   o.tool,
		DurationMS: o.durationMS,
		Success:    !o.failed,
	}
	if o.args != "" {
		inv.Arguments = json.RawMessage(o.args)
	}
	if o.output != "" {
		inv.Output = json.RawMessage(o.output)
	}
	if err := inv.Validate(); err != nil {
		return domain.Invocation{}, err
	}
	return inv, nil
}

// recordLocal appends to this process's store and waits for the journal
// write before returning.
func recordLocal(ctx context.Context, container *app.Container, inv domain.Invocation) (domain.Record, error) {
	if err := container.Initialize(ctx); err != nil {
		return domain.Record{}, fmt.Errorf("failed to initialize: %w", err)
	}
	rec, err := container.Introspection.Record(ctx, inv)
	if err != nil {
		return domain.Record{}, err
	}
	if err := container.Close(); err != nil {
		return domain.Record{}, fmt.Errorf("failed to flush journal: %w", err)
	}
	return rec, nil
}

func recordRemote(ctx context.Context, opts recordOptions, inv domain.Invocation) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	client := fleetinfra.NewHTTPClient(&http.Client{Timeout: opts.timeout})
	return client.PostInvocation(ctx, opts.server, inv)
}
