package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/application/introspection"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/infrastructure/cli/helpers"
)

// scopeOptions selects between this process and a fleet connection.
type scopeOptions struct {
	connection string
	local      bool
	asJSON     bool
}

func (o *scopeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.connection, "connection", "", "Connection id to aggregate (default from config)")
	cmd.Flags().BoolVar(&o.local, "local", false, "Only this process, no fleet aggregation")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "Print the structured result as JSON")
}

func (o scopeOptions) validate() error {
	if o.local && o.connection != "" {
		return fmt.Errorf(ErrLocalWithConnection)
	}
	return nil
}

func (o scopeOptions) connectionID(container *app.Container) string {
	if o.connection != "" {
		return o.connection
	}
	return container.Config.GetDefaultConnection()
}

// NewCallsCommand creates the calls command
func NewCallsCommand(container *app.Container) *cobra.Command {
	var (
		scope scopeOptions
		query = domain.DefaultHistoryQuery()
	)

	cmd := &cobra.Command{
		Use:   "calls",
		Short: "List recent tool calls, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scope.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := container.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}

			report, err := inspectCalls(ctx, cmd, container, scope, query)
			if err != nil {
				return err
			}
			if scope.asJSON {
				return helpers.WriteJSON(cmd.OutOrStdout(), report)
			}
			helpers.RenderToolCalls(cmd.OutOrStdout(), report, time.Now())
			return nil
		},
	}

	scope.bind(cmd)
	cmd.Flags().IntVar(&query.MaxResults, "max-results", domain.DefaultMaxResults, "Maximum calls to return")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "Skip this many calls; negative keeps the N most recent")
	cmd.Flags().StringVar(&query.ToolName, "tool", "", "Only calls to this tool")
	cmd.Flags().StringVar(&query.Since, "since", "", "Only calls at or after this RFC3339 time or epoch")
	return cmd
}

func inspectCalls(ctx context.Context, cmd *cobra.Command, container *app.Container, scope scopeOptions, q domain.HistoryQuery) (introspection.ToolCallsReport, error) {
	if scope.local {
		return container.Introspection.RecentToolCalls(q)
	}
	spinner := helpers.NewSpinner(cmd.ErrOrStderr(), "Querying fleet...")
	spinner.Start()
	defer spinner.Stop()
	return container.Introspection.InspectToolCalls(ctx, scope.connectionID(container), q)
}
