package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/infrastructure/cli/helpers"
)

// NewUsageCommand creates the usage command
func NewUsageCommand(container *app.Container) *cobra.Command {
	var (
		scope   scopeOptions
		servers bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show tool usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := scope.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := container.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			out := cmd.OutOrStdout()

			if scope.local {
				report, err := container.Introspection.UsageStats()
				if err != nil {
					return err
				}
				if scope.asJSON {
					return helpers.WriteJSON(out, report)
				}
				helpers.RenderUsage(out, report)
				return nil
			}

			connectionID := scope.connectionID(container)
			spinner := helpers.NewSpinner(cmd.ErrOrStderr(), "Querying fleet...")
			spinner.Start()
			report, err := container.Introspection.InspectUsageStats(ctx, connectionID)
			spinner.Stop()
			if err != nil {
				return err
			}
			if scope.asJSON {
				return helpers.WriteJSON(out, report)
			}
			helpers.RenderUsage(out, report)
			if servers {
				fleet, err := container.Aggregator.Usage(ctx, connectionID)
				if err != nil {
					return err
				}
				helpers.RenderFleetUsage(out, fleet)
			}
			return nil
		},
	}

	scope.bind(cmd)
	cmd.Flags().BoolVar(&servers, "servers", false, "List per-server availability")
	return cmd
}
