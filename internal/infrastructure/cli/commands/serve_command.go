package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
)

// NewServeCommand creates the serve command
func NewServeCommand(container *app.Container) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve history, usage and fleet snapshots over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := container.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer container.Close()

			addr := listen
			if addr == "" {
				addr = container.Config.GetListenAddr()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "calltrail %s listening on %s\n", container.Config.InstanceID, addr)
			return container.NewServer().ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	return cmd
}
