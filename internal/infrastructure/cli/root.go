package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/infrastructure/cli/commands"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd wires the cobra root command. The returned close func flushes
// any journal writes still queued.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, func() error, error) {
	container, err := app.BuildContainer(ctx, app.Options{
		ConfigPath: opts.ConfigPath,
		Verbose:    opts.Verbose,
	})
	if err != nil {
		return nil, nil, err
	}

	root := &cobra.Command{
		Use:           "calltrail",
		Short:         "calltrail - tool call history and usage across a fleet",
		Long:          "calltrail records tool calls, keeps a bounded history with a durable journal, and aggregates usage across processes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	// Parsed early by main; declared here so cobra accepts it and lists it in help.
	root.PersistentFlags().String("config", opts.ConfigPath, "Config file (default ~/.calltrail/config.yaml)")

	root.AddCommand(
		commands.NewServeCommand(container),
		commands.NewRecordCommand(container),
		commands.NewCallsCommand(container),
		commands.NewUsageCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewConfigCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewVersionCommand(),
	)
	return root, container.Close, nil
}
