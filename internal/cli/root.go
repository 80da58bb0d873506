// Package cli defines the command line interface of the simulator.
package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iot-traffic-sim/internal/app"
	"iot-traffic-sim/internal/config"
	"iot-traffic-sim/internal/log"
)

// NewRootCommand builds the command tree. Settings are read from the
// environment first and may be overridden by flags.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:   "iot-traffic-sim",
		Short: "Home network IoT traffic simulator",
		Long: `Simulates the network traffic of a household of IoT devices.

Without a subcommand the HTTP API and WebSocket feed are served until the
process receives SIGINT or SIGTERM.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Configure(cfg.LogLevel, cfg.LogFormat)
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(newCatalogCommand(), newSimulateCommand(cfg))
	return root
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCommand().Execute()
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting IoT traffic simulator", "addr", cfg.ListenAddr, "store", cfg.StoreBackend)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

