package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"cachebuster/pkg/channels"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

func runForegroundCmd(cmd *cobra.Command, args []string) {
	runForeground()
}

// runForeground runs the bot until SIGINT or SIGTERM.
func runForeground() {
	options := append(appOptions(configPath),
		fx.Invoke(func(lc fx.Lifecycle, log *logger.Logger, cm *channels.Manager, cfg *config.Config) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					log.Info("Bot started",
						zap.String("mode", "foreground"),
						zap.String("command_prefix", cfg.CommandPrefix),
						zap.Any("channels", cm.Status()))
					log.Info("Press Ctrl+C to stop")
					return nil
				},
			})
		}),
	)

	// Run blocks until a shutdown signal and exits on startup failure.
	fx.New(options...).Run()
}
