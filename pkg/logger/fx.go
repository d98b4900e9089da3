package logger

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the logger for fx dependency injection.
// It expects a *Config in the graph; pkg/config supplies one from the loaded file.
var Module = fx.Module("logger",
	fx.Provide(ProvideLoggerFromConfig),
)

// ProvideLoggerFromConfig provides a logger with configuration.
func ProvideLoggerFromConfig(cfg *Config, lc fx.Lifecycle) (*Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Logger initialized",
				zap.String("level", string(cfg.Level)),
				zap.String("output", cfg.OutputPath),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down logger")
			// stdout cannot be fsynced on most platforms; ignore the sync error
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}
