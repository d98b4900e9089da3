package commands

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Module provides the commands system.
var Module = fx.Module("commands",
	fx.Provide(NewRegistry),
	fx.Provide(provideRateLimiter),
	fx.Provide(NewDispatcher),
	fx.Invoke(registerBuiltins),
)

// registerBuiltins registers built-in commands on startup.
func registerBuiltins(registry *Registry, cfg *config.Config, log *logger.Logger) error {
	if err := RegisterBuiltinCommands(registry, cfg.CommandPrefix); err != nil {
		log.Error("Failed to register builtin commands", zap.Error(err))
		return err
	}

	log.Info("Registered builtin commands", zap.Int("count", len(registry.List())))
	return nil
}

func provideRateLimiter(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) *RateLimiter {
	limiter := NewRateLimiter(log, cfg.Dispatch.RateLimit)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return limiter.Start()
		},
		OnStop: func(ctx context.Context) error {
			limiter.Stop()
			return nil
		},
	})

	return limiter
}
