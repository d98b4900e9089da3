package bus

import (
	"context"

	"go.uber.org/fx"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Module is the fx module for the message bus.
var Module = fx.Module("bus",
	fx.Provide(NewMessageBus),
)

// NewMessageBus creates a new message bus for fx.
func NewMessageBus(
	lc fx.Lifecycle,
	log *logger.Logger,
	cfg *config.Config,
) (Bus, error) {
	bus, err := NewBus(log, &Config{
		Type:          BusType(cfg.Bus.Type),
		BufferSize:    cfg.Bus.BufferSize,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Bus.Prefix,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return bus.Start()
		},
		OnStop: func(ctx context.Context) error {
			return bus.Stop()
		},
	})

	return bus, nil
}
