package gateway

import (
	"context"
	"time"

	"go.uber.org/fx"

	"cachebuster/pkg/channels"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Module provides the gateway and its status server for fx dependency injection.
var Module = fx.Module("gateway",
	fx.Provide(New),
	fx.Provide(provideChannelStatus),
	fx.Provide(NewServer),
	fx.Invoke(RegisterPurgeCommand),
	fx.Invoke(registerLifecycle),
)

func provideChannelStatus(m *channels.Manager) ChannelStatus {
	return m
}

// registerLifecycle runs after the channel manager is built, so on shutdown
// the pool drains before Discord disconnects.
func registerLifecycle(lc fx.Lifecycle, gw *Gateway, s *Server, cfg *config.Config, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return gw.Start()
		},
		OnStop: func(ctx context.Context) error {
			return gw.Stop()
		},
	})

	if !cfg.Status.Enabled {
		log.Info("Status server disabled")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Stop(shutdownCtx)
		},
	})
}
