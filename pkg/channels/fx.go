package channels

import (
	"context"

	"go.uber.org/fx"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/channels/discord"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Module is the fx module for channels.
var Module = fx.Module("channels",
	fx.Provide(NewChannelManager),
	fx.Invoke(RegisterChannels),
)

// NewChannelManager creates a new channel manager for fx.
func NewChannelManager(
	lc fx.Lifecycle,
	log *logger.Logger,
	messageBus bus.Bus,
) *Manager {
	manager := NewManager(log, messageBus)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop()
		},
	})

	return manager
}

// RegisterChannels registers the Discord transport with the manager.
func RegisterChannels(
	manager *Manager,
	log *logger.Logger,
	messageBus bus.Bus,
	cfg *config.Config,
) error {
	discordChannel, err := discord.NewChannel(log, cfg.BotToken, messageBus)
	if err != nil {
		return err
	}
	return manager.Register(discordChannel)
}
