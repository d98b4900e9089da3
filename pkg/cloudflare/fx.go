package cloudflare

import (
	"go.uber.org/fx"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Module provides the purge client as a Purger.
var Module = fx.Module("cloudflare",
	fx.Provide(
		fx.Annotate(
			func(log *logger.Logger, cfg *config.Config) *Client {
				return NewFromConfig(log, cfg)
			},
			fx.As(new(Purger)),
		),
	),
)
