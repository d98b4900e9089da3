package config

import (
	"go.uber.org/fx"

	"cachebuster/pkg/logger"
)

// Module provides configuration for fx dependency injection.
// The config path comes from the Path value supplied by the caller.
var Module = fx.Module("config",
	fx.Provide(ProvideLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
)

// Path is the config file location given on the command line. Empty falls
// back to CACHEBUSTER_CONFIG_FILE and ./config.json.
type Path string

// ProvideLoader provides a configuration loader.
func ProvideLoader() *Loader {
	return NewLoader()
}

// ProvideConfig loads, validates and freezes the configuration.
func ProvideConfig(loader *Loader, path Path) (*Config, error) {
	return loader.Load(string(path))
}

// ProvideLoggerConfig derives the logger settings from the loaded config.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	return cfg.Logger.ToLoggerConfig()
}
