package config

import (
	"cachebuster/pkg/logger"
)

// ToLoggerConfig converts LoggerConfig to logger.Config.
func (lc *LoggerConfig) ToLoggerConfig() *logger.Config {
	level := logger.LevelInfo
	switch lc.Level {
	case "debug":
		level = logger.LevelDebug
	case "warn":
		level = logger.LevelWarn
	case "error":
		level = logger.LevelError
	case "fatal":
		level = logger.LevelFatal
	}

	cfg := logger.DefaultConfig()
	cfg.Level = level
	cfg.OutputPath = lc.OutputPath
	cfg.MaxSize = lc.MaxSize
	cfg.MaxBackups = lc.MaxBackups
	cfg.MaxAge = lc.MaxAge
	cfg.Compress = lc.Compress
	cfg.Development = lc.Development
	return cfg
}
