// Package logger provides structured logging with rotation support.
// It uses zap for high-performance structured logging and lumberjack for log rotation.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the log level.
type Level string

const (
	// LevelDebug for debug messages.
	LevelDebug Level = "debug"
	// LevelInfo for informational messages.
	LevelInfo Level = "info"
	// LevelWarn for warning messages.
	LevelWarn Level = "warn"
	// LevelError for error messages.
	LevelError Level = "error"
	// LevelFatal for fatal messages (will call os.Exit(1)).
	LevelFatal Level = "fatal"
)

// Config represents logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error, fatal).
	Level Level

	// OutputPath is the log file path. Empty means stdout only.
	OutputPath string

	// MaxSize is the maximum size in megabytes before rotation (default: 100).
	MaxSize int

	// MaxBackups is the maximum number of old log files to retain (default: 3).
	MaxBackups int

	// MaxAge is the maximum number of days to retain old log files (default: 7).
	MaxAge int

	// Compress determines if rotated log files should be compressed (default: true).
	Compress bool

	// Development enables development mode (more verbose, human-readable).
	Development bool

	// EnableCaller adds caller information (file:line) to logs.
	EnableCaller bool

	// EnableStacktrace adds stacktrace for Error and above.
	EnableStacktrace bool
}

// DefaultConfig returns a default logger configuration.
// The bot usually runs under a supervisor that captures stdout, so no file is written by default.
func DefaultConfig() *Config {
	return &Config{
		Level:            LevelInfo,
		OutputPath:       "",
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           7,
		Compress:         true,
		Development:      false,
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// Logger wraps zap.Logger with additional functionality.
type Logger struct {
	*zap.Logger
	config *Config
	sugar  *zap.SugaredLogger
}

// New creates a new logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleConfig := encoderConfig
	if cfg.Development {
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	var consoleEncoder zapcore.Encoder
	if cfg.Development {
		consoleEncoder = zapcore.NewConsoleEncoder(consoleConfig)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(consoleConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
	}

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}

		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	var options []zap.Option
	if cfg.EnableCaller {
		options = append(options, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Development {
		options = append(options, zap.Development())
	}

	return FromZap(zap.New(zapcore.NewTee(cores...), options...), cfg), nil
}

// FromZap wraps an existing zap logger. Tests use it with zaptest/observer cores.
func FromZap(z *zap.Logger, cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Logger{
		Logger: z,
		config: cfg,
		sugar:  z.Sugar(),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop(), nil)
}

// Sugar returns a sugared logger for easier use.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// WithFields creates a new logger with the given fields.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	return FromZap(l.Logger.With(fields...), l.config)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

// parseLevel converts string level to zapcore.Level.
func parseLevel(level Level) (zapcore.Level, error) {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	case LevelFatal:
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	_, err := parseLevel(Level(level))
	return err == nil
}
