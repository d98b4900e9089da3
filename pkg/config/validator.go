package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cachebuster/pkg/logger"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates cfg with a fresh Validator.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validatePolicy(cfg)
	v.validateLogger(&cfg.Logger)
	v.validateCloudflare(&cfg.Cloudflare)
	v.validateDispatch(&cfg.Dispatch)
	v.validateBus(&cfg.Bus, &cfg.Redis)
	v.validateStatus(&cfg.Status)

	if len(v.errors) > 0 {
		return v.errors
	}

	return nil
}

// validatePolicy validates the required top-level fields.
func (v *Validator) validatePolicy(cfg *Config) {
	v.validateSnowflakes("allowed_role_ids", cfg.AllowedRoleIDs)
	v.validateSnowflakes("allowed_guild_ids", cfg.AllowedGuildIDs)

	v.requireString("cf_service_token", cfg.CFServiceToken)
	v.requireString("zone_identifier", cfg.ZoneIdentifier)
	v.requireString("bot_token", cfg.BotToken)
	v.requireString("command_prefix", cfg.CommandPrefix)

	if v.requireString("url_prefix", cfg.URLPrefix) {
		if u, err := url.Parse(cfg.URLPrefix); err != nil || u.Scheme == "" || u.Host == "" {
			v.addError("url_prefix", "must be an absolute URL such as https://cdn.example.com/")
		}
	}

	if strings.ContainsAny(cfg.CommandPrefix, " \t\n") {
		v.addError("command_prefix", "must not contain whitespace")
	}
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	if !logger.ValidLevel(cfg.Level) {
		v.addError("logger.level", "must be one of: debug, info, warn, error, fatal")
	}
	if cfg.MaxSize < 0 || cfg.MaxBackups < 0 || cfg.MaxAge < 0 {
		v.addError("logger", "rotation limits must be non-negative")
	}
}

func (v *Validator) validateCloudflare(cfg *CloudflareConfig) {
	if cfg.APIBase != "" {
		if u, err := url.Parse(cfg.APIBase); err != nil || u.Scheme == "" || u.Host == "" {
			v.addError("cloudflare.api_base", "must be an absolute URL")
		}
	}
	if cfg.TimeoutSeconds < 0 {
		v.addError("cloudflare.timeout_seconds", "must be non-negative")
	}
}

func (v *Validator) validateDispatch(cfg *DispatchConfig) {
	if cfg.Workers < 1 {
		v.addError("dispatch.workers", "must be at least 1")
	}
	v.validateSnowflakes("dispatch.owner_ids", cfg.OwnerIDs)
	v.validateSnowflakes("dispatch.blocked_user_ids", cfg.BlockedUserIDs)
	v.validateSnowflakes("dispatch.blocked_guild_ids", cfg.BlockedGuildIDs)
	v.validateSnowflakes("dispatch.blocked_channel_ids", cfg.BlockedChannelIDs)

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.PerMinute < 1 {
			v.addError("dispatch.rate_limit.per_minute", "must be at least 1 when rate limiting is enabled")
		}
		if cfg.RateLimit.Burst < 1 {
			v.addError("dispatch.rate_limit.burst", "must be at least 1 when rate limiting is enabled")
		}
		if cfg.RateLimit.IdleTTLMinutes < 1 {
			v.addError("dispatch.rate_limit.idle_ttl_minutes", "must be at least 1 when rate limiting is enabled")
		}
	}
}

func (v *Validator) validateBus(cfg *BusConfig, redis *RedisConfig) {
	switch cfg.Type {
	case "", "local":
	case "redis":
		if strings.TrimSpace(redis.Addr) == "" {
			v.addError("redis.addr", "redis address is required for the redis bus")
		}
	default:
		v.addError("bus.type", "must be one of: local, redis")
	}
	if cfg.BufferSize < 0 {
		v.addError("bus.buffer_size", "must be non-negative")
	}
}

func (v *Validator) validateStatus(cfg *StatusConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("status.port", "must be between 1 and 65535")
	}
}

// validateSnowflakes checks that every entry is a Discord snowflake in string form.
func (v *Validator) validateSnowflakes(field string, ids []string) {
	for i, id := range ids {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			v.addError(fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("%q is not a Discord ID", id))
		}
	}
}

func (v *Validator) requireString(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.addError(field, "is required")
		return false
	}
	return true
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}
