// Package config provides configuration management for cachebuster.
// It uses Viper for loading a JSON (or YAML/TOML) file with support for:
// - Environment variable overrides (CACHEBUSTER_*)
// - Default values for every optional section
// - Strict decoding and validation of the required policy fields
//
// A Config is built once at startup, frozen, and then shared read-only.
package config

// Config represents the complete cachebuster configuration.
type Config struct {
	// AllowedRoleIDs are the Discord role IDs whose members may run gated commands.
	AllowedRoleIDs []string `mapstructure:"allowed_role_ids" json:"allowed_role_ids" yaml:"allowed_role_ids"`
	// AllowedGuildIDs are the Discord server IDs in which gated commands may run.
	AllowedGuildIDs []string `mapstructure:"allowed_guild_ids" json:"allowed_guild_ids" yaml:"allowed_guild_ids"`
	// CFServiceToken is the Cloudflare user service key.
	CFServiceToken string `mapstructure:"cf_service_token" json:"cf_service_token" yaml:"cf_service_token"`
	// ZoneIdentifier is the Cloudflare zone whose cache is purged.
	ZoneIdentifier string `mapstructure:"zone_identifier" json:"zone_identifier" yaml:"zone_identifier"`
	// BotToken is the Discord bot token.
	BotToken string `mapstructure:"bot_token" json:"bot_token" yaml:"bot_token"`
	// URLPrefix is the required prefix of every purged URL.
	URLPrefix string `mapstructure:"url_prefix" json:"url_prefix" yaml:"url_prefix"`
	// CommandPrefix marks a chat message as a command invocation.
	CommandPrefix string `mapstructure:"command_prefix" json:"command_prefix" yaml:"command_prefix"`

	Logger     LoggerConfig     `mapstructure:"logger" json:"logger" yaml:"logger"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare" json:"cloudflare" yaml:"cloudflare"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" json:"dispatch" yaml:"dispatch"`
	Bus        BusConfig        `mapstructure:"bus" json:"bus" yaml:"bus"`
	Redis      RedisConfig      `mapstructure:"redis" json:"redis" yaml:"redis"`
	Status     StatusConfig     `mapstructure:"status" json:"status" yaml:"status"`

	roles          idSet
	guilds         idSet
	owners         idSet
	blockedUsers   idSet
	blockedGuilds  idSet
	blockedChannel idSet
	disabled       idSet
}

// LoggerConfig configures pkg/logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level" yaml:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path" yaml:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress" yaml:"compress"`
	Development bool   `mapstructure:"development" json:"development" yaml:"development"`
}

// CloudflareConfig configures the purge API client.
type CloudflareConfig struct {
	APIBase string `mapstructure:"api_base" json:"api_base" yaml:"api_base"`
	// TimeoutSeconds bounds a purge call; 0 leaves it to the HTTP transport.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds" yaml:"timeout_seconds"`
}

// DispatchConfig configures the command framework around the policy checks.
type DispatchConfig struct {
	// Workers is the number of invocations processed concurrently.
	Workers           int             `mapstructure:"workers" json:"workers" yaml:"workers"`
	OwnerIDs          []string        `mapstructure:"owner_ids" json:"owner_ids" yaml:"owner_ids"`
	BlockedUserIDs    []string        `mapstructure:"blocked_user_ids" json:"blocked_user_ids" yaml:"blocked_user_ids"`
	BlockedGuildIDs   []string        `mapstructure:"blocked_guild_ids" json:"blocked_guild_ids" yaml:"blocked_guild_ids"`
	BlockedChannelIDs []string        `mapstructure:"blocked_channel_ids" json:"blocked_channel_ids" yaml:"blocked_channel_ids"`
	DisabledCommands  []string        `mapstructure:"disabled_commands" json:"disabled_commands" yaml:"disabled_commands"`
	RateLimit         RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-user command buckets.
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	PerMinute      int  `mapstructure:"per_minute" json:"per_minute" yaml:"per_minute"`
	Burst          int  `mapstructure:"burst" json:"burst" yaml:"burst"`
	IdleTTLMinutes int  `mapstructure:"idle_ttl_minutes" json:"idle_ttl_minutes" yaml:"idle_ttl_minutes"`
}

// BusConfig selects the message bus backend.
type BusConfig struct {
	Type       string `mapstructure:"type" json:"type" yaml:"type"` // "local" or "redis"
	BufferSize int    `mapstructure:"buffer_size" json:"buffer_size" yaml:"buffer_size"`
	Prefix     string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// RedisConfig is used by the redis bus backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	DB       int    `mapstructure:"db" json:"db" yaml:"db"`
}

// StatusConfig configures the local status HTTP endpoint.
type StatusConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Host    string `mapstructure:"host" json:"host" yaml:"host"`
	Port    int    `mapstructure:"port" json:"port" yaml:"port"`
}

// DefaultConfig returns a Config with every optional section defaulted.
// The required policy fields are left empty.
func DefaultConfig() *Config {
	return &Config{
		AllowedRoleIDs:  []string{},
		AllowedGuildIDs: []string{},
		Logger: LoggerConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Cloudflare: CloudflareConfig{
			APIBase: DefaultCloudflareAPIBase,
		},
		Dispatch: DispatchConfig{
			Workers:           8,
			OwnerIDs:          []string{},
			BlockedUserIDs:    []string{},
			BlockedGuildIDs:   []string{},
			BlockedChannelIDs: []string{},
			DisabledCommands:  []string{},
			RateLimit: RateLimitConfig{
				Enabled:        false,
				PerMinute:      6,
				Burst:          3,
				IdleTTLMinutes: 30,
			},
		},
		Bus: BusConfig{
			Type:       "local",
			BufferSize: 100,
			Prefix:     "cachebuster:bus:",
		},
		Status: StatusConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    18791,
		},
	}
}

// DefaultCloudflareAPIBase is the public Cloudflare v4 API root.
const DefaultCloudflareAPIBase = "https://api.cloudflare.com/client/v4"

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	set := make(idSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s idSet) has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s[id]
	return ok
}

// Freeze builds the lookup sets. It must be called once, before the Config is
// shared; afterwards the Config is read-only and safe for concurrent use.
func (c *Config) Freeze() *Config {
	c.roles = newIDSet(c.AllowedRoleIDs)
	c.guilds = newIDSet(c.AllowedGuildIDs)
	c.owners = newIDSet(c.Dispatch.OwnerIDs)
	c.blockedUsers = newIDSet(c.Dispatch.BlockedUserIDs)
	c.blockedGuilds = newIDSet(c.Dispatch.BlockedGuildIDs)
	c.blockedChannel = newIDSet(c.Dispatch.BlockedChannelIDs)
	c.disabled = newIDSet(c.Dispatch.DisabledCommands)
	return c
}

// IsRoleAllowed reports whether roleID is in allowed_role_ids.
func (c *Config) IsRoleAllowed(roleID string) bool { return c.roles.has(roleID) }

// IsGuildAllowed reports whether guildID is in allowed_guild_ids.
func (c *Config) IsGuildAllowed(guildID string) bool { return c.guilds.has(guildID) }

// IsOwner reports whether userID is a configured bot owner.
func (c *Config) IsOwner(userID string) bool { return c.owners.has(userID) }

// IsUserBlocked reports whether userID is blocklisted.
func (c *Config) IsUserBlocked(userID string) bool { return c.blockedUsers.has(userID) }

// IsGuildBlocked reports whether guildID is blocklisted.
func (c *Config) IsGuildBlocked(guildID string) bool { return c.blockedGuilds.has(guildID) }

// IsChannelBlocked reports whether channelID is blocklisted.
func (c *Config) IsChannelBlocked(channelID string) bool { return c.blockedChannel.has(channelID) }

// IsCommandDisabled reports whether the named command is disabled.
func (c *Config) IsCommandDisabled(name string) bool { return c.disabled.has(name) }

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.CFServiceToken = mask(c.CFServiceToken)
	out.BotToken = mask(c.BotToken)
	out.Redis.Password = mask(c.Redis.Password)
	return out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "********"
}
