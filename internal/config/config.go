// Package config provides configuration management for xvdrd using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultListenPort         = 34891
	defaultStreamTimeoutSec   = 3
	defaultTimeshiftMaxBytes  = 1 << 30 // 1 GiB
	defaultShutdownTimeout    = 10 * time.Second
	defaultMaxOpenConns       = 10
	defaultMaxIdleConns       = 5
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultChannelCacheMaxLen = 10000
	defaultRingQueueDepth     = 100
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	ACL         ACLConfig         `mapstructure:"acl"`
	Timeshift   TimeshiftConfig   `mapstructure:"timeshift"`
	Channel     ChannelConfig     `mapstructure:"channel"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Preferences PreferencesConfig `mapstructure:"preferences"`
}

// ServerConfig holds the TCP listener configuration.
type ServerConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	StreamTimeoutSec int           `mapstructure:"stream_timeout_sec"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	RingQueueDepth   int           `mapstructure:"ring_queue_depth"`
}

// ACLConfig holds the allowed-hosts access control list.
type ACLConfig struct {
	// AllowedHosts is a list of CIDR ranges or literal IPs permitted to
	// connect. An empty list permits all hosts.
	AllowedHosts []string `mapstructure:"allowed_hosts"`
}

// TimeshiftConfig holds pause/time-shift disk ring configuration.
type TimeshiftConfig struct {
	Dir      string   `mapstructure:"dir"`
	MaxBytes ByteSize `mapstructure:"max_bytes"`
}

// ChannelConfig holds channel cache configuration.
type ChannelConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
	MaxCache int    `mapstructure:"max_cache_entries"`
}

// DatabaseConfig holds the metadata store connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// SchedulerConfig holds cron schedules for background housekeeping.
type SchedulerConfig struct {
	ChannelCacheGCCron string `mapstructure:"channel_cache_gc_cron"`
}

// PreferencesConfig holds client stream preferences used for demuxer-bundle
// reordering (spec.md §4.5).
type PreferencesConfig struct {
	Language  string `mapstructure:"language"`   // ISO 639 3-letter code
	AudioType int    `mapstructure:"audio_type"` // preferred audio stream type
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with XVDRD_ and use underscores for
// nesting. Example: XVDRD_SERVER_PORT=34891.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/xvdrd")
		v.AddConfigPath("$HOME/.xvdrd")
	}

	v.SetEnvPrefix("XVDRD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultListenPort)
	v.SetDefault("server.stream_timeout_sec", defaultStreamTimeoutSec)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.ring_queue_depth", defaultRingQueueDepth)

	v.SetDefault("acl.allowed_hosts", []string{})

	v.SetDefault("timeshift.dir", "./data/timeshift")
	v.SetDefault("timeshift.max_bytes", defaultTimeshiftMaxBytes)

	v.SetDefault("channel.cache_dir", "./data/cache")
	v.SetDefault("channel.max_cache_entries", defaultChannelCacheMaxLen)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "xvdrd.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("scheduler.channel_cache_gc_cron", "0 */15 * * * *")

	v.SetDefault("preferences.language", "eng")
	v.SetDefault("preferences.audio_type", 0)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.StreamTimeoutSec < 1 {
		return fmt.Errorf("server.stream_timeout_sec must be at least 1")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Timeshift.Dir == "" {
		return fmt.Errorf("timeshift.dir is required")
	}
	if c.Channel.CacheDir == "" {
		return fmt.Errorf("channel.cache_dir is required")
	}
	if c.Channel.MaxCache < 1 {
		return fmt.Errorf("channel.max_cache_entries must be at least 1")
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if len(c.Preferences.Language) != 0 && len(c.Preferences.Language) != 3 {
		return fmt.Errorf("preferences.language must be a 3-letter ISO 639 code")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StreamTimeout returns the per-channel signal timeout as a time.Duration.
func (c *ServerConfig) StreamTimeout() time.Duration {
	return time.Duration(c.StreamTimeoutSec) * time.Second
}
