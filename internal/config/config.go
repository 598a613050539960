// Package config loads and validates the fedisync configuration file.
//
// Configuration lives in a TOML file (config.toml by default) with one
// section per collaborator: the Bluesky account, the Threads export file,
// the Mastodon account, the cache location, and optional log rotation.
// Every key can be overridden through FEDISYNC_* environment variables
// (FEDISYNC_MASTODON_ACCESS_TOKEN etc.), which keeps secrets out of the
// file when desired.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultCachePath is where the follow cache lands when the config file
// doesn't say otherwise.
const DefaultCachePath = "following_cache.db"

// configKeys lists every known configuration key. Each is bound to its
// FEDISYNC_* environment variable explicitly; AutomaticEnv alone does not
// surface env-only keys through Unmarshal.
var configKeys = []string{
	"bluesky.host",
	"bluesky.username",
	"bluesky.password",
	"threads.export_file",
	"mastodon.server",
	"mastodon.access_token",
	"cache.path",
	"log.file",
	"log.max_size_mb",
	"log.max_backups",
}

// Config is the fully resolved fedisync configuration.
type Config struct {
	Bluesky  BlueskyConfig  `mapstructure:"bluesky"`
	Threads  ThreadsConfig  `mapstructure:"threads"`
	Mastodon MastodonConfig `mapstructure:"mastodon"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// BlueskyConfig holds the source account credentials for the atproto API.
// Password may be left empty, in which case the CLI prompts for it.
type BlueskyConfig struct {
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ThreadsConfig points at the Meta data-export JSON file holding the
// Threads following list.
type ThreadsConfig struct {
	ExportFile string `mapstructure:"export_file"`
}

// MastodonConfig holds the federated account the follows are issued against.
type MastodonConfig struct {
	Server      string `mapstructure:"server"`
	AccessToken string `mapstructure:"access_token"`
}

// CacheConfig locates the follow cache database.
type CacheConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig optionally tees log output into a rotating file.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads the configuration from the given file path. An empty path
// falls back to config.toml in the working directory.
func Load(path string) (*Config, error) {
	cfg, err := LoadUnvalidated(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadUnvalidated reads the configuration without requiring a complete
// account setup. Read-only commands that only need the cache location use
// this so a partial config file doesn't lock them out.
func LoadUnvalidated(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("bluesky.host", "https://bsky.social")
	v.SetDefault("cache.path", DefaultCachePath)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FEDISYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration names a Mastodon account and at
// least one source platform.
func (c *Config) Validate() error {
	if c.Mastodon.Server == "" {
		return fmt.Errorf("mastodon.server is required")
	}
	if c.Mastodon.AccessToken == "" {
		return fmt.Errorf("mastodon.access_token is required")
	}
	if !c.HasBluesky() && !c.HasThreads() {
		return fmt.Errorf("at least one source platform must be configured (bluesky.username or threads.export_file)")
	}
	if c.HasBluesky() && c.Bluesky.Host == "" {
		return fmt.Errorf("bluesky.host is required when bluesky.username is set")
	}
	if c.Cache.Path == "" {
		return fmt.Errorf("cache.path must not be empty")
	}
	return nil
}

// HasBluesky reports whether a Bluesky source account is configured.
func (c *Config) HasBluesky() bool {
	return c.Bluesky.Username != ""
}

// HasThreads reports whether a Threads export file is configured.
func (c *Config) HasThreads() bool {
	return c.Threads.ExportFile != ""
}
