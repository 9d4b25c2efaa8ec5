// Package config loads cargo-upgrade settings and Cargo's registry table.
//
// Settings are layered, lowest precedence first: built-in defaults, the
// config file ($XDG_CONFIG_HOME/cargo-upgrade/config.toml or --config), and
// CARGO_UPGRADE_* environment variables (CARGO_UPGRADE_CACHE_TTL=1h, ...).
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for directories.
	AppName = "cargo-upgrade"
	// ConfigFileName is the name of the config file.
	ConfigFileName = "config.toml"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "CARGO_UPGRADE"
)

// Config holds the tool settings.
type Config struct {
	Registry RegistryConfig `mapstructure:"registry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	HTTP     HTTPConfig     `mapstructure:"http"`
}

// RegistryConfig configures the default registry.
type RegistryConfig struct {
	Index     string `mapstructure:"index"`
	UserAgent string `mapstructure:"user_agent"`
}

// CacheConfig configures the registry response cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// Dir defaults to $XDG_CACHE_HOME/cargo-upgrade.
	Dir string `mapstructure:"dir"`
	// RedisURL selects the Redis backend when set.
	RedisURL string `mapstructure:"redis_url"`
}

// HTTPConfig configures registry requests.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Registry: RegistryConfig{Index: "https://index.crates.io"},
		Cache:    CacheConfig{TTL: 10 * time.Minute},
		HTTP:     HTTPConfig{Timeout: 10 * time.Second},
	}
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory lookup when set.
	ConfigDirPath string
}

// Load reads configuration and returns it with the path of the file used,
// which is empty when only defaults and environment applied.
func Load(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("registry.index", defaults.Registry.Index)
	v.SetDefault("registry.user_agent", defaults.Registry.UserAgent)
	v.SetDefault("cache.ttl", defaults.Cache.TTL)
	v.SetDefault("cache.dir", defaults.Cache.Dir)
	v.SetDefault("cache.redis_url", defaults.Cache.RedisURL)
	v.SetDefault("http.timeout", defaults.HTTP.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved := ""
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", fmt.Errorf("config file not found: %s", opts.ConfigFilePath)
		}
		resolved = opts.ConfigFilePath
	} else {
		dir := opts.ConfigDirPath
		if dir == "" {
			var err error
			if dir, err = ConfigDir(); err != nil {
				return nil, "", err
			}
		}
		if path := filepath.Join(dir, ConfigFileName); fileExists(path) {
			resolved = path
		}
	}

	if resolved != "" {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("failed to read config %s: %w", resolved, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Cache.TTL < 0 {
		return nil, "", fmt.Errorf("cache.ttl must not be negative, got %s", cfg.Cache.TTL)
	}
	return &cfg, resolved, nil
}

// ConfigDir returns $XDG_CONFIG_HOME/cargo-upgrade, defaulting to ~/.config.
func ConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", AppName), nil
}

// CacheDir returns $XDG_CACHE_HOME/cargo-upgrade, defaulting to ~/.cache.
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cache", AppName), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
