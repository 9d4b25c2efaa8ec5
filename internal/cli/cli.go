// Package cli implements the cargo-upgrade command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cargo-upgrade/internal/config"
	"github.com/matzehuels/cargo-upgrade/pkg/buildinfo"
	"github.com/matzehuels/cargo-upgrade/pkg/cache"
	"github.com/matzehuels/cargo-upgrade/pkg/integrations/crates"
	"github.com/matzehuels/cargo-upgrade/pkg/observability"
	"github.com/matzehuels/cargo-upgrade/pkg/upgrade"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the binary name Cargo dispatches `cargo upgrade` to.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	out io.Writer // command output (cache path, completions)
	err io.Writer // transition lines and diagnostics

	configPath string
	verbose    bool
}

// New creates a new CLI instance. Logs and transition lines go to errw.
func New(out, errw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(errw, level),
		out:    out,
		err:    errw,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// Cargo runs `cargo upgrade ...` as `cargo-upgrade upgrade ...`.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Upgrade dependency requirements in Cargo.toml manifests",
		Long:          `cargo-upgrade rewrites the version requirements of Cargo.toml dependencies to the latest published versions while leaving every other byte of the manifest untouched.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
				observability.SetHTTPHooks(&httpLogHooks{logger: c.Logger})
				observability.SetRunHooks(&runLogHooks{logger: c.Logger})
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.out)
	root.SetErr(c.err)
	root.SetFlagErrorFunc(flagError)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/cargo-upgrade/config.toml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.upgradeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

func (c *CLI) loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, path, err := config.Load(ctx, config.LoadOptions{ConfigFilePath: c.configPath})
	if err != nil {
		return nil, err
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}
	return cfg, nil
}

// newRegistry builds the sparse index registry. The returned cache must be
// closed by the caller.
func (c *CLI) newRegistry(ctx context.Context, cfg *config.Config, noCache bool) (*upgrade.CratesRegistry, cache.Cache) {
	backend := c.newCache(ctx, cfg, noCache)

	var registries map[string]string
	if home, err := config.CargoHome(); err == nil {
		cwd, _ := os.Getwd()
		if registries, err = config.Registries(cwd, home); err != nil {
			c.Logger.Warn("ignoring cargo registry configuration", "error", err)
		}
	}

	client := crates.NewClient(backend, cfg.Cache.TTL, crates.Config{
		Index:      cfg.Registry.Index,
		Registries: registries,
		UserAgent:  cfg.Registry.UserAgent,
		Timeout:    cfg.HTTP.Timeout,
	})
	return &upgrade.CratesRegistry{Client: client, Logger: c.Logger}, backend
}

// newCache selects the response cache backend: none with --no-cache, Redis
// when cache.redis_url is set, else files below the cache directory.
func (c *CLI) newCache(ctx context.Context, cfg *config.Config, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.Cache.RedisURL})
		if err == nil {
			return rc
		}
		c.Logger.Warn("redis cache unavailable, using file cache", "error", err)
	}
	dir, err := cacheDir(cfg)
	if err != nil {
		c.Logger.Debug("cache disabled", "error", err)
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Debug("cache disabled", "error", err)
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns cache.dir, or the XDG cache directory (~/.cache/cargo-upgrade/).
func cacheDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return config.CacheDir()
}
