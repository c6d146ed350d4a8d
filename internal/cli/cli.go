// Package cli implements the apkfetch command-line interface.
//
// # Commands
//
//   - check: report which apps need rebuilding
//   - build: acquire, normalize and patch apps, then record the builds
//   - fetch: acquire and normalize a single app
//   - sources: list the acquisition strategies in resolution order
//   - cache: manage the persistent metadata cache
//
// Every command reads apkfetch.toml (or --config) and the environment
// through package config.
//
// # Output
//
// Logs and human-readable summaries go to stderr. Only machine-readable
// results, such as the comma-separated app list printed by check, go to
// stdout, so the output can be captured by CI scripts:
//
//	APPS=$(apkfetch check)
package cli

import (
	"context"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/buildinfo"
	"github.com/matzehuels/apkfetch/pkg/cache"
	"github.com/matzehuels/apkfetch/pkg/config"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkeep"
	"github.com/matzehuels/apkfetch/pkg/observability"
	"github.com/matzehuels/apkfetch/pkg/proc"
	"github.com/matzehuels/apkfetch/pkg/runcache"
	"github.com/matzehuels/apkfetch/pkg/session"
)

// appName is the application name used for directories and display.
const appName = "apkfetch"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer   // machine-readable results
	Err    io.Writer   // logs and summaries
	Runner proc.Runner // external tools; exec when nil

	stats      *observability.CacheStats
	configPath string
	verbose    bool
	noCache    bool
	dryRun     bool
}

// New creates a CLI writing results to out and everything else to errOut.
func New(out, errOut io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(errOut, level),
		Out:    out,
		Err:    errOut,
		stats:  observability.NewCacheStats(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "apkfetch acquires Android packages and detects patch updates",
		Long: `apkfetch downloads Android application packages from third-party
mirrors, tracks the patch bundles applied to them and decides which apps
need rebuilding when a bundle or a package changes.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			observability.SetCacheHooks(c.stats)
			c.Logger.Debug("starting", buildinfo.Fields()...)
			return nil
		},
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.Out)
	root.SetErr(c.Err)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default "+config.DefaultFile+" if present)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.BoolVar(&c.noCache, "no-cache", false, "disable the persistent metadata cache")
	flags.BoolVar(&c.dryRun, "dry-run", false, "resolve everything but download and patch nothing")

	root.AddCommand(c.checkCommand())
	root.AddCommand(c.buildCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.sourcesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration and applies the persistent flags.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.dryRun {
		cfg.DryRun = true
	}
	if c.noCache {
		cfg.Cache.Disabled = true
	}
	return cfg, nil
}

// loadApps loads and validates the configuration, restricted to only when
// it is not empty, and materialises the apps.
func (c *CLI) loadApps(only []string) (*config.Config, []*apk.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if len(only) > 0 {
		cfg.AppNames = only
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	apps, err := cfg.Apps()
	if err != nil {
		return nil, nil, err
	}
	return cfg, apps, nil
}

// openRun starts a run for cfg. Callers must Close it.
func (c *CLI) openRun(ctx context.Context, cfg *config.Config) (*session.Run, error) {
	opts := session.Options{
		WorkDir:     cfg.WorkDir,
		CacheDir:    cfg.Cache.Dir,
		CacheTTL:    cfg.Cache.TTL,
		NoCache:     cfg.Cache.Disabled,
		CachePrefix: cfg.Cache.Prefix,
		DryRun:      cfg.DryRun,
		GitHubToken: cfg.GitHubToken,
		Apkeep:      apkeep.Credentials{Email: cfg.Apkeep.Email, Token: cfg.Apkeep.Token},
		State:       cfg.StateConfig(),
		Runner:      c.Runner,
		Logger:      c.Logger,
	}
	if cfg.Cache.RedisAddr != "" {
		opts.Redis = &cache.RedisConfig{Addr: cfg.Cache.RedisAddr, DB: cfg.Cache.RedisDB}
	}
	return session.New(ctx, opts)
}

// logCacheStats logs how well the run caches of run deduplicated work.
func (c *CLI) logCacheStats(run *session.Run) {
	for _, t := range []*runcache.Table{run.Downloads, run.Resources} {
		hits, misses := c.stats.Counts(t.Name())
		c.Logger.Debug("run cache", "table", t.Name(), "entries", t.Len(), "fetches", t.Fetches(), "hits", hits, "misses", misses)
	}
}

// cacheDir returns the persistent cache directory of cfg.
func cacheDir(cfg *config.Config) (string, error) {
	if cfg.Cache.Dir != "" {
		return filepath.Abs(cfg.Cache.Dir)
	}
	return cache.DefaultDir()
}
