// Package config loads apkfetch settings from a TOML file and the
// environment.
//
// # Sources
//
// Settings are read in three layers, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. the TOML file, e.g. apkfetch.toml
//  3. environment variables
//
// A minimal file:
//
//	apps = ["youtube", "spotify"]
//	max_parallel = 4
//
//	[global]
//	patches = ["https://github.com/revanced/revanced-patches/releases/latest"]
//
//	[app.spotify]
//	version = "8.9.18.512"
//
// # Environment
//
// Global variables: PATCH_APPS, DRY_RUN, GITHUB_TOKEN (or
// PERSONAL_ACCESS_TOKEN), GITHUB_REPOSITORY, STATE_BACKEND, MAX_PARALLEL_APPS, EXTRA_FILES,
// GLOBAL_CLI_DL, GLOBAL_PATCHES_DL, GLOBAL_ARCHS_TO_BUILD,
// GLOBAL_KEYSTORE_FILE_NAME, GLOBAL_OPTIONS_FILE, GLOBAL_OLD_KEY,
// APKEEP_EMAIL and APKEEP_TOKEN.
//
// Per-app variables are prefixed with the upper-cased app name, dashes
// becoming underscores (YOUTUBE_MUSIC_VERSION): _VERSION, _PACKAGE_NAME,
// _DL_SOURCE, _DL, _CLI_DL, _PATCHES_DL, _ARCHS_TO_BUILD, _INCLUDE_PATCH,
// _EXCLUDE_PATCH, _KEYSTORE_FILE_NAME, _OPTIONS_FILE and _OLD_KEY. List
// values are comma-separated.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/state"
)

// DefaultFile is the configuration file looked up when none is given.
const DefaultFile = "apkfetch.toml"

// Default resource sources.
const (
	DefaultCLI     = "https://github.com/revanced/revanced-cli/releases/latest"
	DefaultPatches = "https://github.com/revanced/revanced-patches/releases/latest"
	DefaultEditor  = "https://github.com/REAndroid/APKEditor@apkeditor.jar"
)

// DefaultMaxParallel bounds concurrent app builds when nothing is configured.
const DefaultMaxParallel = 4

// Config is the complete run configuration.
type Config struct {
	AppNames    []string       `toml:"apps"`
	WorkDir     string         `toml:"work_dir"`
	OutputDir   string         `toml:"output_dir"`
	MaxParallel int            `toml:"max_parallel"`
	DryRun      bool           `toml:"dry_run"`
	GitHubToken string         `toml:"github_token"`
	ExtraFiles  []string       `toml:"extra_files"` // "url@name"
	Global      Global         `toml:"global"`
	Cache       Cache          `toml:"cache"`
	State       State          `toml:"state"`
	Apkeep      Apkeep         `toml:"apkeep"`
	AppSettings map[string]App `toml:"app"`
}

// Global holds defaults shared by every app.
type Global struct {
	CLI         string   `toml:"cli"`
	Patches     []string `toml:"patches"`
	Archs       []string `toml:"archs"`
	Keystore    string   `toml:"keystore"`
	OptionsFile string   `toml:"options_file"`
	OldKey      bool     `toml:"old_key"`
}

// App holds per-app settings. Empty fields fall back to [Global] and the
// built-in table of known apps.
type App struct {
	Package     string   `toml:"package"`
	Source      string   `toml:"source"`
	DirectURL   string   `toml:"dl"`
	Version     string   `toml:"version"`
	CLI         string   `toml:"cli"`
	Patches     []string `toml:"patches"`
	Archs       []string `toml:"archs"`
	Include     []string `toml:"include"`
	Exclude     []string `toml:"exclude"`
	Keystore    string   `toml:"keystore"`
	OptionsFile string   `toml:"options_file"`
	OldKey      *bool    `toml:"old_key"`
}

// Cache configures the persistent metadata cache.
type Cache struct {
	Disabled  bool          `toml:"disabled"`
	Dir       string        `toml:"dir"`
	TTL       time.Duration `toml:"ttl"`
	RedisAddr string        `toml:"redis_addr"`
	RedisDB   int           `toml:"redis_db"`
	Prefix    string        `toml:"prefix"` // key prefix for shared backends
}

// State configures where build records are kept.
type State struct {
	Backend    string `toml:"backend"`
	URL        string `toml:"url"`
	Repository string `toml:"repository"` // owner/repo publishing the feed
	Path       string `toml:"path"`
	RedisAddr  string `toml:"redis_addr"`
	RedisDB    int    `toml:"redis_db"`
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Apkeep holds Google Play credentials for the apkeep source.
type Apkeep struct {
	Email string `toml:"email"`
	Token string `toml:"token"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AppNames:    []string{"youtube", "youtube_music"},
		WorkDir:     "apks",
		OutputDir:   "out",
		MaxParallel: DefaultMaxParallel,
		ExtraFiles:  []string{DefaultEditor},
		Global: Global{
			CLI:         DefaultCLI,
			Patches:     []string{DefaultPatches},
			Keystore:    "revanced.keystore",
			OptionsFile: "options.json",
			OldKey:      true,
		},
		State:       State{Backend: state.BackendFile, Path: state.DefaultFile},
		AppSettings: map[string]App{},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	} else if explicit {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if cfg.AppSettings == nil {
		cfg.AppSettings = map[string]App{}
	}
	if err := cfg.applyEnv(env{lookup}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env reads typed values from the environment.
type env struct {
	lookup func(string) (string, bool)
}

func (e env) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (e env) list(key string, dst *[]string) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = splitList(v)
	}
}

func (e env) boolean(key string, dst *bool) error {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s=%q is not a boolean", key, v)
	}
	*dst = b
	return nil
}

func (e env) integer(key string, dst *int) error {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s=%q is not a number", key, v)
	}
	*dst = n
	return nil
}

func (c *Config) applyEnv(e env) error {
	e.list("PATCH_APPS", &c.AppNames)
	if err := e.boolean("DRY_RUN", &c.DryRun); err != nil {
		return err
	}
	e.str("PERSONAL_ACCESS_TOKEN", &c.GitHubToken)
	e.str("GITHUB_TOKEN", &c.GitHubToken)
	if err := e.integer("MAX_PARALLEL_APPS", &c.MaxParallel); err != nil {
		return err
	}
	if v, ok := e.lookup("EXTRA_FILES"); ok && v != "" {
		c.ExtraFiles = append(splitList(v), DefaultEditor)
	}
	e.str("GITHUB_REPOSITORY", &c.State.Repository)
	e.str("STATE_BACKEND", &c.State.Backend)
	e.str("APKEEP_EMAIL", &c.Apkeep.Email)
	e.str("APKEEP_TOKEN", &c.Apkeep.Token)

	e.str("GLOBAL_CLI_DL", &c.Global.CLI)
	e.list("GLOBAL_PATCHES_DL", &c.Global.Patches)
	e.list("GLOBAL_ARCHS_TO_BUILD", &c.Global.Archs)
	e.str("GLOBAL_KEYSTORE_FILE_NAME", &c.Global.Keystore)
	e.str("GLOBAL_OPTIONS_FILE", &c.Global.OptionsFile)
	if err := e.boolean("GLOBAL_OLD_KEY", &c.Global.OldKey); err != nil {
		return err
	}

	for _, name := range c.AppNames {
		a := c.AppSettings[name]
		p := EnvPrefix(name)
		e.str(p+"_VERSION", &a.Version)
		e.str(p+"_PACKAGE_NAME", &a.Package)
		e.str(p+"_DL_SOURCE", &a.Source)
		e.str(p+"_DL", &a.DirectURL)
		e.str(p+"_CLI_DL", &a.CLI)
		e.list(p+"_PATCHES_DL", &a.Patches)
		e.list(p+"_ARCHS_TO_BUILD", &a.Archs)
		e.list(p+"_INCLUDE_PATCH", &a.Include)
		e.list(p+"_EXCLUDE_PATCH", &a.Exclude)
		e.str(p+"_KEYSTORE_FILE_NAME", &a.Keystore)
		e.str(p+"_OPTIONS_FILE", &a.OptionsFile)
		var oldKey bool
		if v, ok := e.lookup(p + "_OLD_KEY"); ok && v != "" {
			if err := e.boolean(p+"_OLD_KEY", &oldKey); err != nil {
				return err
			}
			a.OldKey = &oldKey
		}
		c.AppSettings[name] = a
	}
	return nil
}

// EnvPrefix returns the environment variable prefix of app.
func EnvPrefix(app string) string {
	return strings.ToUpper(strings.ReplaceAll(app, "-", "_"))
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExtraFile is a file downloaded into the work directory before the run.
type ExtraFile struct {
	URL  string
	Name string
}

// Extras parses the configured "url@name" extra files.
func (c *Config) Extras() ([]ExtraFile, error) {
	out := make([]ExtraFile, 0, len(c.ExtraFiles))
	for _, entry := range c.ExtraFiles {
		i := strings.LastIndex(entry, "@")
		if i <= 0 || i == len(entry)-1 {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "extra file %q is not url@name", entry)
		}
		out = append(out, ExtraFile{URL: entry[:i], Name: entry[i+1:]})
	}
	return out, nil
}

// StateConfig returns the prior-state backend settings.
func (c *Config) StateConfig() state.Config {
	s := c.State
	url := s.URL
	if url == "" && s.Repository != "" {
		url = state.FeedURL(s.Repository)
	}
	return state.Config{
		Backend: s.Backend,
		URL:     url,
		Path:    s.Path,
		Redis:   state.RedisConfig{Addr: s.RedisAddr, DB: s.RedisDB},
		Mongo:   state.MongoConfig{URI: s.MongoURI, Database: s.Database, Collection: s.Collection},
	}
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.MaxParallel <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_parallel must be positive, got %d", c.MaxParallel)
	}
	if len(c.AppNames) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "no apps configured")
	}
	extras, err := c.Extras()
	if err != nil {
		return err
	}
	for _, x := range extras {
		if err := errors.ValidateURL(x.URL); err != nil {
			return err
		}
		if err := errors.ValidateFileName(x.Name); err != nil {
			return err
		}
	}
	switch c.State.Backend {
	case state.BackendFile, state.BackendHTTP, state.BackendRedis, state.BackendMongo, "":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown state backend %q", c.State.Backend)
	}
	_, err = c.Apps()
	return err
}
