package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/state"
)

func lookup(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "missing.toml"), lookup(nil))
	if err == nil {
		t.Fatalf("explicit missing file should fail, got %+v", cfg)
	}

	t.Chdir(t.TempDir())
	cfg, err = load("", lookup(nil))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if !slices.Equal(cfg.AppNames, []string{"youtube", "youtube_music"}) || cfg.MaxParallel != DefaultMaxParallel {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
apps = ["spotify", "custom"]
max_parallel = 2
extra_files = ["https://example.com/tool.jar@tool.jar"]

[global]
patches = ["https://github.com/a/patches", "https://github.com/b/extra"]
archs = ["arm64-v8a"]

[cache]
ttl = "2h"

[state]
backend = "http"
repository = "owner/repo"

[app.spotify]
version = "8.9.18.512"
old_key = false

[app.custom]
package = "com.example.custom"
source = "https://www.apkmonk.com/app/com.example.custom/"
patches = ["local://custom.rvp"]
`)
	cfg, err := load(path, lookup(nil))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if cfg.MaxParallel != 2 || cfg.Cache.TTL != 2*time.Hour {
		t.Errorf("cfg = %+v", cfg)
	}
	if got := cfg.StateConfig(); got.Backend != state.BackendHTTP || got.URL != state.FeedURL("owner/repo") {
		t.Errorf("StateConfig() = %+v", got)
	}

	apps, err := cfg.Apps()
	if err != nil {
		t.Fatalf("Apps() error: %v", err)
	}
	spotify, custom := apps[0], apps[1]
	if spotify.PackageName != "com.spotify.music" || spotify.Source != "https://spotify.en.uptodown.com/android" {
		t.Errorf("spotify = %+v", spotify)
	}
	if spotify.Version != "8.9.18.512" || spotify.OldKey {
		t.Errorf("spotify overrides not applied: %+v", spotify)
	}
	if got := spotify.BundleSources(); !slices.Equal(got, []string{"https://github.com/a/patches", "https://github.com/b/extra"}) {
		t.Errorf("spotify bundles = %v", got)
	}
	if !slices.Equal(spotify.Archs, []string{"arm64-v8a"}) || spotify.CLI.Source != DefaultCLI {
		t.Errorf("spotify globals = %+v", spotify)
	}
	if got := custom.BundleSources(); !slices.Equal(got, []string{"local://custom.rvp"}) {
		t.Errorf("custom bundles = %v", got)
	}
	if !custom.OldKey {
		t.Error("custom should inherit global old_key")
	}

	extras, err := cfg.Extras()
	if err != nil || len(extras) != 1 || extras[0] != (ExtraFile{URL: "https://example.com/tool.jar", Name: "tool.jar"}) {
		t.Errorf("Extras() = %+v, %v", extras, err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := load("", lookup(map[string]string{
		"PATCH_APPS":                   "youtube, youtube_music ,",
		"DRY_RUN":                      "true",
		"PERSONAL_ACCESS_TOKEN":        "pat",
		"GITHUB_TOKEN":                 "ghs",
		"MAX_PARALLEL_APPS":            "8",
		"GLOBAL_PATCHES_DL":            "https://github.com/a/p,https://github.com/b/p",
		"GLOBAL_OLD_KEY":               "false",
		"EXTRA_FILES":                  "https://example.com/x@x.apk",
		"YOUTUBE_VERSION":              "19.16.39",
		"YOUTUBE_DL":                   "https://example.com/yt.apk",
		"YOUTUBE_EXCLUDE_PATCH":        "hide-ads,custom-branding",
		"YOUTUBE_MUSIC_ARCHS_TO_BUILD": "arm64-v8a",
		"YOUTUBE_MUSIC_OLD_KEY":        "true",
		"YOUTUBE_MUSIC_DL_SOURCE":      "apkeep",
	}))
	if err != nil {
		t.Fatalf("load() error: %v", err)
	}
	if !cfg.DryRun || cfg.GitHubToken != "ghs" || cfg.MaxParallel != 8 {
		t.Errorf("globals = %+v", cfg)
	}
	if !slices.Equal(cfg.ExtraFiles, []string{"https://example.com/x@x.apk", DefaultEditor}) {
		t.Errorf("extra files = %v", cfg.ExtraFiles)
	}

	apps, err := cfg.Apps()
	if err != nil {
		t.Fatalf("Apps() error: %v", err)
	}
	yt, ytm := apps[0], apps[1]
	if yt.Version != "19.16.39" || yt.DirectURL != "https://example.com/yt.apk" || yt.OldKey {
		t.Errorf("youtube = %+v", yt)
	}
	if !slices.Equal(yt.Exclude, []string{"hide-ads", "custom-branding"}) || len(yt.Bundles) != 2 {
		t.Errorf("youtube = %+v", yt)
	}
	if ytm.Source != "apkeep" || !ytm.OldKey || !slices.Equal(ytm.Archs, []string{"arm64-v8a"}) {
		t.Errorf("youtube_music = %+v", ytm)
	}
}

func TestLoadEnvInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, vars := range []map[string]string{
		{"DRY_RUN": "maybe"},
		{"MAX_PARALLEL_APPS": "four"},
		{"YOUTUBE_OLD_KEY": "nope"},
	} {
		if _, err := load("", lookup(vars)); !errors.Is(err, errors.ErrCodeInvalidConfig) {
			t.Errorf("load(%v) = %v, want INVALID_CONFIG", vars, err)
		}
	}
}

func TestLoadBadTOML(t *testing.T) {
	path := writeConfig(t, "apps = [")
	if _, err := load(path, lookup(nil)); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero parallelism", func(c *Config) { c.MaxParallel = 0 }},
		{"no apps", func(c *Config) { c.AppNames = nil }},
		{"unknown app", func(c *Config) { c.AppNames = []string{"nosuchapp"} }},
		{"bad app name", func(c *Config) { c.AppNames = []string{"../x"} }},
		{"bad extra", func(c *Config) { c.ExtraFiles = []string{"no-at-sign"} }},
		{"extra path", func(c *Config) { c.ExtraFiles = []string{"https://x.com/a@../a.jar"} }},
		{"bad patches url", func(c *Config) { c.Global.Patches = []string{"ftp://x"} }},
		{"bad state", func(c *Config) { c.State.Backend = "sqlite" }},
		{"no source", func(c *Config) {
			c.AppNames = []string{"microg"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestKnownApps(t *testing.T) {
	names := KnownApps()
	if !slices.IsSorted(names) || !slices.Contains(names, "youtube") {
		t.Errorf("KnownApps() = %v", names)
	}
	for name := range knownSources {
		if _, ok := knownPackages[name]; !ok {
			t.Errorf("%s has a source but no package", name)
		}
	}
}

func TestEnvPrefix(t *testing.T) {
	if got := EnvPrefix("nyx-music-player"); got != "NYX_MUSIC_PLAYER" {
		t.Errorf("EnvPrefix() = %q", got)
	}
}
