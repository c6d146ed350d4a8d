// Package state persists what each build recorded, so the next run can tell
// whether anything changed.
//
// A prior-state feed is a JSON document keyed by app name. Each entry holds
// the app version that was patched and, per patch bundle, the bundle version
// and source URL:
//
//	{
//	  "youtube": {
//	    "app_version": "19.16.39",
//	    "patches_versions": ["v4.6.0"],
//	    "cli_version": "v5.0.0",
//	    "ms_epoch_since_patched": 1714000000000,
//	    "app_dump": {"patches_dl_list": ["https://github.com/revanced/revanced-patches/releases/latest"]}
//	  }
//	}
//
// Older documents store a single string where newer ones store a list; both
// decode the same. An app with no entry reports [NoRecord] for its versions
// and sources.
//
// # Backends
//
//   - [HTTPStore]: the published feed, read-only
//   - [FileStore]: a local updates.json, for dry runs and write-back
//   - [RedisStore]: one JSON value per app, shared between CI runners
//   - [MongoStore]: one document per app
package state

import (
	"context"
	"fmt"

	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Store reads and writes per-app records.
type Store interface {
	// Get returns the record of app, or an empty Record if there is none.
	Get(ctx context.Context, app string) (Record, error)
	// Put replaces the record of app.
	Put(ctx context.Context, app string, rec Record) error
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendHTTP  = "http"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// DefaultFile is the name of the local prior-state document.
const DefaultFile = "updates.json"

// FeedURL returns the published feed of a repository, e.g. "owner/repo".
func FeedURL(repository string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/changelogs/%s", repository, DefaultFile)
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	URL     string // http
	Path    string // file
	Redis   RedisConfig
	Mongo   MongoConfig
}

// Open connects the configured backend. HTTP requests go through opts.
func Open(ctx context.Context, cfg Config, opts integrations.Options) (Store, error) {
	switch cfg.Backend {
	case BackendHTTP:
		if cfg.URL == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "state: http backend needs a url")
		}
		return NewHTTPStore(cfg.URL, opts), nil
	case BackendFile, "":
		path := cfg.Path
		if path == "" {
			path = DefaultFile
		}
		return NewFileStore(path), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case BackendMongo:
		return NewMongoStore(ctx, cfg.Mongo)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "state: unknown backend %q", cfg.Backend)
}
