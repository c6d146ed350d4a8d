// Package session holds the state of one apkfetch run.
//
// A [Run] is created once at the start of a command and passed by pointer
// to everything that needs run-scoped resources:
//   - a run ID (UUID) that tags every log line of the run
//   - the shared HTTP client with its fixed timeout
//   - the persistent metadata cache (file, redis or none)
//   - the two run caches for app downloads and patch resources
//   - the download recorder used for the timing report
//   - the source resolver, fetcher and archive normalizer
//   - the prior-state store
//
// Nothing in a Run outlives [Run.Close]; there are no process-wide
// registries.
//
// # Usage
//
//	run, err := session.New(ctx, session.Options{
//	    WorkDir: "apks",
//	    Logger:  logger,
//	    State:   state.Config{Backend: state.BackendFile},
//	})
//	if err != nil {
//	    return err
//	}
//	defer run.Close()
//
//	err = run.Fetcher.FetchApp(ctx, app)
package session

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/apkfetch/pkg/cache"
	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkeep"
	"github.com/matzehuels/apkfetch/pkg/normalize"
	"github.com/matzehuels/apkfetch/pkg/proc"
	"github.com/matzehuels/apkfetch/pkg/runcache"
	"github.com/matzehuels/apkfetch/pkg/source"
	"github.com/matzehuels/apkfetch/pkg/state"
)

// DefaultCacheTTL is how long metadata responses stay in the persistent cache.
const DefaultCacheTTL = 24 * time.Hour

// Options configures a run.
type Options struct {
	WorkDir     string             // download directory; a temporary one when empty
	CacheDir    string             // file cache directory; cache.DefaultDir() when empty
	CacheTTL    time.Duration      // DefaultCacheTTL when zero
	NoCache     bool               // disable the persistent metadata cache
	Redis       *cache.RedisConfig // use redis instead of the file cache
	CachePrefix string             // scopes cache keys when runners share a backend
	DryRun      bool
	GitHubToken string
	Apkeep      apkeep.Credentials
	State       state.Config
	EditorJar   string // merge tool jar, relative to WorkDir

	HTTP   *http.Client // NewHTTPClient() when nil
	Runner proc.Runner  // ExecRunner when nil
	Logger *log.Logger
}

// Run is the context of one apkfetch invocation.
type Run struct {
	ID        string
	StartedAt time.Time
	Dir       string
	DryRun    bool

	Logger     *log.Logger
	HTTP       *http.Client
	Cache      cache.Cache
	Recorder   *integrations.Recorder
	Runner     proc.Runner
	Downloads  *runcache.Table
	Resources  *runcache.Table
	Resolver   *source.Resolver
	Normalizer *normalize.Normalizer
	Fetcher    *source.Fetcher
	State      state.Store

	ownsDir bool
	ttl     time.Duration
	keyer   cache.Keyer
}

// New sets up a run. On error every resource opened so far is released.
func New(ctx context.Context, opts Options) (*Run, error) {
	r := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    opts.DryRun,
		HTTP:      opts.HTTP,
		Runner:    opts.Runner,
		Recorder:  integrations.NewRecorder(),
		Downloads: runcache.NewDownloads(),
		Resources: runcache.NewResources(),
		ttl:       opts.CacheTTL,
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	r.Logger = logger.With("run", r.ID[:8])
	if r.HTTP == nil {
		r.HTTP = integrations.NewHTTPClient()
	}
	if r.Runner == nil {
		r.Runner = proc.NewExecRunner(r.Logger)
	}
	if r.ttl == 0 {
		r.ttl = DefaultCacheTTL
	}
	if opts.CachePrefix != "" {
		r.keyer = cache.NewScopedKeyer(nil, opts.CachePrefix)
	}

	if err := r.openDir(opts.WorkDir); err != nil {
		return nil, err
	}
	if err := r.openCache(ctx, opts); err != nil {
		r.Close()
		return nil, err
	}

	r.Resolver = source.NewResolver(source.Env{
		Options:     r.Options(),
		Runner:      r.Runner,
		GitHubToken: opts.GitHubToken,
		Apkeep:      opts.Apkeep,
	})
	r.Normalizer = normalize.New(r.Dir, r.Runner, r.Logger)
	if opts.EditorJar != "" {
		r.Normalizer.EditorJar = opts.EditorJar
	}
	r.Fetcher = source.NewFetcher(r.Resolver, r.Downloads, r.Resources, r.Normalizer, r.Options())

	st, err := state.Open(ctx, opts.State, r.Options())
	if err != nil {
		r.Close()
		return nil, err
	}
	r.State = st

	r.Logger.Debug("run started", "dir", r.Dir, "dry_run", r.DryRun)
	return r, nil
}

func (r *Run) openDir(dir string) error {
	if dir == "" {
		tmp, err := os.MkdirTemp("", "apkfetch-*")
		if err != nil {
			return err
		}
		r.Dir, r.ownsDir = tmp, true
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	r.Dir = dir
	return nil
}

func (r *Run) openCache(ctx context.Context, opts Options) error {
	switch {
	case opts.NoCache:
		r.Cache = cache.NewNullCache()
	case opts.Redis != nil:
		c, err := cache.NewRedisCache(ctx, *opts.Redis)
		if err != nil {
			return err
		}
		r.Cache = c
	default:
		dir := opts.CacheDir
		if dir == "" {
			var err error
			if dir, err = cache.DefaultDir(); err != nil {
				return err
			}
		}
		c, err := cache.NewFileCache(dir)
		if err != nil {
			return err
		}
		r.Cache = c
	}
	return nil
}

// Options returns the dependencies handed to acquisition sources.
func (r *Run) Options() integrations.Options {
	return integrations.Options{
		HTTP:     r.HTTP,
		Cache:    r.Cache,
		Keyer:    r.keyer,
		TTL:      r.ttl,
		Recorder: r.Recorder,
		Logger:   r.Logger,
		Dir:      r.Dir,
		DryRun:   r.DryRun,
	}
}

// Elapsed returns the time since the run started.
func (r *Run) Elapsed() time.Duration { return time.Since(r.StartedAt) }

// Close releases the caches and the state store, and removes the work
// directory if the run created it.
func (r *Run) Close() error {
	var errs []error
	if r.State != nil {
		errs = append(errs, r.State.Close())
	}
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.ownsDir {
		errs = append(errs, os.RemoveAll(r.Dir))
	}
	return stderrors.Join(errs...)
}
