package source

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/cache"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/integrations/github"
	"github.com/matzehuels/apkfetch/pkg/normalize"
	"github.com/matzehuels/apkfetch/pkg/observability"
	"github.com/matzehuels/apkfetch/pkg/runcache"
)

// directName labels plain URL downloads in errors and logs.
const directName = "direct"

// Fetcher acquires app packages and patch resources through the run caches.
type Fetcher struct {
	resolver   *Resolver
	downloads  *runcache.Table
	resources  *runcache.Table
	normalizer *normalize.Normalizer
	client     *integrations.Client
	dir        string
	dryRun     bool
	logger     *log.Logger
}

// NewFetcher wires a Fetcher. The tables are shared by every worker of a run.
func NewFetcher(resolver *Resolver, downloads, resources *runcache.Table, normalizer *normalize.Normalizer, opts integrations.Options) *Fetcher {
	return &Fetcher{
		resolver:   resolver,
		downloads:  downloads,
		resources:  resources,
		normalizer: normalizer,
		client:     opts.Client(directName, nil),
		dir:        opts.Dir,
		dryRun:     opts.DryRun,
		logger:     opts.Log(),
	}
}

// FetchApp acquires the package for app and records the resolved file
// name, URL and, for unpinned apps, the version the source served. The
// version is applied on cache hits too, so every app sharing a download
// sees it.
func (f *Fetcher) FetchApp(ctx context.Context, app *apk.App) error {
	hooks := observability.Pipeline()
	start := time.Now()

	var (
		key   runcache.Key
		fetch runcache.FetchFunc
		name  string
	)
	if app.DirectURL != "" {
		name = directName
		key = runcache.AppKey(app.DirectURL, app.VersionOrLatest(), app.PackageName)
		fetch = func(ctx context.Context) (runcache.Entry, error) {
			return f.fetchDirect(ctx, app)
		}
	} else {
		strategy, err := f.resolver.Resolve(app.Source)
		if err != nil {
			return err
		}
		name = strategy.Name()
		key = runcache.AppKey(app.Source, app.VersionOrLatest(), app.PackageName)
		fetch = func(ctx context.Context) (runcache.Entry, error) {
			return f.fetchWith(ctx, strategy, app)
		}
	}

	hooks.OnFetchStart(ctx, app.Name, name)
	e, hit, err := f.downloads.Get(ctx, key, fetch)
	hooks.OnFetchComplete(ctx, app.Name, name, time.Since(start), err)
	if err != nil {
		return err
	}

	app.FileName = e.FileName
	app.DownloadURL = e.URL
	if e.Version != "" && !app.Pinned() {
		app.Version = e.Version
	}
	f.logger.Info("acquired", "app", app.Name, "source", name, "file", e.FileName, "version", app.VersionOrLatest(), "cached", hit)
	return nil
}

func (f *Fetcher) fetchWith(ctx context.Context, strategy Strategy, app *apk.App) (runcache.Entry, error) {
	var (
		res apk.Result
		err error
	)
	if app.Pinned() {
		f.logger.Debug("downloading specific version", "app", app.Name, "version", app.Version, "source", strategy.Name())
		res, err = strategy.FetchSpecific(ctx, app, app.Version)
	} else {
		f.logger.Debug("downloading latest version", "app", app.Name, "source", strategy.Name())
		res, err = strategy.FetchLatest(ctx, app)
	}
	if err != nil {
		return runcache.Entry{}, err
	}
	return f.normalized(ctx, runcache.Entry{FileName: res.FileName, URL: res.URL, Version: res.Version})
}

func (f *Fetcher) fetchDirect(ctx context.Context, app *apk.App) (runcache.Entry, error) {
	ext := strings.ToLower(integrations.URLExt(app.DirectURL))
	if ext == "" {
		ext = apk.ExtAPK
	}
	fileName := app.Name + ext
	if err := f.client.Download(ctx, app.DirectURL, f.dir, fileName, nil); err != nil {
		return runcache.Entry{}, errors.Download(directName, app.DirectURL, "direct download failed").WithCause(err)
	}
	return f.normalized(ctx, runcache.Entry{FileName: fileName, URL: app.DirectURL})
}

// normalized replaces a bundle in e by its merged package. Dry runs
// download nothing, so there is nothing to merge.
func (f *Fetcher) normalized(ctx context.Context, e runcache.Entry) (runcache.Entry, error) {
	if f.dryRun || f.normalizer == nil {
		return e, nil
	}
	out, err := f.normalizer.Normalize(ctx, e.FileName)
	if err != nil {
		return runcache.Entry{}, err
	}
	e.FileName = out
	return e, nil
}

// FetchResource resolves and downloads one patch resource. GitHub sources
// are resolved to the release asset matching filter and report the release
// tag as version; local sources name a file already present; any other
// source is downloaded as-is with version latest. Downloaded files are named
// after the SHA-256 of their URL so that distinct resources never collide.
func (f *Fetcher) FetchResource(ctx context.Context, source, filter string) (runcache.Entry, error) {
	source = strings.TrimSpace(source)
	e, hit, err := f.resources.Get(ctx, runcache.ResourceKey(source, apk.Latest, filter), func(ctx context.Context) (runcache.Entry, error) {
		return f.fetchResource(ctx, source, filter)
	})
	if err != nil {
		return runcache.Entry{}, err
	}
	f.logger.Debug("resource", "source", source, "file", e.FileName, "version", e.Version, "cached", hit)
	return e, nil
}

func (f *Fetcher) fetchResource(ctx context.Context, source, filter string) (runcache.Entry, error) {
	if IsLocal(source) {
		return runcache.Entry{FileName: LocalFile(source), URL: source, Version: apk.Latest}, nil
	}

	tag, fileURL := apk.Latest, source
	if github.Match(source) {
		var err error
		if tag, fileURL, err = f.resolver.GitHub().FindAsset(ctx, source, filter); err != nil {
			return runcache.Entry{}, err
		}
	}

	fileName := ResourceFileName(fileURL)
	if err := f.download(ctx, fileURL, fileName); err != nil {
		return runcache.Entry{}, err
	}
	return runcache.Entry{FileName: fileName, URL: fileURL, Version: tag}, nil
}

func (f *Fetcher) download(ctx context.Context, fileURL, fileName string) error {
	if github.Match(fileURL) {
		return f.resolver.GitHub().Download(ctx, fileURL, fileName)
	}
	if err := f.client.Download(ctx, fileURL, f.dir, fileName, nil); err != nil {
		return errors.Download(directName, fileURL, "download failed").WithCause(err)
	}
	return nil
}

// ResourceFileName returns the local name of a downloaded resource.
func ResourceFileName(fileURL string) string {
	return cache.Hash([]byte(fileURL)) + integrations.URLExt(fileURL)
}

// FetchResources resolves the patch tool and every patch bundle of app
// concurrently and records their files and versions on app.
func (f *Fetcher) FetchResources(ctx context.Context, app *apk.App) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := f.FetchResource(gctx, app.CLI.Source, github.CLIFilter)
		if err != nil {
			return err
		}
		app.CLI.FileName, app.CLI.Version = e.FileName, e.Version
		return nil
	})
	for i := range app.Bundles {
		b := &app.Bundles[i]
		g.Go(func() error {
			e, err := f.FetchResource(gctx, b.Source, github.PatchesFilter)
			if err != nil {
				return err
			}
			b.FileName, b.Version = e.FileName, e.Version
			return nil
		})
	}
	return g.Wait()
}

// FetchExtra downloads url into the work directory as fileName. GitHub
// sources are resolved to the first asset with the extension of fileName.
func (f *Fetcher) FetchExtra(ctx context.Context, url, fileName string) error {
	if err := errors.ValidateFileName(fileName); err != nil {
		return err
	}
	fileURL := url
	if github.Match(url) {
		var err error
		if _, fileURL, err = f.resolver.GitHub().FindAsset(ctx, url, regexp.QuoteMeta(filepath.Ext(fileName))+"$"); err != nil {
			return err
		}
	}
	return f.download(ctx, fileURL, fileName)
}
