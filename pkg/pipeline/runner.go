package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/change"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/patch"
	"github.com/matzehuels/apkfetch/pkg/session"
	"github.com/matzehuels/apkfetch/pkg/state"
)

// Runner executes pipeline stages for a set of apps within one run.
//
// The Runner holds no per-app state between calls; everything shared
// between workers lives in the run (caches, recorder, state store).
type Runner struct {
	run     *session.Run
	patcher *patch.Patcher
	opts    Options
	logger  *log.Logger
}

// NewRunner creates a runner for run. patcher may be nil for runners that
// never Build.
func NewRunner(run *session.Run, patcher *patch.Patcher, opts Options) *Runner {
	if opts.Slowest == 0 {
		opts.Slowest = DefaultSlowest
	}
	return &Runner{
		run:     run,
		patcher: patcher,
		opts:    opts,
		logger:  run.Logger,
	}
}

// Check resolves the patch resources of every app and reports the apps
// whose bundles changed since their recorded build.
func (r *Runner) Check(ctx context.Context, apps []*apk.App) (*Report, error) {
	decisions := make([]*change.Decision, len(apps))
	failures := r.forEach(ctx, apps, func(ctx context.Context, i int, app *apk.App) error {
		rec, err := r.prepare(ctx, app)
		if err != nil {
			return err
		}
		decisions[i] = r.decide(app, rec)
		return nil
	})

	rep := r.report(failures)
	rep.Decisions = compact(decisions)
	r.logger.Info("check complete", "apps", len(apps), "rebuild", len(rep.Decisions), "failed", len(rep.Failures))
	return rep, ctx.Err()
}

// Fetch acquires and normalizes the package of every app.
func (r *Runner) Fetch(ctx context.Context, apps []*apk.App) (*Report, error) {
	outputs := make([]*Output, len(apps))
	failures := r.forEach(ctx, apps, func(ctx context.Context, i int, app *apk.App) error {
		if err := r.run.Fetcher.FetchApp(ctx, app); err != nil {
			return err
		}
		outputs[i] = &Output{App: app.Name, Path: filepath.Join(r.run.Dir, app.FileName), Version: app.VersionOrLatest()}
		return nil
	})

	rep := r.report(failures)
	rep.Outputs = compact(outputs)
	return rep, ctx.Err()
}

// Build downloads the extra files, then runs every stage for every app.
// Failing to fetch an extra file aborts the run before any app starts.
func (r *Runner) Build(ctx context.Context, apps []*apk.App) (*Report, error) {
	if r.patcher == nil {
		return nil, errors.New(errors.ErrCodeInternal, "runner has no patcher")
	}
	if err := r.fetchExtras(ctx); err != nil {
		return nil, err
	}

	decisions := make([]*change.Decision, len(apps))
	outputs := make([]*Output, len(apps))
	skipped := make([]bool, len(apps))
	failures := r.forEach(ctx, apps, func(ctx context.Context, i int, app *apk.App) error {
		rec, err := r.prepare(ctx, app)
		if err != nil {
			return err
		}
		decisions[i] = r.decide(app, rec)
		if err := r.run.Fetcher.FetchApp(ctx, app); err != nil {
			return err
		}
		if r.opts.OnlyChanged && decisions[i] == nil && !r.packageChanged(app, rec) {
			r.logger.Info("unchanged, skipping", "app", app.Name, "version", app.VersionOrLatest())
			skipped[i] = true
			return nil
		}

		out, err := r.patcher.Patch(ctx, app)
		if err != nil {
			return err
		}
		outputs[i] = &Output{App: app.Name, Path: out, Version: app.VersionOrLatest()}
		return r.record(ctx, app)
	})

	rep := r.report(failures)
	rep.Decisions = compact(decisions)
	rep.Outputs = compact(outputs)
	for i, s := range skipped {
		if s {
			rep.Skipped = append(rep.Skipped, apps[i].Name)
		}
	}
	r.logger.Info("build complete", "apps", len(apps), "patched", len(rep.Outputs), "skipped", len(rep.Skipped), "failed", len(rep.Failures))
	return rep, ctx.Err()
}

// forEach runs fn for every app on at most MaxParallel workers and
// collects the failures in app order. fn errors never cancel siblings.
func (r *Runner) forEach(ctx context.Context, apps []*apk.App, fn func(context.Context, int, *apk.App) error) []Failure {
	errs := make([]error, len(apps))

	var g errgroup.Group
	g.SetLimit(r.opts.limit(len(apps)))
	for i, app := range apps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			r.logger.Debug("processing", "app", app.Name)
			if err := fn(ctx, i, app); err != nil {
				r.logger.Error("app failed", "app", app.Name, "code", errors.GetCode(err), "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{App: apps[i].Name, Err: err})
		}
	}
	return failures
}

// prepare loads the record of app and resolves its patch resources.
func (r *Runner) prepare(ctx context.Context, app *apk.App) (state.Record, error) {
	rec, err := r.run.State.Get(ctx, app.Name)
	if err != nil {
		return state.Record{}, err
	}
	if err := r.run.Fetcher.FetchResources(ctx, app); err != nil {
		return state.Record{}, err
	}
	return rec, nil
}

func (r *Runner) decide(app *apk.App, rec state.Record) *change.Decision {
	d, ok := change.Decide(app.Name, rec.Versions(), rec.Sources(), app.BundleVersions(), app.BundleSources())
	if !ok {
		r.logger.Debug("bundles unchanged", "app", app.Name, "versions", app.BundleVersions())
		return nil
	}
	r.logger.Info("rebuild required", "app", app.Name, "reason", d.Reason, "summary", d.Summary())
	return &d
}

// packageChanged compares the acquired package against the record. An
// unparsable version counts as changed.
func (r *Runner) packageChanged(app *apk.App, rec state.Record) bool {
	trigger, err := change.ShouldTrigger(rec.AppVersion, rec.AppSource, app.VersionOrLatest(), app.Source)
	if err != nil {
		r.logger.Warn("cannot compare versions", "app", app.Name, "old", rec.AppVersion, "new", app.VersionOrLatest(), "error", err)
		return true
	}
	return trigger
}

// record writes the build of app back to the state store. Read-only
// stores are not an error.
func (r *Runner) record(ctx context.Context, app *apk.App) error {
	if r.run.DryRun {
		return nil
	}
	err := r.run.State.Put(ctx, app.Name, state.FromApp(app, time.Now().UTC()))
	if errors.Is(err, errors.ErrCodeUnsupported) {
		r.logger.Debug("state store is read-only", "app", app.Name)
		return nil
	}
	return err
}

func (r *Runner) fetchExtras(ctx context.Context) error {
	if len(r.opts.Extras) == 0 || r.run.DryRun {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.limit(len(r.opts.Extras)))
	for _, x := range r.opts.Extras {
		g.Go(func() error {
			if err := r.run.Fetcher.FetchExtra(gctx, x.URL, x.Name); err != nil {
				return err
			}
			r.logger.Info("extra file", "file", x.Name)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) report(failures []Failure) *Report {
	rep := &Report{
		RunID:     r.run.ID,
		Failures:  failures,
		Downloads: r.run.Recorder.Len(),
		Elapsed:   r.run.Elapsed(),
	}
	if r.opts.Slowest > 0 {
		rep.Slowest = r.run.Recorder.Slowest(r.opts.Slowest)
	}
	for _, t := range rep.Slowest {
		r.logger.Info("download", "file", t.FileName, "duration", t.Duration.Round(time.Millisecond))
	}
	return rep
}

func compact[T any](items []*T) []T {
	var out []T
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out
}
