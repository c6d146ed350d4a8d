// Package source maps configured app sources to acquisition strategies and
// runs acquisitions through the run caches.
//
// # Resolution
//
// A [Resolver] holds an explicit, ordered table of (name, predicate,
// strategy) entries. The first predicate that accepts a source URL wins, so
// more specific prefixes come first:
//
//	github     https://github.com
//	apkpure    https://apkpure.net
//	apksos     https://apksos.com/download-app
//	uptodown   *en.uptodown.com/android
//	apkmirror  https://www.apkmirror.com
//	apkmonk    https://www.apkmonk.com
//	gdrive     https://drive.google.com/uc?id=
//	apkeep     apkeep...
//	local      local://
//
// A source no entry accepts is a NO_STRATEGY error.
//
// # Fetching
//
// A [Fetcher] acquires app packages and patch resources. Identical requests
// from concurrent workers are served from the run's [runcache.Table]s, so
// each distinct file is downloaded once per run.
package source

import (
	"context"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkeep"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkmirror"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkmonk"
	"github.com/matzehuels/apkfetch/pkg/integrations/apkpure"
	"github.com/matzehuels/apkfetch/pkg/integrations/apksos"
	"github.com/matzehuels/apkfetch/pkg/integrations/gdrive"
	"github.com/matzehuels/apkfetch/pkg/integrations/github"
	"github.com/matzehuels/apkfetch/pkg/integrations/uptodown"
	"github.com/matzehuels/apkfetch/pkg/proc"
)

// Strategy acquires application packages from one kind of source.
//
// Both methods download into the run's work directory and return the local
// file name and the resolved URL. Sources that can tell which version they
// served also fill in Result.Version.
type Strategy interface {
	Name() string
	FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error)
	FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error)
}

// Env carries what strategy constructors need.
type Env struct {
	Options     integrations.Options
	Runner      proc.Runner // external tools (apkeep)
	GitHubToken string
	GitHubAPI   string // API endpoint, api.github.com when empty
	Apkeep      apkeep.Credentials
}

type entry struct {
	name     string
	match    func(source string) bool
	strategy Strategy
}

// Resolver selects the strategy for a source URL.
type Resolver struct {
	entries []entry
	github  *github.Strategy
}

// NewResolver builds the resolution table.
func NewResolver(env Env) *Resolver {
	opts := env.Options
	gh := github.New(opts, env.GitHubToken)
	if env.GitHubAPI != "" {
		gh.SetBaseURL(env.GitHubAPI)
	}
	return &Resolver{
		github: gh,
		entries: []entry{
			{github.Name, github.Match, gh},
			{apkpure.Name, apkpure.Match, apkpure.New(opts)},
			{apksos.Name, apksos.Match, apksos.New(opts)},
			{uptodown.Name, uptodown.Match, uptodown.New(opts)},
			{apkmirror.Name, apkmirror.Match, apkmirror.New(opts)},
			{apkmonk.Name, apkmonk.Match, apkmonk.New(opts)},
			{gdrive.Name, gdrive.Match, gdrive.New(opts)},
			{apkeep.Name, apkeep.Match, apkeep.New(opts, env.Runner, env.Apkeep)},
			{LocalName, IsLocal, NewLocal(opts.Dir)},
		},
	}
}

// Resolve returns the first strategy whose predicate accepts source.
func (r *Resolver) Resolve(source string) (Strategy, error) {
	for _, e := range r.entries {
		if e.match(source) {
			return e.strategy, nil
		}
	}
	return nil, &errors.Error{
		Code:    errors.ErrCodeNoStrategy,
		URL:     source,
		Message: "no acquisition strategy handles this source",
	}
}

// Names lists the strategies in resolution order.
func (r *Resolver) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// GitHub returns the release strategy, which also resolves patch resources.
func (r *Resolver) GitHub() *github.Strategy { return r.github }
