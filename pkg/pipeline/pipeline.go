// Package pipeline runs the per-app stages of an apkfetch run across a
// bounded pool of workers.
//
// # Stages
//
// Every command drives the same stages in the same order for each app:
//
//  1. State: read the app's record from the prior-state store
//  2. Resources: resolve the patch tool and every patch bundle
//  3. Decision: classify the resolved bundles against the record
//  4. Acquisition: download and normalize the app package
//  5. Patch: run the patch tool and write the record back
//
// [Runner.Check] stops after stage 3, [Runner.Fetch] runs stage 4 only and
// [Runner.Build] runs all of them.
//
// # Failure isolation
//
// Apps are independent. A failing app is logged and recorded as a
// [Failure] in the [Report]; its siblings keep running. Only cancellation
// of the run's context stops the pool early.
//
// # Usage
//
//	runner := pipeline.NewRunner(run, patcher, pipeline.Options{MaxParallel: 4})
//	report, err := runner.Check(ctx, apps)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(strings.Join(report.Apps(), ","))
package pipeline

import (
	stderrors "errors"
	"time"

	"github.com/matzehuels/apkfetch/pkg/change"
	"github.com/matzehuels/apkfetch/pkg/config"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// DefaultSlowest is how many downloads the timing report lists.
const DefaultSlowest = 5

// Options configures a Runner.
type Options struct {
	// MaxParallel bounds the number of apps processed at once. Values
	// below one mean one.
	MaxParallel int

	// Extras are downloaded into the work directory before Build starts.
	Extras []config.ExtraFile

	// OnlyChanged makes Build skip apps whose bundles and package are
	// unchanged since the recorded build.
	OnlyChanged bool

	// Slowest is the length of the download timing report.
	// DefaultSlowest when zero, none when negative.
	Slowest int
}

func (o Options) limit(apps int) int {
	return max(1, min(apps, o.MaxParallel))
}

// Failure is the error one app ended with.
type Failure struct {
	App string
	Err error
}

// Error implements error.
func (f Failure) Error() string {
	return f.App + ": " + errors.UserMessage(f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error { return f.Err }

// Output is a file produced for one app.
type Output struct {
	App     string
	Path    string
	Version string
}

// Report summarises a pipeline run. Every slice keeps the input order of
// the apps it refers to.
type Report struct {
	RunID     string
	Decisions []change.Decision
	Outputs   []Output
	Skipped   []string
	Failures  []Failure

	Downloads int
	Slowest   []integrations.Timing
	Elapsed   time.Duration
}

// Apps returns the names of the apps that need rebuilding.
func (r *Report) Apps() []string {
	return change.Apps(r.Decisions)
}

// OK reports whether every app succeeded.
func (r *Report) OK() bool { return len(r.Failures) == 0 }

// Err joins the failures, or returns nil if there are none.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return stderrors.Join(errs...)
}
