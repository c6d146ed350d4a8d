package pipeline

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/change"
	"github.com/matzehuels/apkfetch/pkg/config"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/patch"
	"github.com/matzehuels/apkfetch/pkg/proc"
	"github.com/matzehuels/apkfetch/pkg/session"
	"github.com/matzehuels/apkfetch/pkg/state"
)

type fakeStore struct {
	mu       sync.Mutex
	records  map[string]state.Record
	fail     map[string]bool
	delay    map[string]time.Duration
	readOnly bool
}

func newStore() *fakeStore {
	return &fakeStore{records: map[string]state.Record{}, fail: map[string]bool{}, delay: map[string]time.Duration{}}
}

func (s *fakeStore) Get(_ context.Context, app string) (state.Record, error) {
	s.mu.Lock()
	d := s.delay[app]
	s.mu.Unlock()
	time.Sleep(d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[app] {
		return state.Record{}, errors.New(errors.ErrCodeNetwork, "feed unavailable")
	}
	return s.records[app], nil
}

func (s *fakeStore) Put(_ context.Context, app string, rec state.Record) error {
	if s.readOnly {
		return errors.New(errors.ErrCodeUnsupported, "read-only")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[app] = rec
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) get(app string) (state.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[app]
	return rec, ok
}

func newRun(t *testing.T, dryRun bool) (*session.Run, *fakeStore) {
	t.Helper()
	dir := t.TempDir()
	run, err := session.New(context.Background(), session.Options{
		WorkDir: filepath.Join(dir, "apks"),
		NoCache: true,
		DryRun:  dryRun,
		State:   state.Config{Backend: state.BackendFile, Path: filepath.Join(dir, "updates.json")},
	})
	if err != nil {
		t.Fatalf("session.New() error: %v", err)
	}
	t.Cleanup(func() { run.Close() })
	store := newStore()
	run.State = store
	return run, store
}

// localApp returns an app served entirely from the work directory.
func localApp(t *testing.T, run *session.Run, name string) *apk.App {
	t.Helper()
	if err := os.WriteFile(filepath.Join(run.Dir, name+".apk"), []byte("apk"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &apk.App{
		Name:        name,
		PackageName: "com.example." + name,
		Source:      "local://" + name + ".apk",
		CLI:         apk.BundleRef{Source: "local://cli.jar"},
		Bundles:     []apk.BundleRef{{Source: "local://patches.rvp"}},
	}
}

func upToDate(app *apk.App) state.Record {
	return state.Record{
		AppVersion:      apk.Latest,
		AppSource:       app.Source,
		PatchesVersions: []string{apk.Latest},
		PatchesSources:  []string{"local://patches.rvp"},
	}
}

// patchTool writes the -o file and tracks how many invocations overlap.
type patchTool struct {
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
	delay   time.Duration
}

func (p *patchTool) Run(_ context.Context, cmd proc.Command) (proc.Result, error) {
	p.calls.Add(1)
	n := p.running.Add(1)
	defer p.running.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(p.delay)
	if i := slices.Index(cmd.Args, "-o"); i >= 0 {
		if err := os.WriteFile(cmd.Args[i+1], []byte("patched"), 0o644); err != nil {
			return proc.Result{}, err
		}
	}
	return proc.Result{}, nil
}

func newPatcher(run *session.Run, tool *patchTool) *patch.Patcher {
	p := patch.New(run.Dir, tool, nil)
	p.DryRun = run.DryRun
	return p
}

func TestCheck(t *testing.T) {
	run, store := newRun(t, false)
	same := localApp(t, run, "same")
	fresh := localApp(t, run, "fresh")
	moved := localApp(t, run, "moved")
	broken := localApp(t, run, "broken")

	store.records["same"] = upToDate(same)
	rec := upToDate(moved)
	rec.PatchesSources = []string{"local://old.rvp"}
	store.records["moved"] = rec
	store.fail["broken"] = true

	rep, err := NewRunner(run, nil, Options{MaxParallel: 2}).Check(context.Background(), []*apk.App{same, fresh, moved, broken})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}

	if got := rep.Apps(); !slices.Equal(got, []string{"fresh", "moved"}) {
		t.Errorf("Apps() = %v", got)
	}
	if rep.Decisions[0].Reason != change.FreshBuild || rep.Decisions[1].Reason != change.SourceChange {
		t.Errorf("decisions = %+v", rep.Decisions)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].App != "broken" || !errors.Is(rep.Failures[0].Err, errors.ErrCodeNetwork) {
		t.Errorf("failures = %+v", rep.Failures)
	}
	if rep.OK() || rep.RunID != run.ID {
		t.Errorf("report = %+v", rep)
	}
	if fresh.CLI.FileName != "cli.jar" || fresh.BundleFiles()[0] != "patches.rvp" {
		t.Errorf("resources not resolved: %+v", fresh)
	}
	if _, ok := store.get("fresh"); ok {
		t.Error("check must not write state")
	}
}

func TestCheckCancelled(t *testing.T) {
	run, _ := newRun(t, false)
	apps := []*apk.App{localApp(t, run, "a"), localApp(t, run, "b")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := NewRunner(run, nil, Options{MaxParallel: 1}).Check(ctx, apps)
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("Check() error = %v, want context.Canceled", err)
	}
	if len(rep.Failures) != 2 || !stderrors.Is(rep.Err(), context.Canceled) {
		t.Errorf("failures = %+v", rep.Failures)
	}
}

func TestCheckSharedBundleSurvivesSiblingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/patches.rvp":
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte("rvp"))
		case "/broken-cli.jar":
			time.Sleep(100 * time.Millisecond)
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	run, store := newRun(t, false)
	shared := apk.BundleRef{Source: srv.URL + "/patches.rvp"}
	broken := &apk.App{
		Name:    "broken",
		Source:  "local://broken.apk",
		CLI:     apk.BundleRef{Source: srv.URL + "/broken-cli.jar"},
		Bundles: []apk.BundleRef{shared},
	}
	healthy := &apk.App{
		Name:    "healthy",
		Source:  "local://healthy.apk",
		CLI:     apk.BundleRef{Source: "local://cli.jar"},
		Bundles: []apk.BundleRef{shared},
	}
	// broken starts the shared bundle download; healthy joins it later.
	store.delay["healthy"] = 50 * time.Millisecond

	rep, err := NewRunner(run, nil, Options{MaxParallel: 2}).Check(context.Background(), []*apk.App{healthy, broken})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].App != "broken" {
		t.Fatalf("failures = %v, want only broken", rep.Failures)
	}
	if stderrors.Is(rep.Failures[0].Err, context.Canceled) {
		t.Errorf("broken should fail on its own patch tool, got %v", rep.Failures[0].Err)
	}
	if got := rep.Apps(); !slices.Equal(got, []string{"healthy"}) {
		t.Errorf("Apps() = %v", got)
	}
	data, err := os.ReadFile(filepath.Join(run.Dir, healthy.BundleFiles()[0]))
	if err != nil || string(data) != "rvp" {
		t.Errorf("shared bundle = %q, %v", data, err)
	}
}

func TestFetch(t *testing.T) {
	run, _ := newRun(t, false)
	ok := localApp(t, run, "ok")
	missing := &apk.App{Name: "missing", PackageName: "com.example.missing", Source: "local://missing.apk"}

	rep, err := NewRunner(run, nil, Options{MaxParallel: 4}).Fetch(context.Background(), []*apk.App{ok, missing})
	if err != nil {
		t.Fatal(err)
	}
	want := Output{App: "ok", Path: filepath.Join(run.Dir, "ok.apk"), Version: apk.Latest}
	if len(rep.Outputs) != 1 || rep.Outputs[0] != want {
		t.Errorf("outputs = %+v", rep.Outputs)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, errors.ErrCodeNotFound) {
		t.Errorf("failures = %+v", rep.Failures)
	}
}

func TestBuild(t *testing.T) {
	run, store := newRun(t, false)
	good := localApp(t, run, "good")
	missing := &apk.App{
		Name:        "missing",
		PackageName: "com.example.missing",
		Source:      "local://missing.apk",
		CLI:         apk.BundleRef{Source: "local://cli.jar"},
		Bundles:     []apk.BundleRef{{Source: "local://patches.rvp"}},
	}
	tool := &patchTool{}

	rep, err := NewRunner(run, newPatcher(run, tool), Options{MaxParallel: 2}).Build(context.Background(), []*apk.App{good, missing})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if len(rep.Outputs) != 1 || rep.Outputs[0].App != "good" {
		t.Fatalf("outputs = %+v", rep.Outputs)
	}
	if _, err := os.Stat(rep.Outputs[0].Path); err != nil {
		t.Errorf("patched file missing: %v", err)
	}
	if len(rep.Failures) != 1 || rep.Failures[0].App != "missing" {
		t.Errorf("failures = %+v", rep.Failures)
	}
	if tool.calls.Load() != 1 {
		t.Errorf("patch tool ran %d times", tool.calls.Load())
	}

	rec, ok := store.get("good")
	if !ok {
		t.Fatal("state not written for good")
	}
	if rec.AppSource != good.Source || !slices.Equal(rec.PatchesVersions, []string{apk.Latest}) || rec.PatchedAt.IsZero() {
		t.Errorf("record = %+v", rec)
	}
	if _, ok := store.get("missing"); ok {
		t.Error("state written for a failed app")
	}
}

func TestBuildOnlyChanged(t *testing.T) {
	run, store := newRun(t, false)
	same := localApp(t, run, "same")
	fresh := localApp(t, run, "fresh")
	store.records["same"] = upToDate(same)
	tool := &patchTool{}

	rep, err := NewRunner(run, newPatcher(run, tool), Options{MaxParallel: 2, OnlyChanged: true}).
		Build(context.Background(), []*apk.App{same, fresh})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(rep.Skipped, []string{"same"}) || len(rep.Outputs) != 1 || rep.Outputs[0].App != "fresh" {
		t.Errorf("report = %+v", rep)
	}
	if tool.calls.Load() != 1 {
		t.Errorf("patch tool ran %d times", tool.calls.Load())
	}
}

func TestBuildDryRun(t *testing.T) {
	run, store := newRun(t, true)
	tool := &patchTool{}
	rep, err := NewRunner(run, newPatcher(run, tool), Options{MaxParallel: 1}).
		Build(context.Background(), []*apk.App{localApp(t, run, "a")})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() || len(rep.Outputs) != 1 {
		t.Errorf("report = %+v", rep)
	}
	if tool.calls.Load() != 0 {
		t.Error("patch tool ran in dry run")
	}
	if _, ok := store.get("a"); ok {
		t.Error("state written in dry run")
	}
}

func TestBuildReadOnlyState(t *testing.T) {
	run, store := newRun(t, false)
	store.readOnly = true
	rep, err := NewRunner(run, newPatcher(run, &patchTool{}), Options{MaxParallel: 1}).
		Build(context.Background(), []*apk.App{localApp(t, run, "a")})
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() {
		t.Errorf("read-only store should not fail the build: %v", rep.Err())
	}
}

func TestBuildParallelismLimit(t *testing.T) {
	run, _ := newRun(t, false)
	var apps []*apk.App
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		apps = append(apps, localApp(t, run, name))
	}
	tool := &patchTool{delay: 20 * time.Millisecond}

	rep, err := NewRunner(run, newPatcher(run, tool), Options{MaxParallel: 2}).Build(context.Background(), apps)
	if err != nil {
		t.Fatal(err)
	}
	if !rep.OK() || len(rep.Outputs) != len(apps) {
		t.Fatalf("report = %+v", rep)
	}
	if peak := tool.peak.Load(); peak < 1 || peak > 2 {
		t.Errorf("peak concurrency = %d, want 1..2", peak)
	}
	for i, out := range rep.Outputs {
		if out.App != apps[i].Name {
			t.Errorf("outputs out of order: %+v", rep.Outputs)
		}
	}
}

func TestBuildExtras(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tool.jar" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("jar"))
	}))
	defer srv.Close()

	t.Run("downloaded", func(t *testing.T) {
		run, _ := newRun(t, false)
		opts := Options{MaxParallel: 1, Extras: []config.ExtraFile{{URL: srv.URL + "/tool.jar", Name: "tool.jar"}}}
		if _, err := NewRunner(run, newPatcher(run, &patchTool{}), opts).Build(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
		if data, err := os.ReadFile(filepath.Join(run.Dir, "tool.jar")); err != nil || string(data) != "jar" {
			t.Errorf("extra file = %q, %v", data, err)
		}
	})

	t.Run("missing aborts", func(t *testing.T) {
		run, _ := newRun(t, false)
		tool := &patchTool{}
		opts := Options{MaxParallel: 1, Extras: []config.ExtraFile{{URL: srv.URL + "/nope.jar", Name: "nope.jar"}}}
		_, err := NewRunner(run, newPatcher(run, tool), opts).Build(context.Background(), []*apk.App{localApp(t, run, "a")})
		if err == nil {
			t.Fatal("Build() = nil, want error")
		}
		if tool.calls.Load() != 0 {
			t.Error("apps ran after a failed extra download")
		}
	})
}

func TestFailureError(t *testing.T) {
	f := Failure{App: "youtube", Err: errors.New(errors.ErrCodePatching, "tool exited")}
	if f.Error() != "youtube: tool exited" || !errors.Is(f, errors.ErrCodePatching) {
		t.Errorf("Failure = %q", f.Error())
	}
	if (&Report{}).Err() != nil {
		t.Error("empty report should have no error")
	}
}

func TestOptionsLimit(t *testing.T) {
	tests := []struct{ max, apps, want int }{
		{4, 10, 4},
		{4, 2, 2},
		{0, 3, 1},
		{4, 0, 1},
	}
	for _, tt := range tests {
		if got := (Options{MaxParallel: tt.max}).limit(tt.apps); got != tt.want {
			t.Errorf("limit(max=%d, apps=%d) = %d, want %d", tt.max, tt.apps, got, tt.want)
		}
	}
}
