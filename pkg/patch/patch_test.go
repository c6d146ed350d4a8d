package patch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/proc"
)

var stamp = time.Date(2024, time.April, 25, 14, 15, 0, 0, time.UTC)

func testApp() *apk.App {
	return &apk.App{
		Name:     "youtube",
		Version:  "19.16.39",
		FileName: "youtube.apk",
		CLI:      apk.BundleRef{FileName: "cli.jar"},
		Bundles: []apk.BundleRef{
			{FileName: "a.rvp", Version: "v4.6.0"},
			{FileName: "b.rvp", Version: "v1.0"},
		},
	}
}

// fakeTool writes to the -o path unless code is non-zero.
func fakeTool(t *testing.T, calls *int, code int) proc.Runner {
	t.Helper()
	return proc.RunnerFunc(func(_ context.Context, cmd proc.Command) (proc.Result, error) {
		*calls++
		if code != 0 {
			return proc.Result{ExitCode: code, Stdout: []byte("SEVERE: patch failed")}, nil
		}
		if i := slices.Index(cmd.Args, "-o"); i >= 0 {
			if err := os.WriteFile(cmd.Args[i+1], []byte("patched"), 0o644); err != nil {
				t.Fatal(err)
			}
		}
		return proc.Result{}, nil
	})
}

func TestOutputName(t *testing.T) {
	want := "Reyoutube-Version19-16-39-PatchVersionv4-6-0-2024APR25.0215PM-output.apk"
	if got := OutputName(testApp(), stamp); got != want {
		t.Errorf("OutputName() = %q, want %q", got, want)
	}
	unpinned := &apk.App{Name: "x"}
	if got := OutputName(unpinned, stamp); got != "Rex-Versionlatest-PatchVersionlatest-2024APR25.0215PM-output.apk" {
		t.Errorf("OutputName(unpinned) = %q", got)
	}
}

func TestCommand(t *testing.T) {
	p := New("/w", nil, nil)
	app := testApp()
	app.Keystore = "revanced.keystore"
	app.OptionsFile = "options.json"
	app.Include = []string{"Custom branding"}
	app.Exclude = []string{"Hide ads"}
	app.Archs = []string{"arm64-v8a", "armeabi-v7a"}
	app.OldKey = true

	got := p.Command(app, "/out/x.apk")
	want := []string{
		"-jar", "/w/cli.jar", "patch", "/w/youtube.apk",
		"-p", "/w/a.rvp", "-p", "/w/b.rvp",
		"-o", "/out/x.apk",
		"--keystore", "/w/revanced.keystore",
		"--options", "/w/options.json",
		"--keystore-entry-alias=alias", "--keystore-entry-password=ReVanced", "--keystore-password=ReVanced",
		"-e", "Custom branding",
		"-d", "Hide ads",
		"--rip-lib", "x86", "--rip-lib", "x86_64",
	}
	if got.Name != "java" || !slices.Equal(got.Args, want) {
		t.Errorf("Command() =\n%v\nwant\n%v", got.Args, want)
	}
}

func TestCommandMinimal(t *testing.T) {
	got := New("/w", nil, nil).Command(testApp(), "/w/o.apk")
	for _, flag := range []string{"--keystore", "--options", "--rip-lib", "-e", "-d"} {
		if slices.Contains(got.Args, flag) {
			t.Errorf("unexpected %s in %v", flag, got.Args)
		}
	}
}

func TestPatch(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	p := New(dir, fakeTool(t, &calls, 0), nil)
	p.OutDir = filepath.Join(dir, "out")
	p.now = func() time.Time { return stamp }

	out, err := p.Patch(context.Background(), testApp())
	if err != nil {
		t.Fatalf("Patch() error: %v", err)
	}
	if calls != 1 || filepath.Dir(out) != p.OutDir {
		t.Errorf("out = %q after %d calls", out, calls)
	}
	if data, _ := os.ReadFile(out); string(data) != "patched" {
		t.Errorf("output = %q", data)
	}
}

func TestPatchFailures(t *testing.T) {
	tests := []struct {
		name   string
		runner func(t *testing.T, calls *int) proc.Runner
		app    func() *apk.App
		calls  int
	}{
		{
			name:   "non-zero exit",
			runner: func(t *testing.T, calls *int) proc.Runner { return fakeTool(t, calls, 1) },
			app:    testApp,
			calls:  1,
		},
		{
			name: "no output",
			runner: func(t *testing.T, calls *int) proc.Runner {
				return proc.RunnerFunc(func(context.Context, proc.Command) (proc.Result, error) {
					*calls++
					return proc.Result{}, nil
				})
			},
			app:   testApp,
			calls: 1,
		},
		{
			name:   "unresolved bundle",
			runner: func(t *testing.T, calls *int) proc.Runner { return fakeTool(t, calls, 0) },
			app: func() *apk.App {
				a := testApp()
				a.Bundles[1].FileName = ""
				return a
			},
		},
		{
			name:   "no bundles",
			runner: func(t *testing.T, calls *int) proc.Runner { return fakeTool(t, calls, 0) },
			app: func() *apk.App {
				a := testApp()
				a.Bundles = nil
				return a
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := New(t.TempDir(), tt.runner(t, &calls), nil)
			_, err := p.Patch(context.Background(), tt.app())
			if !errors.Is(err, errors.ErrCodePatching) {
				t.Fatalf("expected PATCHING, got %v", err)
			}
			if calls != tt.calls {
				t.Errorf("tool ran %d times, want %d", calls, tt.calls)
			}
		})
	}
}

func TestPatchIgnoresStaleOutput(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	silent := proc.RunnerFunc(func(context.Context, proc.Command) (proc.Result, error) {
		calls++
		return proc.Result{}, nil
	})
	p := New(dir, silent, nil)
	p.now = func() time.Time { return stamp }

	// An earlier build in the same minute left its output behind.
	stale := filepath.Join(dir, OutputName(testApp(), stamp))
	if err := os.WriteFile(stale, []byte("old build"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Patch(context.Background(), testApp()); !errors.Is(err, errors.ErrCodePatching) {
		t.Fatalf("expected PATCHING for a run that wrote nothing, got %v", err)
	}
	if calls != 1 {
		t.Errorf("tool ran %d times", calls)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale output was not removed")
	}
}

func TestPatchDryRun(t *testing.T) {
	calls := 0
	p := New(t.TempDir(), fakeTool(t, &calls, 0), nil)
	p.DryRun = true
	if _, err := p.Patch(context.Background(), testApp()); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("tool ran %d times in dry run", calls)
	}
}
