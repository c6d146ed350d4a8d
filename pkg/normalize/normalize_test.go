package normalize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/proc"
)

// fakeMerger writes content to the -o path and exits with code.
func fakeMerger(t *testing.T, calls *int, content string, code int) proc.Runner {
	t.Helper()
	return proc.RunnerFunc(func(_ context.Context, cmd proc.Command) (proc.Result, error) {
		*calls++
		if code != 0 {
			return proc.Result{ExitCode: code, Stderr: []byte("corrupt archive")}, nil
		}
		for i, a := range cmd.Args {
			if a == "-o" && i+1 < len(cmd.Args) {
				if err := os.WriteFile(cmd.Args[i+1], []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}
		}
		return proc.Result{}, nil
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestNormalizeSingleFileIsNoop(t *testing.T) {
	calls := 0
	n := New(t.TempDir(), fakeMerger(t, &calls, "", 0), nil)
	got, err := n.Normalize(context.Background(), "youtube.apk")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "youtube.apk" || calls != 0 {
		t.Errorf("got %q with %d calls, want youtube.apk with 0", got, calls)
	}
}

func TestNormalizeMergesBundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "youtube.apkm"), "bundle")

	calls := 0
	n := New(dir, fakeMerger(t, &calls, "merged", 0), nil)
	got, err := n.Normalize(context.Background(), "youtube.apkm")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "youtube.apk" {
		t.Errorf("got %q, want youtube.apk", got)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "youtube.apk"))
	if string(data) != "merged" {
		t.Errorf("output = %q, want merged", data)
	}
}

func TestNormalizeRemovesStaleOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.xapk"), "bundle")
	writeFile(t, filepath.Join(dir, "app.apk"), "stale")

	calls := 0
	// the merger "succeeds" without writing anything
	n := New(dir, proc.RunnerFunc(func(context.Context, proc.Command) (proc.Result, error) {
		calls++
		return proc.Result{}, nil
	}), nil)

	_, err := n.Normalize(context.Background(), "app.xapk")
	if !errors.Is(err, errors.ErrCodeNormalization) {
		t.Fatalf("err = %v, want NORMALIZATION", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "app.apk")); !os.IsNotExist(statErr) {
		t.Error("stale output should have been removed")
	}
}

func TestNormalizeTwiceProducesFreshOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.apks"), "bundle")
	ctx := context.Background()

	calls := 0
	first := New(dir, fakeMerger(t, &calls, "first", 0), nil)
	if _, err := first.Normalize(ctx, "app.apks"); err != nil {
		t.Fatal(err)
	}
	second := New(dir, fakeMerger(t, &calls, "second", 0), nil)
	if _, err := second.Normalize(ctx, "app.apks"); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "app.apk"))
	if string(data) != "second" || calls != 2 {
		t.Errorf("output = %q after %d calls, want second after 2", data, calls)
	}
}

func TestNormalizeNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.apkm"), "bundle")

	calls := 0
	n := New(dir, fakeMerger(t, &calls, "", 1), nil)
	_, err := n.Normalize(context.Background(), "app.apkm")
	if !errors.Is(err, errors.ErrCodeNormalization) {
		t.Fatalf("err = %v, want NORMALIZATION", err)
	}
	if got := errors.GetURL(err); got != filepath.Join(dir, "app.apkm") {
		t.Errorf("error path = %q", got)
	}
}

func TestNormalizeMissingInput(t *testing.T) {
	calls := 0
	n := New(t.TempDir(), fakeMerger(t, &calls, "", 0), nil)
	if _, err := n.Normalize(context.Background(), "missing.apkm"); !errors.Is(err, errors.ErrCodeNormalization) {
		t.Errorf("err = %v, want NORMALIZATION", err)
	}
	if calls != 0 {
		t.Error("merger should not run without input")
	}
}

func TestOutputName(t *testing.T) {
	tests := map[string]string{
		"youtube.apkm": "youtube.apk",
		"a.b.xapk":     "a.b.apk",
		"spotify.zip":  "spotify.apk",
		"noext":        "noext.apk",
	}
	for in, want := range tests {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}
