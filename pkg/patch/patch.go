// Package patch runs the patch tool against an acquired package.
//
// The tool is a jar invoked as
//
//	java -jar <cli> patch <apk> -p <bundle>... -o <out> \
//	    [--keystore <ks>] [--options <json>] [-e <patch>]... [-d <patch>]... \
//	    [--rip-lib <arch>]...
//
// Success is a zero exit status and an output file on disk; anything else is
// a PATCHING error carrying the tool output.
package patch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/observability"
	"github.com/matzehuels/apkfetch/pkg/proc"
)

// Flags that sign with the keystore layout of older tool releases.
var oldKeyFlags = []string{
	"--keystore-entry-alias=alias",
	"--keystore-entry-password=ReVanced",
	"--keystore-password=ReVanced",
}

// Patcher patches packages found in Dir and writes results to OutDir.
type Patcher struct {
	Dir    string // work directory holding the package, the tool and the bundles
	OutDir string // Dir when empty
	Java   string // "java" when empty
	DryRun bool
	Runner proc.Runner
	Logger *log.Logger

	now func() time.Time
}

// New returns a Patcher working in dir.
func New(dir string, runner proc.Runner, logger *log.Logger) *Patcher {
	return &Patcher{Dir: dir, Java: "java", Runner: runner, Logger: logger, now: time.Now}
}

// OutputName returns the file name of the patched package of app, built
// at t, e.g. "Reyoutube-Version19-16-39-PatchVersionv4-6-0-2024APR25.0215PM-output.apk".
func OutputName(app *apk.App, t time.Time) string {
	patches := apk.Latest
	if len(app.Bundles) > 0 && app.Bundles[0].Version != "" {
		patches = app.Bundles[0].Version
	}
	stamp := strings.ToUpper(t.Format("2006Jan02.0304PM"))
	return "Re" + app.Name + "-Version" + apk.Slug(app.VersionOrLatest()) +
		"-PatchVersion" + apk.Slug(patches) + "-" + stamp + "-output" + apk.ExtAPK
}

// Command returns the tool invocation that patches app into output.
func (p *Patcher) Command(app *apk.App, output string) proc.Command {
	java := p.Java
	if java == "" {
		java = "java"
	}
	args := []string{"-jar", p.path(app.CLI.FileName), "patch", p.path(app.FileName)}
	for _, b := range app.Bundles {
		args = append(args, "-p", p.path(b.FileName))
	}
	args = append(args, "-o", output)
	if app.Keystore != "" {
		args = append(args, "--keystore", p.path(app.Keystore))
	}
	if app.OptionsFile != "" {
		args = append(args, "--options", p.path(app.OptionsFile))
	}
	if app.OldKey {
		args = append(args, oldKeyFlags...)
	}
	for _, name := range app.Include {
		args = append(args, "-e", name)
	}
	for _, name := range app.Exclude {
		args = append(args, "-d", name)
	}
	for _, arch := range apk.ExcludedArchs(app.Archs) {
		args = append(args, "--rip-lib", arch)
	}
	return proc.Command{Name: java, Args: args}
}

func (p *Patcher) path(name string) string {
	return filepath.Join(p.Dir, name)
}

func (p *Patcher) outDir() string {
	if p.OutDir != "" {
		return p.OutDir
	}
	return p.Dir
}

// Patch patches the acquired package of app and returns the output path.
// The package, the tool and every bundle must have been resolved.
func (p *Patcher) Patch(ctx context.Context, app *apk.App) (string, error) {
	if app.FileName == "" || app.CLI.FileName == "" || len(app.Bundles) == 0 {
		return "", errors.New(errors.ErrCodePatching, "%s: package, patch tool and bundles must be resolved first", app.Name)
	}
	for _, b := range app.Bundles {
		if b.FileName == "" {
			return "", errors.New(errors.ErrCodePatching, "%s: bundle %s was not resolved", app.Name, b.Source)
		}
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	output := filepath.Join(p.outDir(), OutputName(app, now()))
	cmd := p.Command(app, output)
	if p.DryRun {
		p.log().Info("dry run, not patching", "app", app.Name, "cmd", cmd.String())
		return output, nil
	}
	if err := os.MkdirAll(p.outDir(), 0o755); err != nil {
		return "", errors.Patching(output, err, "create output dir")
	}
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		return "", errors.Patching(output, err, "remove stale output")
	}

	start := time.Now()
	err := p.run(ctx, cmd, output)
	observability.Pipeline().OnPatchComplete(ctx, app.Name, time.Since(start), err)
	if err != nil {
		return "", err
	}
	p.log().Info("patched", "app", app.Name, "output", filepath.Base(output), "duration", time.Since(start).Round(time.Millisecond))
	return output, nil
}

func (p *Patcher) run(ctx context.Context, cmd proc.Command, output string) error {
	res, err := p.Runner.Run(ctx, cmd)
	if err != nil {
		return errors.Patching(output, err, "patch tool failed")
	}
	if !res.OK() {
		return errors.Patching(output, nil, "patch tool exited with status %d: %s", res.ExitCode, res.Output())
	}
	if _, err := os.Stat(output); err != nil {
		return errors.Patching(output, err, "patch tool produced no output")
	}
	return nil
}

func (p *Patcher) log() *log.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return log.New(io.Discard)
}
