// Package normalize turns multi-part application archives (.apkm, .xapk,
// .apks, .zip) into a single installable .apk using an external merge tool.
package normalize

import (
	"context"
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

// DefaultEditorJar is the merge tool jar name inside the work directory.
const DefaultEditorJar = "apkeditor.jar"

// Normalizer merges bundles found in Dir.
type Normalizer struct {
	Dir       string // work directory holding inputs, outputs and the jar
	EditorJar string // jar file name relative to Dir
	Java      string // java binary, "java" by default
	Runner    proc.Runner
	Logger    *log.Logger
}

// New returns a Normalizer working in dir.
func New(dir string, runner proc.Runner, logger *log.Logger) *Normalizer {
	return &Normalizer{
		Dir:       dir,
		EditorJar: DefaultEditorJar,
		Java:      "java",
		Runner:    runner,
		Logger:    logger,
	}
}

// OutputName returns the single-file name produced for fileName.
func OutputName(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + apk.ExtAPK
}

// Normalize returns the name of an installable package for fileName.
// Single-file packages are returned unchanged. Otherwise any existing file at
// the output path is removed and the merge tool is run; a non-zero exit, or
// a zero exit without an output file, is a NORMALIZATION error.
func (n *Normalizer) Normalize(ctx context.Context, fileName string) (string, error) {
	if apk.IsSingleFile(fileName) {
		return fileName, nil
	}

	start := time.Now()
	out, err := n.merge(ctx, fileName)
	observability.Pipeline().OnNormalizeComplete(ctx, fileName, time.Since(start), err)
	return out, err
}

func (n *Normalizer) merge(ctx context.Context, fileName string) (string, error) {
	in := filepath.Join(n.Dir, fileName)
	outName := OutputName(fileName)
	out := filepath.Join(n.Dir, outName)

	if _, err := os.Stat(in); err != nil {
		return "", errors.Normalization(in, err, "input missing")
	}
	if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
		return "", errors.Normalization(out, err, "remove stale output")
	}

	java := n.Java
	if java == "" {
		java = "java"
	}
	cmd := proc.Command{
		Name: java,
		Args: []string{"-jar", filepath.Join(n.Dir, n.EditorJar), "m", "-i", in, "-o", out},
	}
	res, err := n.Runner.Run(ctx, cmd)
	if err != nil {
		return "", errors.Normalization(in, err, "merge failed")
	}
	if !res.OK() {
		return "", errors.Normalization(in, nil, "merge exited with status %d: %s", res.ExitCode, res.Output())
	}
	if _, err := os.Stat(out); err != nil {
		return "", errors.Normalization(out, err, "merge produced no output")
	}

	if n.Logger != nil {
		n.Logger.Info("merged bundle", "input", fileName, "output", outName, "duration", res.Duration.Round(time.Millisecond))
	}
	return outName, nil
}
