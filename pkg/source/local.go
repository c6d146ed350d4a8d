package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
)

// LocalName identifies local sources in errors and logs.
const LocalName = "local"

// LocalScheme prefixes sources that name a file already in the work directory.
const LocalScheme = "local://"

// IsLocal reports whether source refers to a local file.
func IsLocal(source string) bool { return strings.HasPrefix(source, LocalScheme) }

// LocalFile returns the file name a local source refers to.
func LocalFile(source string) string {
	return filepath.Base(strings.TrimPrefix(source, LocalScheme))
}

// Local serves packages that were placed in the work directory beforehand.
type Local struct {
	dir string
}

// NewLocal returns a Local strategy reading from dir.
func NewLocal(dir string) *Local { return &Local{dir: dir} }

// Name returns the source name.
func (l *Local) Name() string { return LocalName }

// FetchLatest returns the referenced file if it exists. A name without
// extension also matches the same name with .apk appended.
func (l *Local) FetchLatest(_ context.Context, app *apk.App) (apk.Result, error) {
	name := LocalFile(app.Source)
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = append(candidates, name+apk.ExtAPK)
	}
	for _, c := range candidates {
		if info, err := os.Stat(filepath.Join(l.dir, c)); err == nil && !info.IsDir() {
			return apk.Result{FileName: c, URL: app.Source}, nil
		}
	}
	return apk.Result{}, errors.NotFound(LocalName, app.Source, "%s is not in %s", name, l.dir)
}

// FetchSpecific behaves like FetchLatest; a local file has one version.
func (l *Local) FetchSpecific(ctx context.Context, app *apk.App, _ string) (apk.Result, error) {
	return l.FetchLatest(ctx, app)
}
