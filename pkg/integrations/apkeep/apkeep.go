// Package apkeep downloads packages from Google Play with the apkeep tool.
//
// Sources start with "apkeep" (conventionally apkeep://google-play). The
// package is identified by the app's package name, and the tool needs a
// Google account e-mail and AAS token.
package apkeep

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
	"github.com/matzehuels/apkfetch/pkg/proc"
)

// Name identifies this source in errors and logs.
const Name = "apkeep"

// Binary is the executable invoked.
const Binary = "apkeep"

// Credentials authenticate against Google Play.
type Credentials struct {
	Email string
	Token string
}

// Strategy shells out to apkeep.
type Strategy struct {
	runner   proc.Runner
	creds    Credentials
	dir      string
	dryRun   bool
	recorder *integrations.Recorder
	logger   *log.Logger
}

// New creates a Strategy.
func New(opts integrations.Options, runner proc.Runner, creds Credentials) *Strategy {
	return &Strategy{
		runner:   runner,
		creds:    creds,
		dir:      opts.Dir,
		dryRun:   opts.DryRun,
		recorder: opts.Recorder,
		logger:   opts.Log(),
	}
}

// Match reports whether source selects apkeep.
func Match(source string) bool { return strings.HasPrefix(source, Name) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// FetchLatest downloads the current Play Store release.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	return s.fetch(ctx, app, "")
}

// FetchSpecific downloads version from the Play Store.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	return s.fetch(ctx, app, version)
}

// Command returns the apkeep invocation for pkg at version.
func (s *Strategy) Command(pkg, version string) proc.Command {
	target := pkg
	if version != "" && version != apk.Latest {
		target = pkg + "@" + version
	}
	return proc.Command{
		Name: Binary,
		Args: []string{"-a", target, "-d", "google-play", "-e", s.creds.Email, "-t", s.creds.Token, s.dir},
	}
}

func (s *Strategy) fetch(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	pkg := app.PackageName
	if pkg == "" {
		return apk.Result{}, errors.Download(Name, app.Source, "%s has no package name", app.Name)
	}
	url := "apkeep://google-play/" + pkg
	if s.creds.Email == "" || s.creds.Token == "" {
		return apk.Result{}, errors.Download(Name, url, "APKEEP_EMAIL and APKEEP_TOKEN must be set")
	}

	fileName := pkg + apk.ExtAPK
	result := apk.Result{FileName: fileName, URL: url}
	if s.dryRun {
		return result, nil
	}

	if err := os.Remove(filepath.Join(s.dir, fileName)); err != nil && !os.IsNotExist(err) {
		return apk.Result{}, errors.Download(Name, url, "remove stale %s", fileName).WithCause(err)
	}
	res, err := s.runner.Run(ctx, s.Command(pkg, version))
	if err != nil {
		return apk.Result{}, errors.Download(Name, url, "unable to run %s", Binary).WithCause(err)
	}
	if !res.OK() {
		return apk.Result{}, errors.Download(Name, url, "command failed with exit code %d: %s", res.ExitCode, res.Output())
	}
	if _, err := os.Stat(filepath.Join(s.dir, fileName)); err != nil {
		return apk.Result{}, errors.Download(Name, url, "%s produced no %s", Binary, fileName).WithCause(err)
	}

	s.recorder.Record(res.Duration, fileName)
	s.logger.Info("downloaded", "app", app.Name, "package", pkg, "duration", res.Duration)
	return result, nil
}
