// Package apksos acquires packages from APKSOS.
//
// An app source is a download page holding a single link. The site keeps no
// version history, so specific versions resolve to whatever it serves.
package apksos

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "apksos"

// BaseURL is the prefix every APKSOS source starts with.
const BaseURL = "https://apksos.com/download-app"

// Strategy scrapes APKSOS.
type Strategy struct {
	client *integrations.Client
	dir    string
}

// New creates a Strategy.
func New(opts integrations.Options) *Strategy {
	return &Strategy{client: opts.Client(Name, nil), dir: opts.Dir}
}

// Match reports whether source is an APKSOS page.
func Match(source string) bool { return strings.HasPrefix(source, BaseURL) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// FetchLatest downloads the first link of the download panel.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	doc, err := s.client.GetHTML(ctx, app.Source)
	if stderrors.Is(err, integrations.ErrNotFound) {
		return apk.Result{}, errors.NotFound(Name, app.Source, "page not found").WithCause(err)
	}
	if err != nil {
		return apk.Result{}, errors.Scraping(Name, app.Source, "request failed").WithCause(err)
	}

	var link string
	doc.Find(".col-sm-12.col-md-8.text-center a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link = a.AttrOr("href", "")
		return link == ""
	})
	if link == "" {
		return apk.Result{}, errors.Download(Name, app.Source, "unable to download %s", app.Name)
	}
	link = integrations.ResolveURL(app.Source, link)

	fileName := app.Name + apk.ExtAPK
	if err := s.client.Download(ctx, link, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, link, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: link}, nil
}

// FetchSpecific behaves like FetchLatest.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, _ string) (apk.Result, error) {
	return s.FetchLatest(ctx, app)
}
