// Package apkpure acquires packages from APKPure.
//
// An app source is the app's store page, e.g.
// https://apkpure.net/youtube/com.google.android.youtube. Its /download
// page lists the variants of the current release; its /versions page lists
// older releases with links to their own download pages.
package apkpure

import (
	"context"
	stderrors "errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "apkpure"

// BaseURL is the prefix every APKPure source starts with.
const BaseURL = "https://apkpure.net"

// Strategy scrapes APKPure.
type Strategy struct {
	client *integrations.Client
	dir    string
	logger *log.Logger
}

// New creates a Strategy.
func New(opts integrations.Options) *Strategy {
	return &Strategy{
		client: opts.Client(Name, nil),
		dir:    opts.Dir,
		logger: opts.Log(),
	}
}

// Match reports whether source is an APKPure page.
func Match(source string) bool { return strings.HasPrefix(source, BaseURL) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// FetchLatest downloads the preferred variant listed on the download page.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	return s.fromDownloadPage(ctx, app, strings.TrimSuffix(app.Source, "/")+"/download")
}

// FetchSpecific finds version on the versions page and downloads it.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	versionsPage := strings.TrimSuffix(app.Source, "/") + "/versions"
	doc, err := s.page(ctx, versionsPage)
	if err != nil {
		return apk.Result{}, err
	}

	var downloadPage string
	doc.Find("ul.ver-wrap > *").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		link := item.Find("a.ver_download_link").First()
		if v, ok := link.Attr("data-dt-version"); !ok || v != version {
			return true
		}
		if href, ok := link.Attr("href"); ok {
			downloadPage = integrations.ResolveURL(versionsPage, href)
		}
		return false
	})
	if downloadPage == "" {
		return apk.Result{}, errors.NotFound(Name, versionsPage, "version %s not in version list", version)
	}
	return s.fromDownloadPage(ctx, app, downloadPage)
}

func (s *Strategy) fromDownloadPage(ctx context.Context, app *apk.App, page string) (apk.Result, error) {
	doc, err := s.page(ctx, page)
	if err != nil {
		return apk.Result{}, err
	}

	var candidates []apk.Artifact
	doc.Find("#version-list a.download-btn").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		candidates = append(candidates, Candidate(integrations.ResolveURL(page, href)))
	})
	best, ok := apk.SelectArtifact(candidates, app.Archs)
	if !ok {
		return apk.Result{}, errors.Download(Name, page, "unable to extract link from %s version list", app.Name)
	}

	version := strings.TrimSpace(doc.Find("span.info-sdk > span").First().Text())
	if version == "" {
		s.logger.Info("unable to guess version", "app", app.Name)
	}

	fileName := app.Name + apk.ExtAPK
	if best.Bundle {
		fileName = app.Name + apk.ExtXAPK
	}
	if err := s.client.Download(ctx, best.URL, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, best.URL, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: best.URL, Version: version}, nil
}

// Candidate describes a download link. XAPK links carry /b/XAPK/ in their
// path and every supported ABI appears as a repeated nc query parameter.
func Candidate(link string) apk.Artifact {
	a := apk.Artifact{URL: link, Bundle: strings.Contains(link, "/b/XAPK/")}
	if u, err := url.Parse(link); err == nil {
		a.Archs = u.Query()["nc"]
	}
	return a
}

func (s *Strategy) page(ctx context.Context, pageURL string) (*goquery.Document, error) {
	doc, err := s.client.GetHTML(ctx, pageURL)
	if stderrors.Is(err, integrations.ErrNotFound) {
		return nil, errors.NotFound(Name, pageURL, "page not found").WithCause(err)
	}
	if err != nil {
		return nil, errors.Scraping(Name, pageURL, "request failed").WithCause(err)
	}
	return doc, nil
}
