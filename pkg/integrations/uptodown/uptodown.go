// Package uptodown acquires packages from Uptodown.
//
// An app source is the app's subdomain, e.g.
// https://youtube.en.uptodown.com/android. Older versions are only reachable
// through a paginated JSON listing keyed by the app's numeric code.
package uptodown

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "uptodown"

// HostSuffix is the host and path every Uptodown source ends with.
const HostSuffix = "en.uptodown.com/android"

const defaultFileHost = "https://dw.uptodown.com/dwn/"

// maxVersionPages stops a listing that never reports exhaustion.
const maxVersionPages = 200

// Strategy scrapes Uptodown.
type Strategy struct {
	client   *integrations.Client
	fileHost string
	dir      string
	logger   *log.Logger
}

// New creates a Strategy.
func New(opts integrations.Options) *Strategy {
	return &Strategy{
		client:   opts.Client(Name, nil),
		fileHost: defaultFileHost,
		dir:      opts.Dir,
		logger:   opts.Log(),
	}
}

// Match reports whether source is an Uptodown page.
func Match(source string) bool {
	return strings.HasSuffix(strings.TrimSuffix(source, "/"), HostSuffix)
}

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

type versionPage struct {
	Data []struct {
		Version    string `json:"version"`
		VersionURL string `json:"versionURL"`
	} `json:"data"`
}

// FetchLatest downloads the file behind the download button.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	return s.fromPage(ctx, app, strings.TrimSuffix(app.Source, "/")+"/download")
}

// FetchSpecific pages through the version listing until version is found
// or the listing is exhausted.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	source := strings.TrimSuffix(app.Source, "/")
	versionsURL := source + "/versions"
	doc, err := s.page(ctx, versionsURL)
	if err != nil {
		return apk.Result{}, err
	}
	code, ok := doc.Find("h1#detail-app-name").First().Attr("data-code")
	if !ok || code == "" {
		return apk.Result{}, errors.Scraping(Name, versionsURL, "unable to find app code for %s", app.Name)
	}

	for n := 1; n <= maxVersionPages; n++ {
		pageURL := source + "/apps/" + code + "/versions/" + strconv.Itoa(n)
		var listing versionPage
		if err := s.client.Get(ctx, pageURL, &listing); err != nil {
			if stderrors.Is(err, integrations.ErrNotFound) {
				break
			}
			return apk.Result{}, errors.Scraping(Name, pageURL, "version listing failed").WithCause(err)
		}
		if len(listing.Data) == 0 {
			break
		}
		for _, item := range listing.Data {
			if item.Version == version {
				return s.fromPage(ctx, app, item.VersionURL+"-x")
			}
		}
	}
	return apk.Result{}, errors.NotFound(Name, versionsURL, "version %s not in version list", version)
}

func (s *Strategy) fromPage(ctx context.Context, app *apk.App, pageURL string) (apk.Result, error) {
	doc, err := s.page(ctx, pageURL)
	if err != nil {
		return apk.Result{}, err
	}
	dataURL, ok := doc.Find("button#detail-download-button").First().Attr("data-url")
	if !ok || dataURL == "" {
		return apk.Result{}, errors.Download(Name, pageURL, "unable to download %s", app.Name)
	}

	fileURL := s.fileHost + dataURL
	fileName := app.Name + apk.ExtAPK
	if err := s.client.Download(ctx, fileURL, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, fileURL, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: fileURL}, nil
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
