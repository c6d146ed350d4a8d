// Package apkmirror acquires packages from APKMirror.
//
// An app source is the app's catalog page, e.g.
// https://www.apkmirror.com/apk/google-inc/youtube/. Acquisition walks four
// pages: the catalog (latest only), the release page listing variants, the
// variant's download page and the final force-download page.
package apkmirror

import (
	"context"
	stderrors "errors"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "apkmirror"

// BaseURL is the prefix every APKMirror source starts with.
const BaseURL = "https://www.apkmirror.com"

// Strategy scrapes APKMirror.
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

// Match reports whether source is an APKMirror page.
func Match(source string) bool { return strings.HasPrefix(source, BaseURL) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// ReleasePage returns the release page of version for a catalog page,
// e.g. .../youtube/ and 19.16.39 give .../youtube/youtube-19-16-39-release/.
func ReleasePage(source, version string) string {
	source = strings.TrimSuffix(source, "/") + "/"
	app := path.Base(strings.TrimSuffix(source, "/"))
	return source + app + "-" + strings.ReplaceAll(version, ".", "-") + "-release/"
}

// FetchLatest downloads the newest stable release listed on the catalog page.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	doc, err := s.page(ctx, app.Source)
	if err != nil {
		return apk.Result{}, err
	}

	var release string
	doc.Find(".listWidget.p-relative .appRow").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		title := strings.ToLower(row.Find(".appRowTitle").Text())
		if strings.Contains(title, "beta") || strings.Contains(title, "alpha") {
			return true
		}
		if href, ok := row.Find(".downloadLink").Attr("href"); ok {
			release = integrations.ResolveURL(app.Source, href)
			return false
		}
		return true
	})
	if release == "" {
		return apk.Result{}, errors.Scraping(Name, app.Source, "no stable release in version list")
	}
	return s.fromRelease(ctx, app, release)
}

// FetchSpecific downloads version from its release page.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	return s.fromRelease(ctx, app, ReleasePage(app.Source, version))
}

func (s *Strategy) fromRelease(ctx context.Context, app *apk.App, releasePage string) (apk.Result, error) {
	doc, err := s.page(ctx, releasePage)
	if err != nil {
		return apk.Result{}, err
	}

	var candidates []apk.Artifact
	doc.Find(".tab-pane.noPadding").First().Find(".table-row.headerFont").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find(".accent_color").Attr("href")
		if !ok {
			return
		}
		badge := strings.TrimSpace(row.Find(".apkm-badge").First().Text())
		candidates = append(candidates, apk.Artifact{
			URL:    integrations.ResolveURL(releasePage, href),
			Archs:  apk.ParseArchs(row.Text()),
			Bundle: badge == "BUNDLE",
		})
	})
	variant, ok := apk.SelectArtifact(candidates, app.Archs)
	if !ok {
		return apk.Result{}, errors.Download(Name, releasePage, "unable to extract download page")
	}
	s.logger.Debug("selected variant", "app", app.Name, "url", variant.URL, "archs", variant.Archs)

	return s.fromDownloadPage(ctx, app, variant.URL)
}

func (s *Strategy) fromDownloadPage(ctx context.Context, app *apk.App, downloadPage string) (apk.Result, error) {
	doc, err := s.page(ctx, downloadPage)
	if err != nil {
		return apk.Result{}, err
	}
	version := specVersion(doc)

	keyHref := findHref(doc.Find(".center a"), "download/?key=")
	if keyHref == "" {
		return apk.Result{}, errors.Download(Name, downloadPage, "unable to extract link from version page")
	}
	forcePage := integrations.ResolveURL(downloadPage, keyHref)

	force, err := s.page(ctx, forcePage)
	if err != nil {
		return apk.Result{}, err
	}
	ext := apk.ExtAPK
	if strings.TrimSpace(force.Find(".apkm-badge").First().Text()) == "BUNDLE" {
		ext = apk.ExtZip
	}
	href := findHref(force.Find(".tab-pane a"), "download.php?id=")
	if href == "" {
		return apk.Result{}, errors.Download(Name, forcePage, "unable to extract force download for %s", app.Name)
	}
	fileURL := integrations.ResolveURL(forcePage, href)

	fileName := app.Name + ext
	if err := s.client.Download(ctx, fileURL, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, fileURL, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: fileURL, Version: version}, nil
}

// specVersion reads "Version: x.y.z (code)" from the appspec rows of a download page.
func specVersion(doc *goquery.Document) string {
	var version string
	doc.Find(".appspec-value").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		i := strings.Index(text, "Version:")
		if i < 0 {
			return true
		}
		if fields := strings.Fields(text[i+len("Version:"):]); len(fields) > 0 {
			version = fields[0]
		}
		return false
	})
	return version
}

func findHref(sel *goquery.Selection, needle string) string {
	var found string
	sel.EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, ok := a.Attr("href"); ok && strings.Contains(href, needle) {
			found = href
			return false
		}
		return true
	})
	return found
}

func (s *Strategy) page(ctx context.Context, url string) (*goquery.Document, error) {
	doc, err := s.client.GetHTML(ctx, url)
	if stderrors.Is(err, integrations.ErrNotFound) {
		return nil, errors.NotFound(Name, url, "page not found").WithCause(err)
	}
	if err != nil {
		return nil, errors.Scraping(Name, url, "request failed").WithCause(err)
	}
	return doc, nil
}
