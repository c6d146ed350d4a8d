// Package apkmonk acquires packages from APKMonk.
//
// Download pages embed a {"pkg":...,"key":...} object in an inline script;
// the pair is exchanged at /down_file for the final file URL.
package apkmonk

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "apkmonk"

// BaseURL is the prefix every APKMonk source starts with.
const BaseURL = "https://www.apkmonk.com"

var keyPattern = regexp.MustCompile(`\{"pkg":"([^"]+)","key":"([^"]+)"\}`)

// Strategy scrapes APKMonk.
type Strategy struct {
	client  *integrations.Client
	baseURL string
	dir     string
	logger  *log.Logger
}

// New creates a Strategy.
func New(opts integrations.Options) *Strategy {
	return &Strategy{
		client:  opts.Client(Name, nil),
		baseURL: BaseURL,
		dir:     opts.Dir,
		logger:  opts.Log(),
	}
}

// Match reports whether source is an APKMonk page.
func Match(source string) bool { return strings.HasPrefix(source, BaseURL) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// FetchLatest follows the app page's download button.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	doc, err := s.page(ctx, app.Source)
	if err != nil {
		return apk.Result{}, err
	}
	href, ok := doc.Find("#download_button").First().Attr("href")
	if !ok || href == "" {
		return apk.Result{}, errors.Scraping(Name, app.Source, "no download button")
	}
	return s.fromPage(ctx, app, integrations.ResolveURL(app.Source, href))
}

// FetchSpecific looks version up in the app page's version table.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, version string) (apk.Result, error) {
	doc, err := s.page(ctx, app.Source)
	if err != nil {
		return apk.Result{}, err
	}
	var href string
	doc.Find(".striped a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != version {
			return true
		}
		href, _ = a.Attr("href")
		return href == ""
	})
	if href == "" {
		return apk.Result{}, errors.NotFound(Name, app.Source, "version %s not in version table", version)
	}
	return s.fromPage(ctx, app, integrations.ResolveURL(app.Source, href))
}

func (s *Strategy) fromPage(ctx context.Context, app *apk.App, pageURL string) (apk.Result, error) {
	doc, err := s.page(ctx, pageURL)
	if err != nil {
		return apk.Result{}, err
	}

	var keyURL string
	doc.Find(`script[type="text/javascript"]`).EachWithBreak(func(_ int, script *goquery.Selection) bool {
		m := keyPattern.FindStringSubmatch(script.Text())
		if m == nil {
			return true
		}
		keyURL = s.baseURL + "/down_file?pkg=" + integrations.URLEncode(m[1]) + "&key=" + integrations.URLEncode(m[2])
		return false
	})
	if keyURL == "" {
		return apk.Result{}, errors.Download(Name, pageURL, "unable to get key-value link")
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := s.client.Get(ctx, keyURL, &resp); err != nil {
		return apk.Result{}, errors.Download(Name, keyURL, "key exchange failed").WithCause(err)
	}
	if resp.URL == "" {
		return apk.Result{}, errors.Download(Name, keyURL, "key exchange returned no url")
	}

	fileName := app.Name + apk.ExtAPK
	if err := s.client.Download(ctx, resp.URL, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, resp.URL, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: resp.URL}, nil
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
