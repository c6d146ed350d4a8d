// Package gdrive downloads packages shared on Google Drive.
//
// Sources have the form https://drive.google.com/uc?id=<file id>. Small
// files are served directly; large files first return an HTML interstitial
// warning that the file cannot be virus scanned, whose form or confirm token
// leads to the actual file.
package gdrive

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

// Name identifies this source in errors and logs.
const Name = "gdrive"

// BaseURL is the prefix every Google Drive source starts with.
const BaseURL = "https://drive.google.com/uc?id="

const (
	defaultDriveURL   = "https://drive.google.com"
	defaultContentURL = "https://drive.usercontent.google.com"
)

// peekLimit bounds how much of a response is inspected for an interstitial.
const peekLimit = 256 << 10

var confirmPattern = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)

// Strategy downloads Google Drive files.
type Strategy struct {
	client     *integrations.Client
	driveURL   string
	contentURL string
	dir        string
	logger     *log.Logger
}

// New creates a Strategy.
func New(opts integrations.Options) *Strategy {
	return &Strategy{
		client:     opts.Client(Name, nil),
		driveURL:   defaultDriveURL,
		contentURL: defaultContentURL,
		dir:        opts.Dir,
		logger:     opts.Log(),
	}
}

// Match reports whether source is a Google Drive file link.
func Match(source string) bool { return strings.HasPrefix(source, BaseURL) }

// Name returns the source name.
func (s *Strategy) Name() string { return Name }

// FileID extracts the file id from a uc?id= link.
func FileID(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid google drive url %q", source)
	}
	id := u.Query().Get("id")
	if id == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "google drive url has no file id: %q", source)
	}
	return id, nil
}

// FetchLatest downloads the shared file.
func (s *Strategy) FetchLatest(ctx context.Context, app *apk.App) (apk.Result, error) {
	id, err := FileID(app.Source)
	if err != nil {
		return apk.Result{}, err
	}
	fileURL, err := s.resolve(ctx, id)
	if err != nil {
		return apk.Result{}, err
	}

	fileName := app.Name + apk.ExtAPK
	if err := s.client.Download(ctx, fileURL, s.dir, fileName, nil); err != nil {
		return apk.Result{}, errors.Download(Name, fileURL, "download failed").WithCause(err)
	}
	return apk.Result{FileName: fileName, URL: fileURL}, nil
}

// FetchSpecific behaves like FetchLatest; a link always names one file.
func (s *Strategy) FetchSpecific(ctx context.Context, app *apk.App, _ string) (apk.Result, error) {
	return s.FetchLatest(ctx, app)
}

// resolve returns a URL that serves the file itself rather than the
// virus-scan interstitial.
func (s *Strategy) resolve(ctx context.Context, id string) (string, error) {
	exportURL := s.driveURL + "/uc?export=download&id=" + url.QueryEscape(id)
	contentType, head, err := s.client.Peek(ctx, exportURL, peekLimit)
	if err != nil {
		return "", errors.Download(Name, exportURL, "request failed").WithCause(err)
	}
	if mediaType, _, _ := mime.ParseMediaType(contentType); mediaType != "text/html" {
		return exportURL, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(head))
	if err != nil {
		return "", errors.Scraping(Name, exportURL, "unreadable interstitial").WithCause(err)
	}
	if form := doc.Find("form#download-form").First(); form.Length() > 0 {
		if action, ok := form.Attr("action"); ok {
			values := url.Values{}
			form.Find("input[type=hidden]").Each(func(_ int, in *goquery.Selection) {
				if name, ok := in.Attr("name"); ok {
					values.Set(name, in.AttrOr("value", ""))
				}
			})
			return integrations.ResolveURL(exportURL, action) + "?" + values.Encode(), nil
		}
	}
	if m := confirmPattern.FindSubmatch(head); m != nil {
		return exportURL + "&confirm=" + string(m[1]), nil
	}

	s.logger.Debug("no confirm token on interstitial, using usercontent host", "id", id)
	return s.contentURL + "/download?id=" + url.QueryEscape(id) + "&export=download&confirm=t", nil
}
