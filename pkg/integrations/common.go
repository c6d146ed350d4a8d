package integrations

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/apkfetch/pkg/cache"
)

// HTTPTimeout bounds every request made by sources, downloads included.
const HTTPTimeout = 60 * time.Second

// UserAgent is sent by every source. Several sites reject the Go default.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (HTML, like Gecko) Chrome/96.0.4664.93 Safari/537.36"

var (
	// ErrNotFound is returned when a page or resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with the standard timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: HTTPTimeout}
}

// Options carries the run-scoped dependencies every source needs.
type Options struct {
	HTTP     *http.Client // shared client; NewHTTPClient() when nil
	Cache    cache.Cache  // metadata cache; NullCache when nil
	Keyer    cache.Keyer
	TTL      time.Duration
	Recorder *Recorder
	Logger   *log.Logger
	Dir      string // download directory
	DryRun   bool   // resolve URLs but skip transfers
}

// Client returns a client for one source namespace.
func (o Options) Client(prefix string, headers map[string]string) *Client {
	c := NewClient(o.Cache, prefix, o.TTL, headers)
	if o.HTTP != nil {
		c.http = o.HTTP
	}
	if o.Keyer != nil {
		c.keyer = o.Keyer
	}
	c.recorder = o.Recorder
	c.dryRun = o.DryRun
	return c
}

// Log returns the configured logger or a discarding one.
func (o Options) Log() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.New(io.Discard)
}

// ResolveURL resolves href against base. Absolute hrefs are returned as-is.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// URLExt returns the extension of the last path segment of raw, e.g.
// ".jar" for "https://host/a/cli-4.6.0-all.jar?x=1". It is empty when the
// segment has none.
func URLExt(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return path.Ext(raw)
	}
	return path.Ext(u.Path)
}
