package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/matzehuels/apkfetch/pkg/cache"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/httputil"
	"github.com/matzehuels/apkfetch/pkg/observability"
)

// Client provides shared HTTP functionality for all acquisition sources.
// It handles metadata caching, retry logic, common request headers and
// timed file downloads.
type Client struct {
	http     *http.Client
	cache    cache.Cache
	keyer    cache.Keyer
	prefix   string
	ttl      time.Duration
	headers  map[string]string
	recorder *Recorder
	dryRun   bool
}

// NewClient creates a Client with the given cache, key namespace, TTL and
// default headers. Headers are applied to all requests made through this
// client. Pass nil for headers if no default headers are needed.
func NewClient(backend cache.Cache, prefix string, ttl time.Duration, headers map[string]string) *Client {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   backend,
		keyer:   cache.NewDefaultKeyer(),
		prefix:  prefix,
		ttl:     ttl,
		headers: headers,
	}
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
// Requests made through the client already retry, so fetch runs once.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	key = c.keyer.HTTPKey(c.prefix, key)
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			if json.Unmarshal(data, v) == nil {
				return nil
			}
		}
	}
	if err := fetch(); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return nil
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// It uses the client's default headers and handles retries automatically.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return httputil.RetryWithBackoff(ctx, func() error {
		body, err := c.doRequest(ctx, url, headers)
		if err != nil {
			return err
		}
		defer body.Close()
		return json.NewDecoder(body).Decode(v)
	})
}

// GetText performs an HTTP GET request and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	var text string
	err := httputil.RetryWithBackoff(ctx, func() error {
		body, err := c.doRequest(ctx, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		text = string(data)
		return nil
	})
	return text, err
}

// GetHTML performs an HTTP GET request and parses the response as HTML.
func (c *Client) GetHTML(ctx context.Context, url string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := httputil.RetryWithBackoff(ctx, func() error {
		body, err := c.doRequest(ctx, url, nil)
		if err != nil {
			return err
		}
		defer body.Close()
		doc, err = goquery.NewDocumentFromReader(body)
		return err
	})
	return doc, err
}

// Peek performs an HTTP GET and returns the response content type and at
// most limit bytes of the body. The rest of the body is never read.
func (c *Client) Peek(ctx context.Context, url string, limit int64) (string, []byte, error) {
	var (
		contentType string
		head        []byte
	)
	err := httputil.RetryWithBackoff(ctx, func() error {
		resp, err := c.do(ctx, url, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		contentType = resp.Header.Get("Content-Type")
		head, err = io.ReadAll(io.LimitReader(resp.Body, limit))
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		return nil
	})
	return contentType, head, err
}

// Download fetches url into dir/fileName. The body is written to a
// temporary file that is renamed into place once complete, so an existing
// file is always replaced and a failed transfer never leaves a partial
// file behind. Successful transfers are timed in the client's Recorder.
func (c *Client) Download(ctx context.Context, url, dir, fileName string, headers map[string]string) error {
	if url == "" {
		return fmt.Errorf("%w: no url to download %s", ErrNotFound, fileName)
	}
	if err := errors.ValidateFileName(fileName); err != nil {
		return err
	}
	if c.dryRun {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	start := time.Now()
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.download(ctx, url, dir, fileName, headers)
	})
	if err != nil {
		return err
	}
	c.recorder.Record(time.Since(start), fileName)
	return nil
}

func (c *Client) download(ctx context.Context, url, dir, fileName string, headers map[string]string) error {
	body, err := c.doRequest(ctx, url, headers)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "."+fileName+".part-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, fileName))
}

func (c *Client) doRequest(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, httputil.Retryable(fmt.Errorf("%w: %v", ErrNetwork, err))
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &errors.RateLimitedError{RetryAfter: retryAfter}
	case code >= 500:
		return httputil.Retryable(fmt.Errorf("%w: status %d", ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
