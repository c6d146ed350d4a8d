package uptodown

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

type item struct {
	Version    string `json:"version"`
	VersionURL string `json:"versionURL"`
}

func setup(t *testing.T) (*Strategy, *httptest.Server, *atomic.Int32) {
	t.Helper()
	var pages atomic.Int32
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/android/download", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<button id="detail-download-button" data-url="latest-token">Download</button>`)
	})
	mux.HandleFunc("/android/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<h1 id="detail-app-name" data-code="1234">App</h1>`)
	})
	mux.HandleFunc("/android/apps/1234/versions/", func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		var data []item
		switch r.URL.Path {
		case "/android/apps/1234/versions/1":
			data = []item{{"2.0", server.URL + "/android/download/20"}, {"1.9", server.URL + "/android/download/19"}}
		case "/android/apps/1234/versions/2":
			data = []item{{"1.8", server.URL + "/android/download/18"}}
		}
		json.NewEncoder(w).Encode(map[string]any{"success": 1, "data": data})
	})
	mux.HandleFunc("/android/download/18-x", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<button id="detail-download-button" data-url="v18-token">Download</button>`)
	})
	mux.HandleFunc("/dwn/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.TrimPrefix(r.URL.Path, "/dwn/"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s := New(integrations.Options{HTTP: server.Client(), Dir: t.TempDir()})
	s.fileHost = server.URL + "/dwn/"
	return s, server, &pages
}

func TestFetchLatest(t *testing.T) {
	s, server, _ := setup(t)
	app := &apk.App{Name: "app", Source: server.URL + "/android"}

	res, err := s.FetchLatest(context.Background(), app)
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if res.FileName != "app.apk" || res.URL != server.URL+"/dwn/latest-token" {
		t.Errorf("result = %+v", res)
	}
	if res.Version != "" {
		t.Errorf("uptodown cannot discover versions, got %q", res.Version)
	}
	data, _ := os.ReadFile(filepath.Join(s.dir, "app.apk"))
	if string(data) != "latest-token" {
		t.Errorf("downloaded %q", data)
	}
}

func TestFetchSpecificPaginates(t *testing.T) {
	s, server, pages := setup(t)
	app := &apk.App{Name: "app", Source: server.URL + "/android/"}

	res, err := s.FetchSpecific(context.Background(), app, "1.8")
	if err != nil {
		t.Fatalf("FetchSpecific() error: %v", err)
	}
	if !strings.HasSuffix(res.URL, "/dwn/v18-token") {
		t.Errorf("URL = %q", res.URL)
	}
	if got := pages.Load(); got != 2 {
		t.Errorf("listing pages fetched = %d, want 2", got)
	}
}

func TestFetchSpecificExhausted(t *testing.T) {
	s, server, pages := setup(t)
	app := &apk.App{Name: "app", Source: server.URL + "/android"}

	_, err := s.FetchSpecific(context.Background(), app, "0.1")
	if !errors.Is(err, errors.ErrCodeNotFound) || !errors.FromSource(err, Name) {
		t.Fatalf("expected uptodown NOT_FOUND, got %v", err)
	}
	if want := server.URL + "/android/versions"; errors.GetURL(err) != want {
		t.Errorf("error URL = %q, want %q", errors.GetURL(err), want)
	}
	if got := pages.Load(); got != 3 {
		t.Errorf("listing pages fetched = %d, want 3", got)
	}
}

func TestMatch(t *testing.T) {
	tests := map[string]bool{
		"https://youtube.en.uptodown.com/android":  true,
		"https://youtube.en.uptodown.com/android/": true,
		"https://www.apkmirror.com/apk/x/":         false,
	}
	for source, want := range tests {
		if got := Match(source); got != want {
			t.Errorf("Match(%q) = %v, want %v", source, got, want)
		}
	}
}
