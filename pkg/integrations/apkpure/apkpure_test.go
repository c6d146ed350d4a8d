package apkpure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

const downloadPage = `<html><body>
<span class="info-sdk"><span> 19.16.39 </span></span>
<div id="version-list">
  <a class="download-btn" href="/b/APK/com.google.android.youtube?version=latest&nc=arm64-v8a">APK</a>
  <a class="download-btn" href="/b/XAPK/com.google.android.youtube?version=latest&nc=arm64-v8a&nc=armeabi-v7a">XAPK</a>
  <a class="download-btn">broken</a>
</div></body></html>`

const versionsPage = `<html><body><ul class="ver-wrap">
  <li><a class="ver_download_link" data-dt-version="19.16.39" href="/youtube/com.google.android.youtube/download/19.16.39">dl</a></li>
  <li><a class="ver_download_link" data-dt-version="19.15.36" href="/youtube/com.google.android.youtube/download/19.15.36">dl</a></li>
  <li><span>ad</span></li>
</ul></body></html>`

func newServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestCandidate(t *testing.T) {
	tests := []struct {
		link   string
		bundle bool
		archs  []string
	}{
		{"https://d.apkpure.net/b/APK/x?nc=arm64-v8a&nc=x86", false, []string{"arm64-v8a", "x86"}},
		{"https://d.apkpure.net/b/XAPK/x?version=latest", true, nil},
	}
	for _, tt := range tests {
		got := Candidate(tt.link)
		if got.Bundle != tt.bundle || !slices.Equal(got.Archs, tt.archs) {
			t.Errorf("Candidate(%q) = %+v", tt.link, got)
		}
	}
}

func TestFetchLatest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/com.google.android.youtube/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(downloadPage))
	})
	mux.HandleFunc("/b/XAPK/com.google.android.youtube", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("xapk"))
	})
	server := newServer(t, mux)

	dir := t.TempDir()
	s := New(integrations.Options{HTTP: server.Client(), Dir: dir})
	app := &apk.App{Name: "youtube", Source: server.URL + "/youtube/com.google.android.youtube"}

	res, err := s.FetchLatest(context.Background(), app)
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if res.FileName != "youtube.xapk" {
		t.Errorf("FileName = %q, want the two-arch bundle", res.FileName)
	}
	if res.Version != "19.16.39" {
		t.Errorf("Version = %q", res.Version)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, res.FileName)); string(data) != "xapk" {
		t.Errorf("downloaded %q", data)
	}
}

func TestFetchSpecific(t *testing.T) {
	var requested []string
	mux := http.NewServeMux()
	mux.HandleFunc("/yt/versions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(versionsPage))
	})
	mux.HandleFunc("/youtube/com.google.android.youtube/download/19.15.36", func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		w.Write([]byte(`<div id="version-list"><a class="download-btn" href="/b/APK/yt?nc=arm64-v8a">APK</a></div>`))
	})
	mux.HandleFunc("/b/APK/yt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("apk"))
	})
	server := newServer(t, mux)

	s := New(integrations.Options{HTTP: server.Client(), Dir: t.TempDir()})
	app := &apk.App{Name: "youtube", Source: server.URL + "/yt"}

	res, err := s.FetchSpecific(context.Background(), app, "19.15.36")
	if err != nil {
		t.Fatalf("FetchSpecific() error: %v", err)
	}
	if res.FileName != "youtube.apk" {
		t.Errorf("FileName = %q", res.FileName)
	}
	if len(requested) != 1 {
		t.Errorf("download page requests = %v", requested)
	}

	_, err = s.FetchSpecific(context.Background(), app, "1.0.0")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if !strings.HasSuffix(errors.GetURL(err), "/yt/versions") {
		t.Errorf("error URL = %q", errors.GetURL(err))
	}
}

func TestFetchLatestNoCandidates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/x/download", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div id="version-list"></div>`))
	})
	server := newServer(t, mux)

	s := New(integrations.Options{HTTP: server.Client(), Dir: t.TempDir()})
	_, err := s.FetchLatest(context.Background(), &apk.App{Name: "x", Source: server.URL + "/x"})
	if !errors.Is(err, errors.ErrCodeDownload) || !errors.FromSource(err, Name) {
		t.Fatalf("expected apkpure DOWNLOAD error, got %v", err)
	}
}
