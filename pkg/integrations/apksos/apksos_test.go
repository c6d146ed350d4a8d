package apksos

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matzehuels/apkfetch/pkg/apk"
	"github.com/matzehuels/apkfetch/pkg/errors"
	"github.com/matzehuels/apkfetch/pkg/integrations"
)

func TestFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/download-app/com.example", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="col-sm-12 col-md-8 text-center">
			<a>no href</a><a href="/files/example.apk">Download APK</a></div>`)
	})
	mux.HandleFunc("/download-app/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="col-sm-12 col-md-8 text-center"></div>`)
	})
	mux.HandleFunc("/files/example.apk", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "apk")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := New(integrations.Options{HTTP: server.Client(), Dir: t.TempDir()})
	ctx := context.Background()

	app := &apk.App{Name: "example", Source: server.URL + "/download-app/com.example"}
	latest, err := s.FetchLatest(ctx, app)
	if err != nil {
		t.Fatalf("FetchLatest() error: %v", err)
	}
	if latest.FileName != "example.apk" || latest.URL != server.URL+"/files/example.apk" {
		t.Errorf("FetchLatest() = %+v", latest)
	}

	specific, err := s.FetchSpecific(ctx, app, "1.0")
	if err != nil || specific != latest {
		t.Errorf("FetchSpecific() = %+v, %v; want %+v", specific, err, latest)
	}

	_, err = s.FetchLatest(ctx, &apk.App{Name: "empty", Source: server.URL + "/download-app/empty"})
	if !errors.Is(err, errors.ErrCodeDownload) || !errors.FromSource(err, Name) {
		t.Errorf("expected apksos DOWNLOAD error, got %v", err)
	}
}
