package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courseforge/internal/services"
)

func TestApifyDownloadSavesFile(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("fake mp4 bytes"))
	}))
	defer fileSrv.Close()

	actorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "run-sync-get-dataset-items") {
			http.Error(w, "path", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"downloadUrl": "` + fileSrv.URL + `/v.mp4"}]`))
	}))
	defer actorSrv.Close()

	dir := t.TempDir()
	client := NewApifyVideoClient("tok", actorSrv.URL, "acme~video", dir, 5, actorSrv.Client())
	res, err := client.Download(context.Background(), "abc123", "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.LocalPath != filepath.Join(dir, "abc123.mp4") {
		t.Fatalf("local path = %q", res.LocalPath)
	}
	data, err := os.ReadFile(res.LocalPath)
	if err != nil || string(data) != "fake mp4 bytes" {
		t.Fatalf("saved file wrong: %v %q", err, data)
	}
}

func TestApifyDownloadWithoutToken(t *testing.T) {
	client := NewApifyVideoClient("", "http://unused", "a~b", t.TempDir(), 5, nil)
	if _, err := client.Download(context.Background(), "abc", "url"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestYtdlpMissingBinary(t *testing.T) {
	d := NewYtdlpDownloader("definitely-not-a-real-binary-name", "", t.TempDir())
	if _, err := d.Download(context.Background(), "abc", "url"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCloudinaryUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "form", http.StatusBadRequest)
			return
		}
		if r.FormValue("api_key") != "key" || r.FormValue("signature") == "" {
			http.Error(w, "auth", http.StatusUnauthorized)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if data, _ := io.ReadAll(file); string(data) != "payload" {
			http.Error(w, "content", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"secure_url": "https://res.cloudinary.example/video/upload/abc123.mp4"}`))
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "abc123.mp4")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := NewCloudinaryClient("demo", "key", "secret", srv.URL, 5, srv.Client())
	hosted, err := client.Upload(context.Background(), local, "courseforge/abc123")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(hosted, "https://res.cloudinary.example/") {
		t.Fatalf("hosted url = %q", hosted)
	}
}

func TestCloudinarySignIsDeterministic(t *testing.T) {
	client := NewCloudinaryClient("demo", "key", "secret", "", 5, nil)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }
	a := client.sign(map[string]string{"public_id": "x", "timestamp": "1700000000"})
	b := client.sign(map[string]string{"timestamp": "1700000000", "public_id": "x"})
	if a != b || a == "" {
		t.Fatalf("signature unstable: %q vs %q", a, b)
	}
}

func TestArchiveSkipsWhenUnconfigured(t *testing.T) {
	svc := &Service{cloudinary: NewCloudinaryClient("", "", "", "", 5, nil)}
	res, err := svc.Archive(context.Background(), Result{LocalPath: "/tmp/x.mp4"}, "abc")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.MediaURL != "" {
		t.Fatal("unconfigured archive must not set a hosted url")
	}
}
