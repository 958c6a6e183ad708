package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poselab/swinglab/internal/storage"
)

func TestStreamVideoHandler(t *testing.T) {
	app := newTestApp(t)
	content := []byte("0123456789abcdef")
	name, err := app.Storage.SaveFile(bytes.NewReader(content), storage.FileInfo{Filename: "serve.mp4"})
	if err != nil {
		t.Fatalf("Failed to save video: %v", err)
	}
	router := NewRouter(app)

	get := func(target, rangeHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("full content", func(t *testing.T) {
		rr := get("/api/videos/"+name, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if !bytes.Equal(rr.Body.Bytes(), content) {
			t.Error("body does not match stored video")
		}
		if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("expected video/mp4, got %q", ct)
		}
		if ar := rr.Header().Get("Accept-Ranges"); ar != "bytes" {
			t.Errorf("expected byte range support, got %q", ar)
		}
	})

	t.Run("range request", func(t *testing.T) {
		rr := get("/api/videos/"+name, "bytes=0-3")
		if rr.Code != http.StatusPartialContent {
			t.Fatalf("expected 206, got %d", rr.Code)
		}
		if rr.Body.String() != "0123" {
			t.Errorf("unexpected partial body %q", rr.Body.String())
		}
		if cr := rr.Header().Get("Content-Range"); !strings.HasPrefix(cr, "bytes 0-3/") {
			t.Errorf("unexpected Content-Range %q", cr)
		}
	})

	t.Run("unknown video", func(t *testing.T) {
		if rr := get("/api/videos/does-not-exist.mp4", ""); rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})

	t.Run("traversal rejected", func(t *testing.T) {
		if rr := get("/api/videos/..", ""); rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})
}
