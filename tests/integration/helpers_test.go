package integration

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/api"
	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/storage"
	"github.com/poselab/swinglab/internal/store"
)

type TestServer struct {
	Server  *httptest.Server
	App     *api.App
	Store   store.Store
	TempDir string
}

// setupTestServer runs the real router against a SQLite store and
// local storage rooted in a temp directory. The ffmpeg paths point
// nowhere; integration flows that need transcoding settle as failed
// jobs rather than hanging.
func setupTestServer(t *testing.T) *TestServer {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "swinglab_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	localStorage, err := storage.NewLocalStorage(filepath.Join(tempDir, "uploads"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create storage: %v", err)
	}

	st, err := store.OpenSQLite(filepath.Join(tempDir, "test.db"), zap.NewNop())
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open store: %v", err)
	}

	app := &api.App{
		Log: zap.NewNop(),
		Cfg: &config.Config{
			MaxUploadSize: 10 << 20,
			UploadDir:     filepath.Join(tempDir, "uploads"),
			FramesDir:     filepath.Join(tempDir, "frames"),
			ProFramesDir:  filepath.Join(tempDir, "professional_frames"),
			OutputDir:     filepath.Join(tempDir, "output"),
			GeminiAPIKey:  "integration-test-key",
			FFmpegPath:    filepath.Join(tempDir, "no-ffmpeg"),
			FFprobePath:   filepath.Join(tempDir, "no-ffprobe"),
			SlowFactor:    2.0,
		},
		Store:     st,
		Storage:   localStorage,
		Detectors: detector.NewRegistry(),
		Analyzers: analyzer.NewRegistry(),
	}

	return &TestServer{
		Server:  httptest.NewServer(api.NewRouter(app)),
		App:     app,
		Store:   st,
		TempDir: tempDir,
	}
}

func (ts *TestServer) Cleanup() {
	ts.Server.Close()
	ts.Store.Close()
	os.RemoveAll(ts.TempDir)
}

// createMultipartUpload builds a video upload form. A nil content
// skips the file part entirely.
func createMultipartUpload(filename string, content []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if content != nil {
		part, err := writer.CreateFormFile("video", filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, bytes.NewReader(content)); err != nil {
			return nil, "", err
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func postMultipart(t *testing.T, url string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	return resp
}
