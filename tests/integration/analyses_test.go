package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/poselab/swinglab/internal/store"
)

func TestAnalysesListAndGet(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []*store.Analysis{
		{
			ID:        "a-old",
			VideoName: "first.mp4",
			Status:    store.StatusCompleted,
			Result:    json.RawMessage(`{"analysis":"early session"}`),
			CreatedAt: base,
		},
		{
			ID:              "a-new",
			VideoName:       "second.mp4",
			Status:          store.StatusCompleted,
			ExtractedFrames: map[string]string{"contact_point": "contact_point_0-04.jpg"},
			CreatedAt:       base.Add(time.Hour),
		},
	}
	for _, rec := range seed {
		if err := ts.Store.Put(ctx, rec); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}

	t.Run("list newest first", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/analyses")
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}

		var result struct {
			Analyses []struct {
				ID        string `json:"id"`
				VideoName string `json:"video_name"`
			} `json:"analyses"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(result.Analyses) != 2 {
			t.Fatalf("Expected 2 analyses, got %d", len(result.Analyses))
		}
		if result.Analyses[0].ID != "a-new" || result.Analyses[1].ID != "a-old" {
			t.Errorf("Expected newest first, got %+v", result.Analyses)
		}
	})

	t.Run("get resolves frame urls", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/analyses/a-new")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}

		var view struct {
			ID              string            `json:"id"`
			ExtractedFrames map[string]string `json:"extracted_frames"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if got := view.ExtractedFrames["contact_point"]; got != "/frames/a-new/contact_point_0-04.jpg" {
			t.Errorf("Unexpected frame url %q", got)
		}
	})

	t.Run("get unknown id", func(t *testing.T) {
		resp, err := http.Get(ts.Server.URL + "/api/analyses/missing")
		if err != nil {
			t.Fatalf("Failed to get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", resp.StatusCode)
		}
	})
}

func TestAnalysisDelete(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()
	ctx := context.Background()

	if err := ts.Store.Put(ctx, &store.Analysis{ID: "doomed", VideoName: "gone.mp4", Status: store.StatusCompleted}); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	req, err := http.NewRequest(http.MethodDelete, ts.Server.URL+"/api/analyses/doomed", nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	if _, err := ts.Store.Get(ctx, "doomed"); err == nil {
		t.Error("Record must be gone after delete")
	}

	resp, err = http.DefaultClient.Do(req.Clone(context.Background()))
	if err != nil {
		t.Fatalf("Failed to repeat delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for repeat delete, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.Cleanup()

	resp, err := http.Get(ts.Server.URL + "/health")
	if err != nil {
		t.Fatalf("Failed to get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Unexpected status %v", body["status"])
	}
}
