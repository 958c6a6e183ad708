package phases

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/video"
)

const phasesJSON = `{
  "phases": {
    "preparation_stance": {
      "frame_timestamp": "0:02",
      "score": 7,
      "feedback": "Solid base, slightly late shoulder turn.",
      "observations": ["knees bent", "racket back early"]
    },
    "contact_point": {
      "frame_timestamp": "0:04",
      "score": 8,
      "feedback": "Good extension at contact.",
      "observations": ["full arm extension"]
    }
  }
}`

func TestParse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		phases, err := Parse(phasesJSON)
		if err != nil {
			t.Fatalf("Failed to parse: %v", err)
		}
		if len(phases) != 2 {
			t.Fatalf("expected 2 phases, got %d", len(phases))
		}
		prep := phases["preparation_stance"]
		if prep.FrameTimestamp != "0:02" || prep.Score != 7 {
			t.Errorf("unexpected phase %+v", prep)
		}
		if len(prep.Observations) != 2 {
			t.Errorf("expected 2 observations, got %v", prep.Observations)
		}
	})

	t.Run("markdown fences", func(t *testing.T) {
		phases, err := Parse("```json\n" + phasesJSON + "\n```")
		if err != nil {
			t.Fatalf("Failed to parse fenced JSON: %v", err)
		}
		if len(phases) != 2 {
			t.Errorf("expected 2 phases, got %d", len(phases))
		}
	})

	t.Run("prose around json", func(t *testing.T) {
		text := "Here is the structured breakdown you asked for:\n\n" + phasesJSON + "\n\nOverall a promising swing."
		phases, err := Parse(text)
		if err != nil {
			t.Fatalf("Failed to parse embedded JSON: %v", err)
		}
		if _, ok := phases["contact_point"]; !ok {
			t.Error("missing contact_point phase")
		}
	})

	t.Run("malformed entry keeps its name", func(t *testing.T) {
		phases, err := Parse(`{"phases": {"contact_point": "not an object"}}`)
		if err != nil {
			t.Fatalf("Failed to parse: %v", err)
		}
		ph, ok := phases["contact_point"]
		if !ok {
			t.Fatal("malformed phase must keep its name")
		}
		if ph.FrameTimestamp != "" || ph.Score != 0 {
			t.Errorf("expected zero phase data, got %+v", ph)
		}
	})

	t.Run("no phases block", func(t *testing.T) {
		if _, err := Parse(`{"summary": "nice swing"}`); err == nil {
			t.Error("expected an error for JSON without phases")
		}
	})

	t.Run("not json", func(t *testing.T) {
		if _, err := Parse("the swing looks fine to me"); err == nil {
			t.Error("expected an error for plain prose")
		}
	})
}

func TestNames(t *testing.T) {
	phases := map[string]Phase{
		"follow_through":     {},
		"contact_point":      {},
		"preparation_stance": {},
	}
	got := Names(phases)
	want := []string{"contact_point", "follow_through", "preparation_stance"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestExtractFrames(t *testing.T) {
	fx := NewExtractor(video.NewFrameExtractor("/nonexistent/ffmpeg", "/nonexistent/ffprobe", zap.NewNop()), t.TempDir(), zap.NewNop())
	ctx := context.Background()

	t.Run("empty timestamps are skipped", func(t *testing.T) {
		extracted := fx.ExtractFrames(ctx, map[string]Phase{"contact_point": {}}, "serve.mp4", "a1")
		if len(extracted) != 0 {
			t.Errorf("expected nothing extracted, got %v", extracted)
		}
	})

	t.Run("extraction failure skips the phase", func(t *testing.T) {
		phases := map[string]Phase{"contact_point": {FrameTimestamp: "0:04"}}
		extracted := fx.ExtractFrames(ctx, phases, "serve.mp4", "a1")
		if len(extracted) != 0 {
			t.Errorf("expected nothing extracted, got %v", extracted)
		}
	})
}

func TestReferenceFrames(t *testing.T) {
	proDir := t.TempDir()
	for _, name := range []string{
		"preparation_stance_federer.jpg",
		"contact_point_nadal.jpg",
		"notes.txt",
	} {
		if err := os.WriteFile(filepath.Join(proDir, name), []byte("img"), 0o644); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(proDir, "contact_point_archive"), 0o755); err != nil {
		t.Fatalf("Failed to create fixture dir: %v", err)
	}

	phases := map[string]Phase{
		"preparation_stance": {},
		"contact_point":      {},
		"follow_through":     {},
	}
	refs := ReferenceFrames(phases, proDir)

	if refs["preparation_stance"] != "preparation_stance_federer.jpg" {
		t.Errorf("unexpected reference %q", refs["preparation_stance"])
	}
	if refs["contact_point"] != "contact_point_nadal.jpg" {
		t.Errorf("unexpected reference %q", refs["contact_point"])
	}
	if _, ok := refs["follow_through"]; ok {
		t.Error("follow_through has no reference frame")
	}

	if got := ReferenceFrames(phases, filepath.Join(proDir, "missing")); len(got) != 0 {
		t.Errorf("missing directory must yield no references, got %v", got)
	}
}
