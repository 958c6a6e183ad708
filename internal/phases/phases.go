// Package phases interprets the structured phase breakdown a remote
// analyzer returns and turns phase timestamps into extracted frames.
package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/video"
)

// Phase is one scored segment of the motion.
type Phase struct {
	FrameTimestamp string   `json:"frame_timestamp"`
	Score          int      `json:"score"`
	Feedback       string   `json:"feedback"`
	Observations   []string `json:"observations"`
}

// Parse pulls the phases map out of analyzer text. Markdown code
// fences are stripped first; when the full text is not valid JSON the
// outermost object is tried. Entries that do not match the phase shape
// keep their name with zero data, so reference lookup still sees them.
func Parse(analysisText string) (map[string]Phase, error) {
	cleaned := strings.ReplaceAll(analysisText, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var doc struct {
		Phases map[string]json.RawMessage `json:"phases"`
	}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("analysis text is not valid JSON: %w", err)
		}
		if err2 := json.Unmarshal([]byte(cleaned[start:end+1]), &doc); err2 != nil {
			return nil, fmt.Errorf("analysis text is not valid JSON: %w", err)
		}
	}
	if len(doc.Phases) == 0 {
		return nil, fmt.Errorf("no phases found in analysis")
	}

	phases := make(map[string]Phase, len(doc.Phases))
	for name, raw := range doc.Phases {
		var ph Phase
		if err := json.Unmarshal(raw, &ph); err != nil {
			phases[name] = Phase{}
			continue
		}
		phases[name] = ph
	}
	return phases, nil
}

// Names lists the phase names, sorted.
func Names(phases map[string]Phase) []string {
	names := make([]string, 0, len(phases))
	for name := range phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extractor writes one representative frame per phase.
type Extractor struct {
	frames    *video.FrameExtractor
	framesDir string
	log       *zap.Logger
}

func NewExtractor(frames *video.FrameExtractor, framesDir string, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{frames: frames, framesDir: framesDir, log: log}
}

// ExtractFrames pulls the frame at each phase timestamp from the
// video into framesDir/<analysisID>/ and returns phase name →
// filename. A phase without a timestamp, or one whose extraction
// fails, is skipped; the rest still extract.
func (e *Extractor) ExtractFrames(ctx context.Context, phases map[string]Phase, videoPath, analysisID string) map[string]string {
	extracted := make(map[string]string)
	dir := filepath.Join(e.framesDir, analysisID)

	for _, name := range Names(phases) {
		ph := phases[name]
		if ph.FrameTimestamp == "" {
			continue
		}

		seconds := video.ParseTimestamp(ph.FrameTimestamp)
		filename := video.PhaseFrameName(name, ph.FrameTimestamp)
		outPath := filepath.Join(dir, filename)

		if err := e.frames.ExtractAt(ctx, videoPath, seconds, outPath); err != nil {
			e.log.Error("failed to extract phase frame",
				zap.String("phase", name),
				zap.String("timestamp", ph.FrameTimestamp),
				zap.Error(err))
			continue
		}
		extracted[name] = filename
		e.log.Info("extracted phase frame",
			zap.String("phase", name),
			zap.String("timestamp", ph.FrameTimestamp))
	}
	return extracted
}

// ReferenceFrames maps each phase to the first professional frame
// whose filename starts with the phase name. A missing or unreadable
// directory yields an empty map.
func ReferenceFrames(phases map[string]Phase, proDir string) map[string]string {
	refs := make(map[string]string)

	entries, err := os.ReadDir(proDir)
	if err != nil {
		return refs
	}

	for name := range phases {
		for _, ent := range entries {
			if ent.IsDir() {
				continue
			}
			fn := ent.Name()
			if !strings.EqualFold(filepath.Ext(fn), ".jpg") {
				continue
			}
			if strings.HasPrefix(strings.TrimSuffix(fn, filepath.Ext(fn)), name) {
				refs[name] = fn
				break
			}
		}
	}
	return refs
}
