package processing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/poselab/swinglab/internal/pose"
)

// keypointsWriter streams the keypoints document to disk record by
// record, so a long video never holds all its frames in memory. The
// layout matches the buffered equivalent:
//
//	{"video_info": ..., "model_info": ..., "frames": [...], "processing_stats": ...}
type keypointsWriter struct {
	f     *os.File
	path  string
	first bool
}

func newKeypointsWriter(path string, info pose.VideoInfo, model pose.ModelInfo) (*keypointsWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create keypoints file: %w", err)
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	modelJSON, err := json.Marshal(model)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if _, err := fmt.Fprintf(f, "{\n  \"video_info\": %s,\n  \"model_info\": %s,\n  \"frames\": [", infoJSON, modelJSON); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write keypoints header: %w", err)
	}

	return &keypointsWriter{f: f, path: path, first: true}, nil
}

func (w *keypointsWriter) WriteRecord(rec pose.FrameRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	sep := ",\n    "
	if w.first {
		sep = "\n    "
		w.first = false
	}
	if _, err := fmt.Fprintf(w.f, "%s%s", sep, b); err != nil {
		return err
	}
	return nil
}

// Finish appends the statistics, closes the document and syncs it out.
func (w *keypointsWriter) Finish(stats pose.Statistics) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		w.Abort()
		return err
	}
	if _, err := fmt.Fprintf(w.f, "\n  ],\n  \"processing_stats\": %s\n}\n", statsJSON); err != nil {
		w.Abort()
		return err
	}
	return w.f.Close()
}

// Abort closes and removes the partial file.
func (w *keypointsWriter) Abort() {
	w.f.Close()
	os.Remove(w.path)
}
