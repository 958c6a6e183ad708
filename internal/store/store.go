// Package store persists analysis job records behind a small
// interface with in-memory and SQLite backends.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("analysis not found")

// Status tracks an analysis job through its life.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Analysis is one analysis job. Result holds the persisted outcome
// envelope verbatim; the frame maps hold filenames relative to their
// serving directories.
type Analysis struct {
	ID                 string            `json:"id"`
	VideoName          string            `json:"video_name"`
	Status             Status            `json:"status"`
	Error              string            `json:"error,omitempty"`
	Result             json.RawMessage   `json:"result,omitempty"`
	ExtractedFrames    map[string]string `json:"extracted_frames,omitempty"`
	ProfessionalFrames map[string]string `json:"professional_frames,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Store is the persistence surface the API needs. Put inserts or
// replaces; Get and Delete return ErrNotFound for unknown ids; List
// returns newest first.
type Store interface {
	Put(ctx context.Context, a *Analysis) error
	Get(ctx context.Context, id string) (*Analysis, error)
	List(ctx context.Context) ([]*Analysis, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// touch maintains the record timestamps around a Put.
func touch(a *Analysis) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}
