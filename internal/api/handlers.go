// Package api exposes the analysis service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/storage"
	"github.com/poselab/swinglab/internal/store"
	"github.com/poselab/swinglab/internal/video"
)

// App carries the service dependencies into the handlers.
type App struct {
	Log       *zap.Logger
	Cfg       *config.Config
	Store     store.Store
	Storage   storage.Storage
	Detectors *detector.Registry
	Analyzers *analyzer.Registry
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// UploadVideoHandler stores a video without starting an analysis.
func (app *App) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.Cfg.MaxUploadSize)

	if err := r.ParseMultipartForm(app.Cfg.MaxUploadSize); err != nil {
		app.writeError(w, http.StatusBadRequest, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		app.writeError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		if errors.Is(err, video.ErrUnsupportedExtension) {
			app.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		app.Log.Error("failed to save upload", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":   filename,
		"name": header.Filename,
		"size": header.Size,
	})
}

// StreamVideoHandler serves a stored upload for playback. ServeContent
// handles Range requests, so seeking works in browser players.
func (app *App) StreamVideoHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !safeSegment(id) {
		app.writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}

	file, err := app.Storage.OpenFile(id)
	if err != nil {
		app.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	defer file.Close()

	modTime := time.Now()
	if st, ok := file.(interface{ Stat() (os.FileInfo, error) }); ok {
		if info, err := st.Stat(); err == nil {
			modTime = info.ModTime()
		}
	}

	w.Header().Set("Content-Type", video.MIMEType(id))
	http.ServeContent(w, r, id, modTime, file)
}

func (app *App) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	analyses, err := app.Store.List(r.Context())
	if err != nil {
		app.Log.Error("failed to list analyses", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}

	views := make([]analysisView, 0, len(analyses))
	for _, a := range analyses {
		views = append(views, viewOf(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": views})
}

func (app *App) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := app.Store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		app.writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		app.Log.Error("failed to get analysis", zap.String("id", id), zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to get analysis")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(a))
}

// DeleteAnalysisHandler removes the record and the files extracted
// for it.
func (app *App) DeleteAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !safeSegment(id) {
		app.writeError(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	err := app.Store.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		app.writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		app.Log.Error("failed to delete analysis", zap.String("id", id), zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to delete analysis")
		return
	}

	for _, dir := range []string{
		filepath.Join(app.Cfg.FramesDir, id),
		filepath.Join(app.Cfg.OutputDir, id),
	} {
		if err := os.RemoveAll(dir); err != nil {
			app.Log.Warn("failed to remove analysis files", zap.String("dir", dir), zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// FrameHandler serves one extracted phase frame.
func (app *App) FrameHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	file := chi.URLParam(r, "file")
	if !safeSegment(id) || !safeSegment(file) {
		app.writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	http.ServeFile(w, r, filepath.Join(app.Cfg.FramesDir, id, file))
}

// ProfessionalFrameHandler serves a reference frame.
func (app *App) ProfessionalFrameHandler(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	if !safeSegment(file) {
		app.writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	http.ServeFile(w, r, filepath.Join(app.Cfg.ProFramesDir, file))
}

// analysisView is the wire form of a stored analysis, frame names
// resolved to serving URLs.
type analysisView struct {
	ID                 string            `json:"id"`
	VideoName          string            `json:"video_name"`
	Status             store.Status      `json:"status"`
	Error              string            `json:"error,omitempty"`
	Result             json.RawMessage   `json:"result,omitempty"`
	ExtractedFrames    map[string]string `json:"extracted_frames,omitempty"`
	ProfessionalFrames map[string]string `json:"professional_frames,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func viewOf(a *store.Analysis) analysisView {
	v := analysisView{
		ID:        a.ID,
		VideoName: a.VideoName,
		Status:    a.Status,
		Error:     a.Error,
		Result:    a.Result,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if len(a.ExtractedFrames) > 0 {
		v.ExtractedFrames = make(map[string]string, len(a.ExtractedFrames))
		for phase, file := range a.ExtractedFrames {
			v.ExtractedFrames[phase] = "/frames/" + a.ID + "/" + file
		}
	}
	if len(a.ProfessionalFrames) > 0 {
		v.ProfessionalFrames = make(map[string]string, len(a.ProfessionalFrames))
		for phase, file := range a.ProfessionalFrames {
			v.ProfessionalFrames[phase] = "/professional-frames/" + file
		}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (app *App) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// safeSegment accepts a single path element, rejecting traversal.
func safeSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/\\")
}
