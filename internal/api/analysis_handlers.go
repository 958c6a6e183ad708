package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/phases"
	"github.com/poselab/swinglab/internal/pipeline"
	"github.com/poselab/swinglab/internal/processing"
	"github.com/poselab/swinglab/internal/storage"
	"github.com/poselab/swinglab/internal/store"
	"github.com/poselab/swinglab/internal/video"
)

// analysisJob is everything the background run needs, resolved and
// validated before the request returns 202.
type analysisJob struct {
	id         string
	storedName string
	rec        *store.Analysis

	prompt           string
	det              detector.Detector
	analyzer         analyzer.Analyzer
	includeKeypoints bool
	slowMotion       bool
}

// CreateAnalysisHandler accepts a video plus options, validates every
// configuration choice up front and runs the analysis in the
// background. Unknown detector or analyzer names and bad prompts are
// rejected here, before any processing starts.
func (app *App) CreateAnalysisHandler(w http.ResponseWriter, r *http.Request) {
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

	prompt, err := analyzer.PromptForType(r.FormValue("prompt_type"), r.FormValue("custom_prompt"))
	if err != nil {
		app.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var det detector.Detector
	if name := r.FormValue("detector"); name != "" {
		det, err = app.Detectors.New(name, detector.Options{
			Command: app.Cfg.DetectorCommand,
			Logger:  app.Log,
		})
		if err != nil {
			app.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		apiKey = app.Cfg.GeminiAPIKey
	}
	analyzerName := r.FormValue("analyzer")
	if analyzerName == "" {
		analyzerName = "gemini"
	}
	an, err := app.Analyzers.New(analyzerName, analyzer.Config{
		APIKey:  apiKey,
		BaseURL: app.Cfg.GeminiBaseURL,
		Model:   r.FormValue("model"),
		Logger:  app.Log,
	})
	if err != nil {
		app.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	storedName, err := app.Storage.SaveFile(file, storage.FileInfo{
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

	job := &analysisJob{
		id:         uuid.New().String(),
		storedName: storedName,
		prompt:     prompt,
		det:        det,
		analyzer:   an,

		includeKeypoints: formBool(r, "include_keypoints", true),
		slowMotion:       formBool(r, "slow_motion", true),
	}
	job.rec = &store.Analysis{
		ID:        job.id,
		VideoName: header.Filename,
		Status:    store.StatusProcessing,
	}
	if err := app.Store.Put(r.Context(), job.rec); err != nil {
		app.Log.Error("failed to create analysis record", zap.Error(err))
		app.writeError(w, http.StatusInternalServerError, "failed to create analysis")
		return
	}

	go app.runAnalysis(job)

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     job.id,
		"status": string(store.StatusProcessing),
	})
}

// runAnalysis drives one job through normalize, the optional pose
// pass, the remote analysis and phase frame extraction, then settles
// the stored record.
func (app *App) runAnalysis(job *analysisJob) {
	ctx := context.Background()
	log := app.Log.With(zap.String("analysis", job.id))

	fail := func(err error) {
		log.Error("analysis failed", zap.Error(err))
		job.rec.Status = store.StatusFailed
		job.rec.Error = err.Error()
		if perr := app.Store.Put(ctx, job.rec); perr != nil {
			log.Error("failed to update analysis record", zap.Error(perr))
		}
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("analysis panicked: %v", r))
		}
	}()

	srcPath, err := app.Storage.Path(job.storedName)
	if err != nil {
		fail(err)
		return
	}

	norm := video.NewNormalizer(app.Cfg.FFmpegPath, app.Cfg.FFprobePath, log)
	var normOpts video.NormalizeOptions
	if job.slowMotion {
		normOpts.SlowFactor = app.Cfg.SlowFactor
	}
	videoPath, _, err := norm.Normalize(ctx, srcPath, filepath.Join(app.Cfg.UploadDir, "processed_"+job.storedName), normOpts)
	if err != nil {
		fail(fmt.Errorf("failed to normalize video: %w", err))
		return
	}

	// The pose pass is optional context for the analyzer. Its failure
	// degrades the analysis, it does not abort it.
	var keypointsPath string
	if job.det != nil {
		outDir := filepath.Join(app.Cfg.OutputDir, job.id)
		kpPath := filepath.Join(outDir, processing.KeypointsFileName(videoPath))
		proc := processing.NewProcessor(job.det, app.Cfg.FFmpegPath, app.Cfg.FFprobePath, log)
		_, err := proc.ProcessFile(ctx, videoPath, processing.Options{
			AnnotatedPath: filepath.Join(outDir, processing.AnnotatedFileName(videoPath)),
			KeypointsPath: kpPath,
		})
		if err != nil {
			log.Warn("pose pass failed, continuing without keypoints", zap.Error(err))
		} else if job.includeKeypoints {
			keypointsPath = kpPath
		}
	}

	pl := pipeline.New(job.analyzer, pipeline.Options{
		OutputDir:      filepath.Join(app.Cfg.OutputDir, job.id),
		UploadTimeout:  app.Cfg.UploadTimeout,
		AnalyzeTimeout: app.Cfg.AnalyzeTimeout,
	}, log)
	defer pl.Cleanup(ctx)

	outcome, err := pl.AnalyzeVideo(ctx, pipeline.Request{
		VideoPath:     videoPath,
		Prompt:        job.prompt,
		KeypointsPath: keypointsPath,
	})
	if err != nil {
		fail(err)
		return
	}

	var extracted, professional map[string]string
	if ph, err := phases.Parse(outcome.Analysis.Analysis); err != nil {
		log.Info("no parsable phases in analysis, skipping frame extraction", zap.Error(err))
	} else {
		fx := phases.NewExtractor(video.NewFrameExtractor(app.Cfg.FFmpegPath, app.Cfg.FFprobePath, log), app.Cfg.FramesDir, log)
		extracted = fx.ExtractFrames(ctx, ph, videoPath, job.id)
		professional = phases.ReferenceFrames(ph, app.Cfg.ProFramesDir)
	}

	resultJSON, err := json.Marshal(outcome)
	if err != nil {
		fail(fmt.Errorf("failed to encode analysis result: %w", err))
		return
	}

	job.rec.Status = store.StatusCompleted
	job.rec.Result = resultJSON
	job.rec.ExtractedFrames = extracted
	job.rec.ProfessionalFrames = professional
	if err := app.Store.Put(ctx, job.rec); err != nil {
		log.Error("failed to update analysis record", zap.Error(err))
		return
	}
	log.Info("analysis completed")
}

// formBool reads a boolean form value, keeping the default on absence
// or garbage.
func formBool(r *http.Request, key string, def bool) bool {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
