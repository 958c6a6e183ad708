// Package pipeline owns the upload/analyze/cleanup lifecycle of videos
// against one remote analyzer instance, with best-effort reclamation
// of everything it uploaded.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/metrics"
	"github.com/poselab/swinglab/internal/pose"
)

// State is the lifecycle position of one video in the pipeline.
type State string

const (
	StateCreated     State = "created"
	StateInitialized State = "initialized"
	StateUploaded    State = "uploaded"
	StateAnalyzed    State = "analyzed"
	StateCleaned     State = "cleaned"
	StateFailed      State = "failed"
)

// Request describes one video to analyze.
type Request struct {
	VideoPath string
	Prompt    string

	// KeypointsPath optionally attaches a keypoints document as
	// supplementary context. A missing or unreadable file is logged
	// and skipped, never fatal.
	KeypointsPath string

	// Extra is merged into the supplementary context verbatim.
	Extra map[string]any

	// KeepUploaded leaves the artifact on the provider; the pipeline
	// still tracks it and removes it on Cleanup.
	KeepUploaded bool
}

// Outcome is the result envelope for one analyzed video, persisted as
// analysis_<stem>.json.
type Outcome struct {
	VideoPath              string           `json:"video_path"`
	AnalyzerInfo           map[string]any   `json:"analyzer_info"`
	Prompt                 string           `json:"prompt"`
	Analysis               *analyzer.Result `json:"analysis"`
	AdditionalDataProvided bool             `json:"additional_data_provided"`

	State      State  `json:"-"`
	ResultPath string `json:"-"`
}

// ItemResult pairs one batch entry with its outcome or error.
type ItemResult struct {
	VideoPath string
	Outcome   *Outcome
	Err       error
}

// Options tune one pipeline instance. Zero timeouts mean the caller's
// context is the only deadline.
type Options struct {
	// OutputDir receives analysis_<stem>.json files; empty disables
	// persistence.
	OutputDir      string
	UploadTimeout  time.Duration
	AnalyzeTimeout time.Duration
}

// Pipeline drives one analyzer. Operations against one video are
// sequential, so no locking; distinct pipeline instances may run
// concurrently as long as they do not share an analyzer.
type Pipeline struct {
	analyzer analyzer.Analyzer
	opts     Options
	log      *zap.Logger

	initialized bool
	tracked     map[string]*analyzer.Artifact
}

func New(a analyzer.Analyzer, opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		analyzer: a,
		opts:     opts,
		log:      log.With(zap.String("component", "pipeline")),
		tracked:  make(map[string]*analyzer.Artifact),
	}
}

// Initialize readies the analyzer. Failure is fatal for the run; no
// upload is attempted after it.
func (p *Pipeline) Initialize(ctx context.Context) error {
	if p.initialized {
		return nil
	}
	if err := p.analyzer.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	p.initialized = true
	return nil
}

// AnalyzeVideo runs one video through upload, analysis, persistence
// and cleanup. Any obtained artifact is reclaimed best-effort on
// failure.
func (p *Pipeline) AnalyzeVideo(ctx context.Context, req Request) (*Outcome, error) {
	log := p.log.With(zap.String("video", req.VideoPath))
	log.Info("starting video analysis", zap.String("analyzer", p.analyzer.Name()))

	fail := func(err error) (*Outcome, error) {
		metrics.AnalysesTotal.WithLabelValues("failure").Inc()
		return nil, err
	}

	if err := p.Initialize(ctx); err != nil {
		return fail(err)
	}

	uploadStart := time.Now()
	artifact, err := p.uploadWithTimeout(ctx, req.VideoPath)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("failure").Inc()
		return fail(fmt.Errorf("failed to upload video: %w", err))
	}
	metrics.UploadsTotal.WithLabelValues("success").Inc()
	metrics.AnalysisDuration.WithLabelValues("upload").Observe(time.Since(uploadStart).Seconds())
	p.tracked[artifact.ID] = artifact
	log.Info("video uploaded", zap.String("artifact", artifact.ID))

	extra := p.buildContext(req, log)

	analyzeStart := time.Now()
	result, err := p.analyzeWithTimeout(ctx, artifact, req.Prompt, extra)
	if err != nil {
		// The parent context may already be dead, cleanup still has
		// to reach the provider.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		p.releaseArtifact(cleanupCtx, artifact)
		cancel()
		return fail(fmt.Errorf("failed to analyze video: %w", err))
	}
	metrics.AnalysisDuration.WithLabelValues("analyze").Observe(time.Since(analyzeStart).Seconds())

	outcome := &Outcome{
		VideoPath:              req.VideoPath,
		AnalyzerInfo:           p.analyzer.Info(),
		Prompt:                 req.Prompt,
		Analysis:               result,
		AdditionalDataProvided: len(extra) > 0,
		State:                  StateAnalyzed,
	}

	// Persist before cleanup so a successful analysis survives even
	// when the provider-side delete misbehaves.
	if p.opts.OutputDir != "" {
		path, err := p.saveOutcome(req.VideoPath, outcome)
		if err != nil {
			log.Error("failed to save analysis result", zap.Error(err))
		} else {
			outcome.ResultPath = path
			log.Info("analysis result saved", zap.String("path", path))
		}
	}

	if !req.KeepUploaded {
		p.releaseArtifact(ctx, artifact)
		outcome.State = StateCleaned
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	log.Info("video analysis completed")
	return outcome, nil
}

// AnalyzeBatch processes requests in order. One item's failure is
// recorded in its slot and never stops the siblings.
func (p *Pipeline) AnalyzeBatch(ctx context.Context, reqs []Request) []ItemResult {
	results := make([]ItemResult, 0, len(reqs))
	for i, req := range reqs {
		p.log.Info("processing batch item",
			zap.Int("index", i+1),
			zap.Int("count", len(reqs)),
			zap.String("video", filepath.Base(req.VideoPath)))

		outcome, err := p.AnalyzeVideo(ctx, req)
		if err != nil {
			p.log.Error("batch item failed", zap.String("video", req.VideoPath), zap.Error(err))
		}
		results = append(results, ItemResult{VideoPath: req.VideoPath, Outcome: outcome, Err: err})
	}
	return results
}

// SaveBatchResults writes the combined batch document keyed by video
// stem, failures included.
func (p *Pipeline) SaveBatchResults(results []ItemResult) (string, error) {
	if p.opts.OutputDir == "" {
		return "", fmt.Errorf("no output directory configured")
	}
	combined := make(map[string]any, len(results))
	for _, item := range results {
		if item.Err != nil {
			combined[videoStem(item.VideoPath)] = map[string]string{"error": item.Err.Error()}
			continue
		}
		combined[videoStem(item.VideoPath)] = item.Outcome
	}

	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(p.opts.OutputDir, "batch_analysis_results.json")
	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch results: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write batch results: %w", err)
	}
	return path, nil
}

// Cleanup sweeps every artifact the pipeline still tracks. Per-item
// failures are logged and the sweep continues.
func (p *Pipeline) Cleanup(ctx context.Context) {
	for _, artifact := range p.tracked {
		p.releaseArtifact(ctx, artifact)
	}
}

// Tracked reports how many uploaded artifacts await cleanup.
func (p *Pipeline) Tracked() int {
	return len(p.tracked)
}

// releaseArtifact removes the provider-side upload best-effort. The
// handle leaves the tracking set either way, so cleanup is never
// retried for the same artifact.
func (p *Pipeline) releaseArtifact(ctx context.Context, artifact *analyzer.Artifact) {
	if err := p.analyzer.CleanupVideo(ctx, artifact); err != nil {
		p.log.Warn("failed to cleanup uploaded video",
			zap.String("artifact", artifact.ID),
			zap.Error(err))
	}
	delete(p.tracked, artifact.ID)
}

func (p *Pipeline) uploadWithTimeout(ctx context.Context, videoPath string) (*analyzer.Artifact, error) {
	if p.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.UploadTimeout)
		defer cancel()
	}
	return p.analyzer.UploadVideo(ctx, videoPath)
}

func (p *Pipeline) analyzeWithTimeout(ctx context.Context, artifact *analyzer.Artifact, prompt string, extra map[string]any) (*analyzer.Result, error) {
	if p.opts.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.AnalyzeTimeout)
		defer cancel()
	}
	return p.analyzer.AnalyzeVideo(ctx, artifact, prompt, extra)
}

// buildContext merges the request's extra data with the keypoints
// document, when one is configured and readable.
func (p *Pipeline) buildContext(req Request, log *zap.Logger) map[string]any {
	extra := make(map[string]any, len(req.Extra)+1)
	for k, v := range req.Extra {
		extra[k] = v
	}
	if req.KeypointsPath != "" {
		doc, err := loadKeypoints(req.KeypointsPath)
		if err != nil {
			log.Warn("skipping keypoints context", zap.String("path", req.KeypointsPath), zap.Error(err))
		} else {
			extra["keypoints"] = doc
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func (p *Pipeline) saveOutcome(videoPath string, outcome *Outcome) (string, error) {
	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(p.opts.OutputDir, AnalysisFileName(videoPath))
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal analysis result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write analysis result: %w", err)
	}
	return path, nil
}

func loadKeypoints(path string) (*pose.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypoints file: %w", err)
	}
	var doc pose.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse keypoints file: %w", err)
	}
	return &doc, nil
}

// AnalysisFileName names the persisted analysis for a video.
func AnalysisFileName(videoPath string) string {
	return "analysis_" + videoStem(videoPath) + ".json"
}

func videoStem(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
