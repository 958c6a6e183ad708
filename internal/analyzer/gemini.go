package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/video"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.5-flash"

	defaultTemperature     = 0.1
	defaultMaxOutputTokens = 8192
	defaultPollInterval    = 2 * time.Second

	fileStateProcessing = "PROCESSING"
	fileStateActive     = "ACTIVE"
	fileStateFailed     = "FAILED"
)

// Gemini talks to the Google Generative Language API over REST: upload
// a video through the resumable file endpoint, wait for ingestion,
// then run generateContent with the file attached.
type Gemini struct {
	apiKey       string
	baseURL      string
	model        string
	temperature  float64
	maxTokens    int
	pollInterval time.Duration

	// No client timeout: uploads and analyses are long calls, the
	// caller's context carries the deadline.
	httpClient *http.Client
	log        *zap.Logger

	initialized bool
	uploads     map[string]*Artifact
}

func NewGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Gemini{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
		pollInterval: cfg.PollInterval,
		httpClient:   &http.Client{},
		log:          cfg.Logger.With(zap.String("analyzer", "gemini")),
		uploads:      make(map[string]*Artifact),
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Info() map[string]any {
	return map[string]any{
		"name":              "gemini",
		"model_name":        g.model,
		"is_initialized":    g.initialized,
		"temperature":       g.temperature,
		"max_output_tokens": g.maxTokens,
		"uploaded_videos":   len(g.uploads),
		"supported_formats": video.SupportedExtensions(),
	}
}

// Initialize verifies the API key and the configured model by fetching
// the model resource.
func (g *Gemini) Initialize(ctx context.Context) error {
	var model geminiModel
	if err := g.getJSON(ctx, "/v1beta/models/"+g.model, &model); err != nil {
		return fmt.Errorf("gemini initialization failed: %w", err)
	}
	g.initialized = true
	g.log.Info("gemini initialized", zap.String("model", g.model))
	return nil
}

// UploadVideo pushes the file through the resumable upload endpoint
// and polls until the provider has finished processing it.
func (g *Gemini) UploadVideo(ctx context.Context, videoPath string) (*Artifact, error) {
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	if err := ValidateVideoFile(videoPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat video: %w", err)
	}
	mimeType := video.MIMEType(videoPath)
	displayName := filepath.Base(videoPath)

	g.log.Info("uploading video",
		zap.String("path", videoPath),
		zap.Int64("size", info.Size()),
		zap.String("mime_type", mimeType))

	uploadURL, err := g.startUpload(ctx, displayName, mimeType, info.Size())
	if err != nil {
		return nil, err
	}

	artifact, err := g.sendUpload(ctx, uploadURL, videoPath, mimeType, info.Size())
	if err != nil {
		return nil, err
	}

	artifact, err = g.waitForFile(ctx, artifact)
	if err != nil {
		return nil, err
	}

	g.uploads[artifact.ID] = artifact
	g.log.Info("video uploaded", zap.String("file", artifact.ID))
	return artifact, nil
}

// startUpload opens a resumable upload session and returns its URL.
func (g *Gemini) startUpload(ctx context.Context, displayName, mimeType string, size int64) (string, error) {
	var start geminiUploadStart
	start.File.DisplayName = displayName
	body, err := json.Marshal(start)
	if err != nil {
		return "", fmt.Errorf("failed to marshal upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/upload/v1beta/files", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to start upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiErrorFrom(resp)
	}
	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("upload session missing X-Goog-Upload-URL header")
	}
	return uploadURL, nil
}

// sendUpload streams the file bytes into the session and finalizes it.
func (g *Gemini) sendUpload(ctx context.Context, uploadURL, videoPath, mimeType string, size int64) (*Artifact, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom(resp)
	}

	var fileResp geminiFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&fileResp); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}
	if fileResp.File.Name == "" {
		return nil, fmt.Errorf("upload response missing file name")
	}

	return &Artifact{
		ID:          fileResp.File.Name,
		URI:         fileResp.File.URI,
		MIMEType:    mimeType,
		DisplayName: fileResp.File.DisplayName,
		State:       fileResp.File.State,
	}, nil
}

// waitForFile polls the file resource until it leaves PROCESSING.
func (g *Gemini) waitForFile(ctx context.Context, artifact *Artifact) (*Artifact, error) {
	for artifact.State == fileStateProcessing {
		g.log.Debug("video processing in progress", zap.String("file", artifact.ID))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}

		var file geminiFile
		if err := g.getJSON(ctx, "/v1beta/"+artifact.ID, &file); err != nil {
			return nil, fmt.Errorf("failed to poll uploaded file: %w", err)
		}
		artifact.State = file.State
		if file.URI != "" {
			artifact.URI = file.URI
		}
	}

	if artifact.State == fileStateFailed {
		return nil, fmt.Errorf("gemini failed to process video %s", artifact.ID)
	}
	return artifact, nil
}

// AnalyzeVideo runs generateContent with the prompt, any formatted
// supplementary context and the uploaded video, in that part order.
func (g *Gemini) AnalyzeVideo(ctx context.Context, artifact *Artifact, prompt string, extra map[string]any) (*Result, error) {
	if !g.initialized {
		return nil, ErrNotInitialized
	}
	if artifact == nil {
		return nil, fmt.Errorf("nil artifact")
	}
	if _, ok := g.uploads[artifact.ID]; !ok {
		return nil, fmt.Errorf("video reference not found: %s", artifact.ID)
	}

	parts := []geminiPart{{Text: prompt}}
	if ctxText := FormatContext(extra); ctxText != "" {
		parts = append(parts, geminiPart{Text: ctxText})
	}
	parts = append(parts, geminiPart{FileData: &geminiFileData{
		MIMEType: artifact.MIMEType,
		FileURI:  artifact.URI,
	}})

	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	g.log.Info("sending video for analysis", zap.String("file", artifact.ID))
	start := time.Now()

	url := g.baseURL + "/v1beta/models/" + g.model + ":generateContent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if genResp.Error != nil {
		return nil, &APIError{Code: genResp.Error.Code, Status: genResp.Error.Status, Message: genResp.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Code: resp.StatusCode, Message: string(body)}
	}

	text := genResp.Text()
	if text == "" {
		return nil, fmt.Errorf("no response received from gemini")
	}

	elapsed := time.Since(start)
	result := &Result{
		Analysis: text,
		Metadata: Meta{
			ModelName:       g.model,
			ProcessingTime:  elapsed.Seconds(),
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}
	if u := genResp.UsageMetadata; u != nil {
		result.Metadata.PromptTokens = u.PromptTokenCount
		result.Metadata.ResponseTokens = u.CandidatesTokenCount
		result.Metadata.TotalTokens = u.TotalTokenCount
	}

	g.log.Info("analysis completed", zap.Duration("elapsed", elapsed))
	return result, nil
}

// CleanupVideo deletes the uploaded file. Untracked artifacts and
// files the provider has already forgotten both count as success.
func (g *Gemini) CleanupVideo(ctx context.Context, artifact *Artifact) error {
	if artifact == nil {
		return nil
	}
	if _, ok := g.uploads[artifact.ID]; !ok {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+"/v1beta/"+artifact.ID, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return apiErrorFrom(resp)
	}

	delete(g.uploads, artifact.ID)
	g.log.Info("video cleaned up", zap.String("file", artifact.ID))
	return nil
}

// ListModels fetches the models visible to this API key.
func (g *Gemini) ListModels(ctx context.Context) ([]Model, error) {
	var list geminiModelList
	if err := g.getJSON(ctx, "/v1beta/models", &list); err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, Model{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Description: m.Description,
		})
	}
	return models, nil
}

// Model describes one provider model, for readiness checks.
type Model struct {
	Name        string
	DisplayName string
	Description string
}

func (g *Gemini) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiErrorFrom(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiErrorFrom turns a non-2xx response into an APIError, falling back
// to the raw body when it is not the standard error envelope.
func apiErrorFrom(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var envelope struct {
		Error *geminiError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		return &APIError{Code: envelope.Error.Code, Status: envelope.Error.Status, Message: envelope.Error.Message}
	}
	return &APIError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
}
