// Package analyzer defines the capability surface for remote
// video-understanding providers and a registry that constructs them by
// name.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/video"
)

var (
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
	ErrNotInitialized  = errors.New("analyzer not initialized")
)

// Artifact is the provider-side handle for an uploaded video. Callers
// treat it as opaque; only the provider that issued it interprets the
// fields.
type Artifact struct {
	ID          string
	URI         string
	MIMEType    string
	DisplayName string
	State       string
}

// Result is one completed analysis. The JSON shape matches the
// "analysis" block of the persisted analysis file.
type Result struct {
	Analysis string `json:"analysis"`
	Metadata Meta   `json:"metadata"`
}

// Meta records how a Result was produced. ProcessingTime is in
// seconds; token counts are zero when the provider does not report
// usage.
type Meta struct {
	ModelName       string  `json:"model_name"`
	ProcessingTime  float64 `json:"processing_time"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	PromptTokens    int     `json:"prompt_tokens,omitempty"`
	ResponseTokens  int     `json:"response_tokens,omitempty"`
	TotalTokens     int     `json:"total_tokens,omitempty"`
}

// Analyzer uploads videos to a remote understanding service and
// retrieves reports about them. Implementations keep per-upload
// bookkeeping that is not safe for concurrent mutation; each pipeline
// owns its own instance.
type Analyzer interface {
	Name() string

	// Info describes the configured provider for result envelopes.
	Info() map[string]any

	// Initialize authenticates against the provider. It must succeed
	// before any other call.
	Initialize(ctx context.Context) error

	// UploadVideo validates the file locally, uploads it and blocks
	// until the provider has finished ingesting it.
	UploadVideo(ctx context.Context, videoPath string) (*Artifact, error)

	// AnalyzeVideo runs the prompt against an uploaded video. extra
	// carries optional supplementary context, e.g. a keypoints
	// document under the "keypoints" key.
	AnalyzeVideo(ctx context.Context, artifact *Artifact, prompt string, extra map[string]any) (*Result, error)

	// CleanupVideo removes an uploaded video from the provider.
	// Artifacts that were never tracked or are already removed
	// succeed.
	CleanupVideo(ctx context.Context, artifact *Artifact) error
}

// Config carries the construction knobs the registry exposes. Zero
// values mean "use the provider's default".
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	PollInterval    time.Duration

	Logger *zap.Logger
}

// APIError is a provider error translated off the wire.
type APIError struct {
	Code    int
	Status  string
	Message string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("api error %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Code, e.Message)
}

// ValidateVideoFile rejects missing files, directories and unsupported
// extensions. It runs before any network call so a bad path never
// costs an upload.
func ValidateVideoFile(videoPath string) error {
	info, err := os.Stat(videoPath)
	if err != nil {
		return fmt.Errorf("video file not accessible: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("video path is a directory: %s", videoPath)
	}
	if !video.SupportedExtension(videoPath) {
		return fmt.Errorf("%w: %s (supported: %s)",
			video.ErrUnsupportedExtension, videoPath, strings.Join(video.SupportedExtensions(), ", "))
	}
	return nil
}
