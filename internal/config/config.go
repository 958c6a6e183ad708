package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port          int    `env:"PORT"            envDefault:"8080"`
	MetricsPort   int    `env:"METRICS_PORT"    envDefault:"9090"`
	LogLevel      string `env:"LOG_LEVEL"       envDefault:"info"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"524288000"`

	UploadDir    string `env:"UPLOAD_DIR"     envDefault:"./uploads"`
	FramesDir    string `env:"FRAMES_DIR"     envDefault:"./frames"`
	ProFramesDir string `env:"PRO_FRAMES_DIR" envDefault:"./professional_frames"`
	OutputDir    string `env:"OUTPUT_DIR"     envDefault:"./output"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"sqlite"`
	DatabasePath string `env:"DB_PATH"       envDefault:"./swinglab.db"`

	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`

	DetectorCommand string `env:"DETECTOR_CMD" envDefault:"pose-worker"`

	FFmpegPath  string  `env:"FFMPEG_PATH"  envDefault:"ffmpeg"`
	FFprobePath string  `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	SlowFactor  float64 `env:"SLOW_FACTOR"  envDefault:"2.0"`

	UploadTimeout  time.Duration `env:"UPLOAD_TIMEOUT"  envDefault:"2m"`
	AnalyzeTimeout time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"5m"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
