package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/poselab/swinglab/internal/analyzer"
	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/logging"
	"github.com/poselab/swinglab/internal/pipeline"
)

func main() {
	var (
		apiKey       = flag.String("api-key", "", "Analyzer API key (default: GEMINI_API_KEY env)")
		analyzerName = flag.String("analyzer", "gemini", "Video analyzer to use")
		model        = flag.String("model", "", "Model name (default: analyzer's default)")
		promptType   = flag.String("prompt-type", "tennis", "Prompt type: tennis, general or custom")
		customPrompt = flag.String("prompt", "", "Custom analysis prompt (requires -prompt-type=custom)")
		keypoints    = flag.String("keypoints", "", "Keypoints JSON file to attach as analysis context")
		outputDir    = flag.String("output-dir", "analysis_output", "Output directory for results")
		temperature  = flag.Float64("temperature", 0, "Response randomness (0 = analyzer default)")
		maxTokens    = flag.Int("max-tokens", 0, "Maximum response length (0 = analyzer default)")
		noCleanup    = flag.Bool("no-cleanup", false, "Keep uploaded videos on the provider")
	)
	flag.Parse()

	videos := flag.Args()
	if len(videos) == 0 {
		log.Fatal("Please provide at least one video path")
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	key := *apiKey
	if key == "" {
		key = cfg.GeminiAPIKey
	}
	an, err := analyzer.NewRegistry().New(*analyzerName, analyzer.Config{
		APIKey:          key,
		BaseURL:         cfg.GeminiBaseURL,
		Model:           *model,
		Temperature:     *temperature,
		MaxOutputTokens: *maxTokens,
		Logger:          logger,
	})
	if err != nil {
		log.Fatal("Failed to create analyzer:", err)
	}

	prompt, err := analyzer.PromptForType(*promptType, *customPrompt)
	if err != nil {
		log.Fatal("Invalid prompt options:", err)
	}

	ctx := context.Background()
	pl := pipeline.New(an, pipeline.Options{
		OutputDir:      *outputDir,
		UploadTimeout:  cfg.UploadTimeout,
		AnalyzeTimeout: cfg.AnalyzeTimeout,
	}, logger)
	defer pl.Cleanup(ctx)

	if len(videos) > 1 {
		runBatch(ctx, pl, videos, prompt, *keypoints, *noCleanup, *outputDir)
		return
	}

	outcome, err := pl.AnalyzeVideo(ctx, pipeline.Request{
		VideoPath:     videos[0],
		Prompt:        prompt,
		KeypointsPath: *keypoints,
		KeepUploaded:  *noCleanup,
	})
	if err != nil {
		log.Fatal("Analysis failed:", err)
	}

	printOutcome(outcome, *outputDir)
}

func runBatch(ctx context.Context, pl *pipeline.Pipeline, videos []string, prompt, keypoints string, noCleanup bool, outputDir string) {
	reqs := make([]pipeline.Request, 0, len(videos))
	for _, v := range videos {
		reqs = append(reqs, pipeline.Request{
			VideoPath:     v,
			Prompt:        prompt,
			KeypointsPath: keypoints,
			KeepUploaded:  noCleanup,
		})
	}

	results := pl.AnalyzeBatch(ctx, reqs)

	succeeded := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("✗ %s: %v\n", r.VideoPath, r.Err)
			continue
		}
		succeeded++
		fmt.Printf("✓ %s (%.2fs)\n", r.VideoPath, r.Outcome.Analysis.Metadata.ProcessingTime)
	}

	path, err := pl.SaveBatchResults(results)
	if err != nil {
		log.Fatal("Failed to save batch results:", err)
	}
	fmt.Printf("\n%d/%d videos analyzed, combined results in %s\n", succeeded, len(results), path)
	if succeeded < len(results) {
		os.Exit(1)
	}
}

func printOutcome(outcome *pipeline.Outcome, outputDir string) {
	line := strings.Repeat("=", 80)
	meta := outcome.Analysis.Metadata

	fmt.Println()
	fmt.Println(line)
	fmt.Println("VIDEO ANALYSIS COMPLETE")
	fmt.Println(line)
	fmt.Printf("Video: %s\n", outcome.VideoPath)
	if name, ok := outcome.AnalyzerInfo["name"]; ok {
		fmt.Printf("Analyzer: %v\n", name)
	}
	fmt.Printf("Model: %s\n", meta.ModelName)
	fmt.Printf("Processing time: %.2fs\n", meta.ProcessingTime)
	if meta.TotalTokens > 0 {
		fmt.Printf("Tokens used: %d\n", meta.TotalTokens)
	}
	fmt.Printf("Output directory: %s\n", outputDir)
	fmt.Println()
	fmt.Println(line)
	fmt.Println("ANALYSIS RESULT:")
	fmt.Println(line)
	fmt.Println(outcome.Analysis.Analysis)
	fmt.Println(line)
}
