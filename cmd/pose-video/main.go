package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/joho/godotenv"

	"github.com/poselab/swinglab/internal/config"
	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/logging"
	"github.com/poselab/swinglab/internal/processing"
)

const barTemplate = `{{counters . "%s/%s frames"}} {{bar . }} {{percent . }} {{etime . }} {{rtime . "%s remain"}}`

func main() {
	var (
		videoPath    = flag.String("video", "", "Path to the video file")
		detectorName = flag.String("detector", "mediapipe", "Pose detector to use")
		outputDir    = flag.String("output-dir", "pose_output", "Directory for outputs")
		noVideo      = flag.Bool("no-video", false, "Skip the annotated output video")
		noKeypoints  = flag.Bool("no-keypoints", false, "Skip the keypoints JSON")
		complexity   = flag.Int("model-complexity", 0, "Detector model complexity (0 = detector default)")
		minDetection = flag.Float64("min-detection-confidence", 0, "Minimum detection confidence (0 = detector default)")
		minTracking  = flag.Float64("min-tracking-confidence", 0, "Minimum tracking confidence (0 = detector default)")
		quiet        = flag.Bool("quiet", false, "Suppress the progress bar")
	)
	flag.Parse()

	if *videoPath == "" {
		log.Fatal("Please provide a video path with -video flag")
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

	det, err := detector.NewRegistry().New(*detectorName, detector.Options{
		Command:                cfg.DetectorCommand,
		ModelComplexity:        *complexity,
		MinDetectionConfidence: *minDetection,
		MinTrackingConfidence:  *minTracking,
		Logger:                 logger,
	})
	if err != nil {
		log.Fatal("Failed to create detector:", err)
	}

	var opts processing.Options
	if !*noKeypoints {
		opts.KeypointsPath = filepath.Join(*outputDir, processing.KeypointsFileName(*videoPath))
	}
	if !*noVideo {
		opts.AnnotatedPath = filepath.Join(*outputDir, processing.AnnotatedFileName(*videoPath))
	}

	var bar *pb.ProgressBar
	if !*quiet {
		opts.ProgressEvery = 1
		opts.Progress = func(processed, total int, eta time.Duration) {
			if bar == nil {
				bar = pb.ProgressBarTemplate(barTemplate).Start(total)
			}
			bar.SetCurrent(int64(processed))
		}
	}

	fmt.Printf("Processing %s with %s detector\n", filepath.Base(*videoPath), det.Name())

	proc := processing.NewProcessor(det, cfg.FFmpegPath, cfg.FFprobePath, logger)
	summary, err := proc.ProcessFile(context.Background(), *videoPath, opts)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		log.Fatal("Processing failed:", err)
	}

	stats := summary.Stats
	fmt.Printf("\n✓ Processed %d frames in %.1fs (%.1f fps)\n",
		stats.TotalFrames, stats.TotalProcessingTime, stats.AverageFPS)
	fmt.Printf("  Poses detected: %d (%.1f%%)\n", stats.FramesWithPose, stats.DetectionRate*100)
	if summary.KeypointsPath != "" {
		fmt.Printf("  Keypoints: %s\n", summary.KeypointsPath)
	}
	if summary.AnnotatedPath != "" {
		fmt.Printf("  Annotated video: %s\n", summary.AnnotatedPath)
	}
}
