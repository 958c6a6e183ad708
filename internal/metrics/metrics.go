package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swinglab_frames_processed_total",
		Help: "Total number of video frames run through a pose detector",
	})

	PoseDetectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swinglab_pose_detections_total",
		Help: "Total number of frames in which a pose was detected",
	})

	FrameProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swinglab_frame_processing_duration_seconds",
		Help:    "Per-frame detection wall-clock duration",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swinglab_uploads_total",
		Help: "Video uploads to the analysis provider, by status",
	}, []string{"status"})

	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swinglab_analyses_total",
		Help: "Remote video analyses, by status",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swinglab_analysis_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})
)
