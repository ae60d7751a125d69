package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Organization metrics
	FilesOrganizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoset_files_organized_total",
			Help: "Total number of files placed into the dataset tree",
		},
		[]string{"split"},
	)

	FilesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoset_files_skipped_total",
			Help: "Total number of files skipped",
		},
		[]string{"reason"},
	)

	BytesMovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoset_bytes_moved_total",
			Help: "Total bytes copied or moved into the dataset tree",
		},
	)

	// Processing metrics
	VideosProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoset_videos_processed_total",
			Help: "Total number of videos normalized",
		},
		[]string{"status"},
	)

	FramesExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoset_frames_extracted_total",
			Help: "Total number of frames written by the sampler",
		},
	)

	FileProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoset_file_processing_duration_seconds",
			Help:    "Per-file processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.5 minutes
		},
		[]string{"stage"},
	)

	ProbeCacheAccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoset_probe_cache_access_total",
			Help: "Metadata catalog lookups by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordPlacement records a completed file placement.
func RecordPlacement(split string, bytes int64) {
	FilesOrganizedTotal.WithLabelValues(split).Inc()
	BytesMovedTotal.Add(float64(bytes))
}

// RecordSkip records a skipped file.
func RecordSkip(reason string) {
	FilesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordProcessed records a normalization outcome.
func RecordProcessed(status string, duration float64) {
	VideosProcessedTotal.WithLabelValues(status).Inc()
	FileProcessingDuration.WithLabelValues("normalize").Observe(duration)
}

// RecordFrames records extracted frames for one video.
func RecordFrames(count int, duration float64) {
	FramesExtractedTotal.Add(float64(count))
	FileProcessingDuration.WithLabelValues("frames").Observe(duration)
}

// RecordCacheAccess records a catalog hit or miss.
func RecordCacheAccess(hit bool) {
	if hit {
		ProbeCacheAccessTotal.WithLabelValues("hit").Inc()
	} else {
		ProbeCacheAccessTotal.WithLabelValues("miss").Inc()
	}
}
