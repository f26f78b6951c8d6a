package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "visionstream",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	JobsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "jobs_enqueued_total",
		Help:      "Total jobs enqueued by source type.",
	}, []string{"type"})

	JobsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "jobs_completed_total",
		Help:      "Total jobs that reached completed status.",
	})

	JobsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "jobs_failed_total",
		Help:      "Total jobs that reached failed status.",
	})

	JobsCancelledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "jobs_cancelled_total",
		Help:      "Total jobs that reached cancelled status.",
	})

	QueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "visionstream",
		Name:      "queue_length",
		Help:      "Number of jobs currently waiting in the priority queue.",
	})

	ActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "visionstream",
		Name:      "active_jobs",
		Help:      "Number of jobs currently assigned or processing.",
	})

	GPUsAvailable = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "visionstream",
		Name:      "gpus_available",
		Help:      "Number of GPU slots currently free for assignment.",
	})

	GPUUtilization = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "visionstream",
		Name:      "gpu_utilization_percent",
		Help:      "Per-device GPU utilization as last probed.",
	}, []string{"gpu"})

	EventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "events_emitted_total",
		Help:      "Total events emitted by event code.",
	}, []string{"code"})

	AlertsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "alerts_created_total",
		Help:      "Total alerts created by channel.",
	}, []string{"channel"})

	InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "visionstream",
		Name:      "inference_duration_seconds",
		Help:      "Duration of a single detector call in seconds.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	FramesProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "frames_processed_total",
		Help:      "Total frames run through the detector.",
	})

	ChunksCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "chunks_created_total",
		Help:      "Total video chunks produced by the chunker.",
	})

	ClipsExtractedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "visionstream",
		Name:      "clips_extracted_total",
		Help:      "Total event clips written to disk.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		JobsEnqueuedTotal,
		JobsCompletedTotal,
		JobsFailedTotal,
		JobsCancelledTotal,
		QueueLength,
		ActiveJobs,
		GPUsAvailable,
		GPUUtilization,
		EventsEmittedTotal,
		AlertsCreatedTotal,
		InferenceDuration,
		FramesProcessedTotal,
		ChunksCreatedTotal,
		ClipsExtractedTotal,
	)
}
