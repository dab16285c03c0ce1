package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/judgment-search/internal/core/domain"
)

const namespace = "judgments"

// UploadMetrics records per-file and per-batch upload telemetry.
type UploadMetrics struct {
	service string

	uploadTotal    *prometheus.CounterVec
	uploadDuration *prometheus.HistogramVec
	batchTotal     *prometheus.CounterVec
	batchFiles     *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
}

// NewUploadMetrics registers on registry, or on a private one when nil.
func NewUploadMetrics(service string, registry *prometheus.Registry) *UploadMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	uploadTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "files_total",
			Help:      "Total uploaded files by status.",
		},
		[]string{"service", "status"},
	)
	uploadDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "file_duration_seconds",
			Help:      "Single file upload duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "batches_total",
			Help:      "Total finished upload batches by status.",
		},
		[]string{"service", "status"},
	)
	batchFiles := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "batch_files",
			Help:      "Distribution of accepted files per batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		},
		[]string{"service"},
	)

	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "breaker_state",
			Help:      "Outbound circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(uploadTotal, uploadDuration, batchTotal, batchFiles, breakerState)

	return &UploadMetrics{
		service:        service,
		uploadTotal:    uploadTotal,
		uploadDuration: uploadDuration,
		batchTotal:     batchTotal,
		batchFiles:     batchFiles,
		breakerState:   breakerState,
	}
}

func (m *UploadMetrics) ObserveUpload(outcome domain.UploadOutcome, duration time.Duration) {
	status := "success"
	if !outcome.Succeeded {
		status = "error"
	}
	m.uploadTotal.WithLabelValues(m.service, status).Inc()
	m.uploadDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *UploadMetrics) ObserveBatch(summary domain.BatchSummary) {
	status := summary.Status.String()
	if status == "" {
		status = "unknown"
	}
	m.batchTotal.WithLabelValues(m.service, status).Inc()
	m.batchFiles.WithLabelValues(m.service).Observe(float64(summary.Total))
}

// ObserveBreakerState takes the breaker's state name: closed, half-open or open.
func (m *UploadMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
