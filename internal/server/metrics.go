package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsplit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridsplit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Split processing metrics
	splitRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsplit_split_requests_total",
			Help: "Total number of split requests",
		},
		[]string{"type", "status"}, // type: image, pdf, websocket
	)

	splitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridsplit_split_duration_seconds",
			Help:    "Split processing duration in seconds, including text extraction",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 25, 50},
		},
		[]string{"type"},
	)

	regionsPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gridsplit_regions_per_image",
			Help:    "Number of regions produced per image",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"type"},
	)

	regionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsplit_region_failures_total",
			Help: "Regions whose extraction or persistence failed",
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsplit_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, data
	)

	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gridsplit_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024, 100 * 1024 * 1024},
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridsplit_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridsplit_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)

// observeResult records per-image metrics for a finished split.
func observeResult(kind string, regions, failed int) {
	regionsPerImage.WithLabelValues(kind).Observe(float64(regions))
	if failed > 0 {
		regionFailures.WithLabelValues(kind).Add(float64(failed))
	}
}
