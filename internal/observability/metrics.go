package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts handled requests by method, route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_http_requests_total",
		Help: "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// HTTPLatency records request latency by route.
	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feed_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// FeedComposeLatency records how long composing one feed takes.
	FeedComposeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_compose_duration_seconds",
		Help:    "Feed composition latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// FeedSourceFailures counts followee post reads that failed and were skipped.
	FeedSourceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_source_failures_total",
		Help: "Followee post reads that failed during feed composition",
	})

	// LikeToggles counts like toggles by result (liked, unliked, error).
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_like_toggles_total",
		Help: "Like toggles by result",
	}, []string{"result"})

	// NotificationsDispatched counts notification dispatch outcomes (queued, dropped, written, failed).
	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_notifications_dispatched_total",
		Help: "Notification dispatch outcomes",
	}, []string{"outcome"})

	// UploadBytes counts bytes sent to the object store.
	UploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_upload_bytes_total",
		Help: "Bytes uploaded to the object store",
	})

	// BestEffortFailures counts swallowed failures of side effects by operation.
	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_best_effort_failures_total",
		Help: "Failures of best-effort side effects by operation",
	}, []string{"operation"})

	// LiveStreams is the gauge of open WebSocket streams by kind.
	LiveStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "feed_live_streams",
		Help: "Open live WebSocket streams by kind",
	}, []string{"kind"})
)
