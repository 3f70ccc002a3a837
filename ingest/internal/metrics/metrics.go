package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for WebhookEventsTotal.
const (
	OutcomeProcessed = "processed"
	OutcomeUnhandled = "unhandled"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

var (
	// Webhook intake metrics
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_webhook_requests_total",
			Help: "Total number of webhook requests by HTTP status code",
		},
		[]string{"code"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_webhook_bytes_total",
			Help: "Total bytes of webhook payloads received",
		},
	)

	// Dispatch metrics. event_type is "unknown" for types without a handler.
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_webhook_events_total",
			Help: "Total number of webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workwhile_ingest_dispatch_duration_seconds",
			Help:    "Duration of webhook event dispatch in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	// Sink metrics
	SinkDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_sink_deliveries_total",
			Help: "Total number of sink deliveries by backend and status",
		},
		[]string{"backend", "status"},
	)

	SinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workwhile_ingest_sink_duration_seconds",
			Help:    "Duration of sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	DLQWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_dlq_writes_total",
			Help: "Total number of failed deliveries written to the dead letter queue by status",
		},
		[]string{"status"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_rate_limit_hits_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	RateLimitErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "workwhile_ingest_rate_limit_errors_total",
			Help: "Total number of rate limiter backend errors (requests allowed)",
		},
	)
)
