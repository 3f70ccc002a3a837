package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/common/middleware"
	"github.com/workwhile/automation/ingest/internal/handlers"
	"github.com/workwhile/automation/ingest/internal/ratelimit"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Webhook *handlers.WebhookHandler
	Health  *handlers.HealthHandler
	API     *handlers.APIHandler
	// DLQ is nil when the dead letter queue is disabled.
	DLQ *handlers.DLQHandler
	// Stats is nil when traffic statistics are disabled.
	Stats *handlers.StatsHandler
}

type Options struct {
	WebhookPath string
	// Limiter guards the webhook route. Nil disables rate limiting.
	Limiter     ratelimit.RateLimiter
	RateWindow  time.Duration
	CORS        middleware.CORSConfig
	Security    middleware.SecurityConfig
	SlowRequest time.Duration
	Logger      *logging.Logger
}

// NewRouter constructs a ServeMux with every route registered and wraps it
// in the standard middleware chain.
func NewRouter(h Handlers, opts Options) http.Handler {
	mux := http.NewServeMux()

	// Webhooks
	var webhook http.Handler = h.Webhook
	if opts.Limiter != nil {
		webhook = ratelimit.Middleware(opts.Limiter, opts.RateWindow, opts.Logger)(webhook)
	}
	mux.Handle("POST "+opts.WebhookPath, webhook)
	mux.HandleFunc("GET /api/webhooks/health", h.API.WebhooksHealth)
	if h.Stats != nil {
		mux.HandleFunc("GET /api/webhooks/stats", h.Stats.Stats)
	}

	// API
	mux.HandleFunc("GET /api", h.API.Info)
	mux.HandleFunc("GET /api/{$}", h.API.Info)
	mux.HandleFunc("GET /api/status", h.API.Status)
	mux.HandleFunc("POST /api/echo", h.API.Echo)
	if h.DLQ != nil {
		mux.HandleFunc("GET /api/dlq", h.DLQ.List)
		mux.HandleFunc("DELETE /api/dlq", h.DLQ.Purge)
	}
	mux.HandleFunc("/api/", h.API.APINotFound)

	// Health endpoints
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.HandleFunc("GET /health/detailed", h.Health.Detailed)
	mux.HandleFunc("GET /health/ready", h.Health.Ready)
	mux.HandleFunc("GET /health/live", h.Health.Live)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("/", h.API.Root)

	var handler http.Handler = mux
	handler = middleware.CORS(opts.CORS)(handler)
	handler = middleware.SecurityHeaders(opts.Security)(handler)
	handler = middleware.AccessLog(opts.Logger.Logger, opts.SlowRequest)(handler)
	handler = middleware.RequestID(handler)
	return handler
}
