package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

const (
	ServiceName    = "WorkWhile Automation Server"
	ServiceVersion = "1.0.0"
	APIVersion     = "v1"

	maxEchoBody = 64 << 10
)

// APIHandler serves the informational routes under / and /api.
type APIHandler struct {
	cfg       *config.Config
	checks    map[string]Checker
	validator *openphone.Validator
	logger    *logging.Logger
	now       func() time.Time
}

func NewAPIHandler(cfg *config.Config, checks map[string]Checker, logger *logging.Logger) *APIHandler {
	if checks == nil {
		checks = map[string]Checker{}
	}
	return &APIHandler{
		cfg:       cfg,
		checks:    checks,
		validator: openphone.NewValidator(nil),
		logger:    logger,
		now:       time.Now,
	}
}

// Root handles GET / and answers 404 for every other unmatched path.
func (h *APIHandler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.NotFound(w, r)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message":     ServiceName,
		"version":     ServiceVersion,
		"status":      "running",
		"timestamp":   httputil.Timestamp(h.now()),
		"environment": h.cfg.Server.Environment,
	})
}

// NotFound answers unknown routes outside /api.
func (h *APIHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.WarnContext(r.Context(), "route not found", logging.Method(r.Method), logging.Path(r.URL.Path))
	httputil.WriteJSON(w, http.StatusNotFound, map[string]any{
		"error":           "Route not found",
		"path":            r.URL.RequestURI(),
		"method":          r.Method,
		"availableRoutes": []string{"/", "/health", "/api"},
	})
}

// APINotFound answers unknown routes under /api.
func (h *APIHandler) APINotFound(w http.ResponseWriter, r *http.Request) {
	h.logger.WarnContext(r.Context(), "API route not found", logging.Method(r.Method), logging.Path(r.URL.Path))
	httputil.WriteJSON(w, http.StatusNotFound, map[string]any{
		"error":  "API endpoint not found",
		"path":   r.URL.RequestURI(),
		"method": r.Method,
		"availableEndpoints": []string{
			"GET /api",
			"GET /api/status",
			"POST /api/echo",
			"POST " + h.cfg.Webhooks.Path,
		},
	})
}

// Info handles GET /api.
func (h *APIHandler) Info(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "WorkWhile Automation API",
		"version":   APIVersion,
		"status":    "active",
		"timestamp": httputil.Timestamp(h.now()),
		"endpoints": map[string]string{
			"info":    "GET /api",
			"health":  "GET /health",
			"webhook": "POST " + h.cfg.Webhooks.Path,
		},
	})
}

// Status handles GET /api/status. The database entry reflects the postgres
// sink and external reflects every other registered check.
func (h *APIHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logger.InfoContext(ctx, "API status requested",
		logging.IP(httputil.GetClientIP(r)), logging.UserAgent(r.UserAgent()))

	services := map[string]string{"api": "healthy", "database": "healthy", "external": "healthy"}
	overall := "operational"
	for name, check := range h.checks {
		if err := check(ctx); err == nil {
			continue
		}
		overall = "degraded"
		if name == config.SinkPostgres {
			services["database"] = "unhealthy"
		} else {
			services["external"] = "unhealthy"
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      overall,
		"services":    services,
		"lastChecked": httputil.Timestamp(h.now()),
	})
}

// Echo handles POST /api/echo.
func (h *APIHandler) Echo(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEchoBody))
	if err != nil {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	var body map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
	}
	if body == nil {
		body = map[string]any{}
	}

	message, _ := body["message"].(string)
	if message == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "Message is required",
			"received": body,
		})
		return
	}

	h.logger.InfoContext(r.Context(), "echo request received",
		logging.IP(httputil.GetClientIP(r)), "message", truncate(message, 100))

	now := httputil.Timestamp(h.now())
	timestamp := now
	if ts, ok := body["timestamp"].(string); ok && ts != "" {
		timestamp = ts
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"echo":       message,
		"timestamp":  timestamp,
		"receivedAt": now,
	})
}

// WebhooksHealth handles GET /api/webhooks/health.
func (h *APIHandler) WebhooksHealth(w http.ResponseWriter, r *http.Request) {
	status := "enabled"
	if !h.cfg.Webhooks.Enabled {
		status = "disabled"
	}

	events := make([]string, 0, len(openphone.KnownEventTypes()))
	required := make(map[string][]string, len(events))
	for _, t := range openphone.KnownEventTypes() {
		events = append(events, string(t))
		required[string(t)] = h.validator.RequiredFields(string(t))
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"endpoint":        h.cfg.Webhooks.Path,
		"supportedEvents": events,
		"requiredFields":  required,
		"verifySignature": h.cfg.Webhooks.VerifySignature,
		"rateLimited":     h.cfg.RateLimit.Enabled,
		"sinks":           h.cfg.Sink.Backends,
		"timestamp":       httputil.Timestamp(h.now()),
	})
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
