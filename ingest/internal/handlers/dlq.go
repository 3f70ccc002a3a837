package handlers

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/dlq"
)

const maxDLQListLimit = 1000

// DLQHandler exposes the dead letter queue for inspection.
type DLQHandler struct {
	store      dlq.Store
	adminToken string
	logger     *logging.Logger
	now        func() time.Time
}

func NewDLQHandler(store dlq.Store, adminToken string, logger *logging.Logger) *DLQHandler {
	return &DLQHandler{store: store, adminToken: adminToken, logger: logger, now: time.Now}
}

func (h *DLQHandler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if h.adminToken == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if ok && subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1 {
		return true
	}
	httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
	return false
}

// List handles GET /api/dlq?limit=N.
func (h *DLQHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDLQListLimit)
	}

	events, err := h.store.List(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list dlq", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to read dead letter queue")
		return
	}
	if events == nil {
		events = []dlq.FailedEvent{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"stats":     h.store.Stats(r.Context()),
		"events":    events,
		"count":     len(events),
		"timestamp": httputil.Timestamp(h.now()),
	})
}

// Purge handles DELETE /api/dlq.
func (h *DLQHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	if err := h.store.Purge(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to purge dlq", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "Failed to purge dead letter queue")
		return
	}
	h.logger.WarnContext(r.Context(), "dead letter queue purged", logging.IP(httputil.GetClientIP(r)))

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "purged",
		"timestamp": httputil.Timestamp(h.now()),
	})
}
