package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/eventstats"
)

// StatsReader reads aggregated webhook statistics.
type StatsReader interface {
	All(ctx context.Context) ([]*eventstats.Stats, error)
	Instances(ctx context.Context) (map[string]string, error)
}

type StatsHandler struct {
	reader StatsReader
	logger *logging.Logger
	now    func() time.Time
}

func NewStatsHandler(reader StatsReader, logger *logging.Logger) *StatsHandler {
	return &StatsHandler{reader: reader, logger: logger, now: time.Now}
}

// Stats handles GET /api/webhooks/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := h.reader.All(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read webhook stats", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "Webhook statistics unavailable")
		return
	}
	instances, err := h.reader.Instances(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read ingest instances", logging.Error(err))
		instances = map[string]string{}
	}

	var total int64
	for _, s := range all {
		total += s.Total
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"total":      total,
		"eventTypes": all,
		"instances":  instances,
		"timestamp":  httputil.Timestamp(h.now()),
	})
}
