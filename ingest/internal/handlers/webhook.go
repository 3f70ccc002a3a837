package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/workwhile/automation/common/httputil"
	"github.com/workwhile/automation/common/logging"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/metrics"
	"github.com/workwhile/automation/ingest/internal/models"
	"github.com/workwhile/automation/ingest/internal/openphone"
	"github.com/workwhile/automation/ingest/pkg/signature"
)

const (
	msgMissingFields   = "Missing required fields: event type or data object"
	msgInternalError   = "Internal server error processing webhook"
	msgInvalidEnvelope = "Invalid webhook envelope"
	msgProcessed       = "Webhook processed successfully"
)

// EventProcessor routes one decoded event to its handler.
type EventProcessor interface {
	Process(ctx context.Context, data any, eventType string) (openphone.Result, error)
}

// StatsRecorder counts dispatched events per type and outcome.
type StatsRecorder interface {
	Record(eventType, outcome, clientIP string)
}

// WebhookHandler receives OpenPhone webhook deliveries.
type WebhookHandler struct {
	processor EventProcessor
	stats     StatsRecorder
	cfg       config.WebhooksConfig
	verifier  *signature.Verifier
	allowList *httputil.IPAllowList
	redactor  *logging.Redactor
	logger    *logging.Logger
	now       func() time.Time
}

// NewWebhookHandler fails when the signing key or an allow-list entry is invalid.
func NewWebhookHandler(processor EventProcessor, cfg config.WebhooksConfig, logger *logging.Logger) (*WebhookHandler, error) {
	h := &WebhookHandler{
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}

	maskValues := cfg.MaskValues
	if maskValues == nil {
		maskValues = openphone.MaskedFields
	}
	h.redactor = logging.NewRedactor(cfg.MaskFields).MaskValues(maskValues, openphone.MaskString)

	if cfg.VerifySignature {
		v, err := signature.NewVerifier(cfg.SigningKey, cfg.SignatureTolerance)
		if err != nil {
			return nil, err
		}
		h.verifier = v
	}

	allow, err := httputil.ParseIPAllowList(cfg.AllowedIPs)
	if err != nil {
		return nil, err
	}
	h.allowList = allow

	return h, nil
}

// SetStats registers a recorder for dispatch outcomes.
func (h *WebhookHandler) SetStats(r StatsRecorder) {
	h.stats = r
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.cfg.Enabled {
		h.reject(w, http.StatusServiceUnavailable, "Webhooks are disabled")
		return
	}

	ip := httputil.GetClientIP(r)
	if !h.allowList.Allows(ip) {
		h.logger.WarnContext(ctx, "webhook from disallowed address", logging.IP(ip))
		h.reject(w, http.StatusForbidden, "Forbidden")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxPayloadSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		h.reject(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	metrics.WebhookBytesTotal.Add(float64(len(body)))

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header.Get(signature.Header), body); err != nil {
			h.logger.WarnContext(ctx, "webhook signature rejected", logging.IP(ip), logging.Error(err))
			h.reject(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	var received any
	if err := json.Unmarshal(body, &received); err != nil {
		h.reject(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	h.logger.InfoContext(ctx, "OpenPhone webhook received",
		logging.IP(ip),
		logging.UserAgent(r.UserAgent()),
		"content_type", r.Header.Get("Content-Type"),
		logging.BodySize(len(body)),
	)
	if h.cfg.LogPayload {
		h.logger.InfoContext(ctx, "webhook payload", h.payloadAttr(received))
	}

	_, isObject := received.(map[string]any)
	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil && isObject {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			h.logger.WarnContext(ctx, "OpenPhone webhook envelope has wrong field type",
				"field", typeErr.Field, logging.Error(err))
			h.reject(w, http.StatusBadRequest, fmt.Sprintf("%s: %q has the wrong type", msgInvalidEnvelope, typeErr.Field))
			return
		}
		h.reject(w, http.StatusBadRequest, msgInvalidEnvelope)
		return
	}
	if !isObject || !env.Complete() {
		h.logger.WarnContext(ctx, "OpenPhone webhook missing required fields", h.payloadAttr(received))
		h.respond(w, http.StatusBadRequest, models.MissingFieldsResponse{
			Error:    msgMissingFields,
			Received: received,
		})
		return
	}

	var callData *models.CallData
	if env.IsCall() {
		call, _ := env.Data.Payload()
		callData = models.ExtractCallData(call)
	}

	result, err := h.dispatch(ctx, &env, ip)
	if err != nil {
		h.logger.ErrorContext(ctx, "error processing OpenPhone webhook",
			logging.EventType(env.Type),
			logging.Error(err),
			h.payloadAttr(received),
		)
		h.respond(w, http.StatusInternalServerError, map[string]string{
			"error":     msgInternalError,
			"timestamp": httputil.Timestamp(h.now()),
		})
		return
	}

	h.respond(w, http.StatusOK, models.WebhookResponse{
		Status:         "success",
		Message:        msgProcessed,
		EventID:        env.ID,
		EventType:      env.Type,
		EventCreatedAt: env.CreatedAt,
		CallData:       callData,
		Result:         result,
		ProcessedAt:    httputil.Timestamp(h.now()),
	})
}

func (h *WebhookHandler) dispatch(ctx context.Context, env *models.Envelope, ip string) (openphone.Result, error) {
	if h.cfg.ProcessingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.ProcessingTimeout)
		defer cancel()
	}

	label := env.Type
	if !openphone.EventType(label).IsKnown() {
		label = "unknown"
	}

	start := time.Now()
	result, err := h.processor.Process(ctx, env.Data.Object, env.Type)
	metrics.DispatchDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	outcome := metrics.OutcomeProcessed
	switch {
	case openphone.IsValidationError(err):
		outcome = metrics.OutcomeInvalid
	case err != nil:
		outcome = metrics.OutcomeFailed
	case result.Status == openphone.StatusUnhandled:
		outcome = metrics.OutcomeUnhandled
	}
	metrics.WebhookEventsTotal.WithLabelValues(label, outcome).Inc()
	if h.stats != nil {
		h.stats.Record(label, outcome, ip)
	}

	return result, err
}

// payloadAttr is the redacted payload, or an empty attribute when payload
// logging is off.
func (h *WebhookHandler) payloadAttr(received any) slog.Attr {
	if !h.cfg.LogPayload {
		return slog.Attr{}
	}
	return slog.Any("payload", h.redactor.Redact(received))
}

func (h *WebhookHandler) reject(w http.ResponseWriter, status int, message string) {
	metrics.WebhookRequestsTotal.WithLabelValues(statusLabel(status)).Inc()
	httputil.WriteErrorAt(w, status, message, h.now())
}

func (h *WebhookHandler) respond(w http.ResponseWriter, status int, body any) {
	metrics.WebhookRequestsTotal.WithLabelValues(statusLabel(status)).Inc()
	httputil.WriteJSON(w, status, body)
}
