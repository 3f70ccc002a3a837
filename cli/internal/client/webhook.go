package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/workwhile/automation/ingest/pkg/signature"
)

// Envelope mirrors the body OpenPhone posts to webhook endpoints.
type Envelope struct {
	ID         string         `json:"id"`
	Object     string         `json:"object"`
	APIVersion string         `json:"apiVersion"`
	CreatedAt  string         `json:"createdAt"`
	Type       string         `json:"type"`
	Data       map[string]any `json:"data"`
}

// NewEnvelope wraps object in an event envelope of the given type.
func NewEnvelope(eventType string, object map[string]any, at time.Time) Envelope {
	return Envelope{
		ID:         "EV" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Object:     "event",
		APIVersion: "v3",
		CreatedAt:  at.UTC().Format("2006-01-02T15:04:05.000Z"),
		Type:       eventType,
		Data:       map[string]any{"object": object},
	}
}

// Response is the decoded reply of the webhook service.
type Response struct {
	StatusCode int
	Body       map[string]any
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type WebhookClient struct {
	baseURL    string
	url        string
	signingKey []byte
	client     *http.Client
	now        func() time.Time
}

// NewWebhookClient posts to baseURL+path. A non-empty base64 signingKey signs
// every request with the openphone-signature header.
func NewWebhookClient(baseURL, path, signingKey string) (*WebhookClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &WebhookClient{
		baseURL: baseURL,
		url:     baseURL + path,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	if signingKey != "" {
		key, err := signature.DecodeKey(signingKey)
		if err != nil {
			return nil, err
		}
		c.signingKey = key
	}
	return c, nil
}

// URL returns the webhook endpoint.
func (c *WebhookClient) URL() string {
	return c.url
}

// Send posts env as JSON.
func (c *WebhookClient) Send(ctx context.Context, env Envelope) (*Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return c.SendRaw(ctx, body)
}

// SendRaw posts body unchanged.
func (c *WebhookClient) SendRaw(ctx context.Context, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "whctl")
	if c.signingKey != nil {
		req.Header.Set(signature.Header, signature.Sign(c.signingKey, c.now(), body))
	}

	return c.do(req)
}

// WebhooksHealth fetches GET /api/webhooks/health.
func (c *WebhookClient) WebhooksHealth(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/webhooks/health", nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Stats fetches GET /api/webhooks/stats.
func (c *WebhookClient) Stats(ctx context.Context) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/webhooks/stats", nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// DLQList fetches GET /api/dlq. adminToken is sent as a bearer token when set.
func (c *WebhookClient) DLQList(ctx context.Context, limit int, adminToken string) (*Response, error) {
	url := c.baseURL + "/api/dlq"
	if limit > 0 {
		url += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(withBearer(req, adminToken))
}

// DLQPurge calls DELETE /api/dlq.
func (c *WebhookClient) DLQPurge(ctx context.Context, adminToken string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/dlq", nil)
	if err != nil {
		return nil, err
	}
	return c.do(withBearer(req, adminToken))
}

func withBearer(req *http.Request, token string) *http.Request {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func (c *WebhookClient) do(req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out.Body); err != nil {
			return nil, fmt.Errorf("unexpected response (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
	}
	return out, nil
}
