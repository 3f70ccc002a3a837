package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/workwhile/automation/ingest/internal/openphone"
)

// OpenSearchConfig holds connection and index settings.
type OpenSearchConfig struct {
	URL             string
	Username        string
	Password        string
	TLSSkipVerify   bool
	IndexPrefix     string
	ShardCount      int
	ReplicaCount    int
	RefreshInterval string
	FlushInterval   time.Duration
}

func DefaultOpenSearchConfig() OpenSearchConfig {
	return OpenSearchConfig{
		URL:             "https://localhost:9200",
		Username:        "admin",
		TLSSkipVerify:   true,
		IndexPrefix:     "workwhile",
		ShardCount:      1,
		ReplicaCount:    0,
		RefreshInterval: "5s",
		FlushInterval:   500 * time.Millisecond,
	}
}

// OpenSearch indexes records into <prefix>-events. Concurrent deliveries are
// batched by a bulk indexer; each Deliver waits for its own item's outcome.
type OpenSearch struct {
	client *opensearch.Client
	bi     opensearchutil.BulkIndexer
	config OpenSearchConfig
}

func NewOpenSearch(cfg OpenSearchConfig) (*OpenSearch, error) {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	s := &OpenSearch{client: client, config: cfg}

	s.bi, err = opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:        client,
		Index:         s.Index(),
		FlushInterval: cfg.FlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}
	return s, nil
}

// Index returns the index records are written to.
func (s *OpenSearch) Index() string {
	return s.config.IndexPrefix + "-events"
}

// Initialize verifies the connection and installs the index template.
func (s *OpenSearch) Initialize(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to opensearch: %w", err)
	}
	if err := s.createIndexTemplate(ctx); err != nil {
		return fmt.Errorf("failed to create index template: %w", err)
	}
	return nil
}

func (s *OpenSearch) Deliver(ctx context.Context, rec openphone.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	done := make(chan error, 1)
	err = s.bi.Add(ctx, opensearchutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: uuid.NewString(),
		Body:       bytes.NewReader(data),
		OnSuccess: func(context.Context, opensearchutil.BulkIndexerItem, opensearchutil.BulkIndexerResponseItem) {
			done <- nil
		},
		OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
			if err == nil {
				err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
			}
			done <- err
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add to bulk indexer: %w", err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the bulk indexer counters.
func (s *OpenSearch) Stats() opensearchutil.BulkIndexerStats {
	return s.bi.Stats()
}

func (s *OpenSearch) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch returned error: %s", res.Status())
	}
	return nil
}

// Close flushes pending items.
func (s *OpenSearch) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.bi.Close(ctx)
}

func (s *OpenSearch) createIndexTemplate(ctx context.Context) error {
	template := map[string]any{
		"index_patterns": []string{s.Index() + "*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   s.config.ShardCount,
				"number_of_replicas": s.config.ReplicaCount,
				"refresh_interval":   s.config.RefreshInterval,
			},
			"mappings": eventMappings(),
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := s.client.Indices.PutIndexTemplate(
		s.config.IndexPrefix+"-events-template",
		bytes.NewReader(body),
		s.client.Indices.PutIndexTemplate.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s - %s", res.Status(), string(bodyBytes))
	}
	return nil
}

func eventMappings() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	return map[string]any{
		"dynamic": true,
		"dynamic_templates": []map[string]any{
			{
				"strings_as_keywords": map[string]any{
					"match_mapping_type": "string",
					"mapping": map[string]any{
						"type": "text",
						"fields": map[string]any{
							"keyword": map[string]any{
								"type":         "keyword",
								"ignore_above": 256,
							},
						},
					},
				},
			},
		},
		"properties": map[string]any{
			"eventType":  keyword,
			"action":     keyword,
			"entityId":   keyword,
			"receivedAt": map[string]any{"type": "date"},
			"data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":             keyword,
					"from":           keyword,
					"to":             keyword,
					"direction":      keyword,
					"status":         keyword,
					"userId":         keyword,
					"phoneNumberId":  keyword,
					"conversationId": keyword,
					"body":           map[string]any{"type": "text"},
					"createdAt":      map[string]any{"type": "date"},
					"updatedAt":      map[string]any{"type": "date"},
					"answeredAt":     map[string]any{"type": "date"},
					"completedAt":    map[string]any{"type": "date"},
				},
			},
		},
	}
}
