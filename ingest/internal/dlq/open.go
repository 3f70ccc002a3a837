package dlq

import (
	"context"
	"fmt"

	"github.com/workwhile/automation/common/logging"
	natsclient "github.com/workwhile/automation/common/messaging/nats"
	"github.com/workwhile/automation/ingest/internal/config"
)

// Open returns the configured store, or nil when the DLQ is disabled.
func Open(ctx context.Context, cfg *config.Config, logger *logging.Logger) (Store, error) {
	if !cfg.DLQ.Enabled {
		return nil, nil
	}

	switch cfg.DLQ.Backend {
	case config.DLQFile:
		q, err := NewQueue(cfg.DLQ.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("dead letter queue enabled", "backend", config.DLQFile, "path", cfg.DLQ.Path)
		return q, nil

	case config.DLQJetStream:
		ncfg := natsclient.DefaultConfig()
		ncfg.URL = cfg.NATS.URL
		ncfg.Name = cfg.NATS.Name + "-dlq"
		ncfg.Token = cfg.NATS.Token
		ncfg.Logger = logger.Logger
		js, err := natsclient.NewJetStreamClient(ncfg)
		if err != nil {
			return nil, err
		}
		q, err := NewJetStreamQueue(ctx, js, logger)
		if err != nil {
			_ = js.Close()
			return nil, err
		}
		logger.Info("dead letter queue enabled", "backend", config.DLQJetStream, "nats", cfg.NATS.URL)
		return q, nil
	}
	return nil, fmt.Errorf("unknown dlq backend %q", cfg.DLQ.Backend)
}
