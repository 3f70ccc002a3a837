package sink

import (
	"context"
	"fmt"

	"github.com/workwhile/automation/common/database"
	"github.com/workwhile/automation/common/logging"
	natsclient "github.com/workwhile/automation/common/messaging/nats"
	"github.com/workwhile/automation/ingest/internal/config"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

// Checker reports the health of one dependency.
type Checker func(ctx context.Context) error

// Set is the delivery pipeline built from sink.backends.
type Set struct {
	Fanout
	Checks map[string]Checker
}

// Build connects every configured backend. Backends already connected are
// closed when a later one fails.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Set, error) {
	set := &Set{Checks: make(map[string]Checker)}

	for _, backend := range cfg.Sink.Backends {
		s, err := open(ctx, backend, cfg, logger)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("sink %s: %w", backend, err)
		}

		inst := Instrument(backend, s)
		set.Fanout = append(set.Fanout, inst)
		if _, ok := s.(openphone.Pinger); ok {
			set.Checks[backend] = inst.Ping
		}
		logger.Info("sink enabled", "backend", backend)
	}
	return set, nil
}

func open(ctx context.Context, backend string, cfg *config.Config, logger *logging.Logger) (openphone.Sink, error) {
	switch backend {
	case config.SinkSimulated:
		return &Simulated{Delay: cfg.Sink.SimulatedDelay, Logger: logger}, nil

	case config.SinkNATS:
		ncfg := natsclient.DefaultConfig()
		ncfg.URL = cfg.NATS.URL
		ncfg.Name = cfg.NATS.Name
		ncfg.Token = cfg.NATS.Token
		ncfg.Logger = logger.Logger
		client, err := natsclient.NewClient(ncfg)
		if err != nil {
			return nil, err
		}
		return NewNATS(client), nil

	case config.SinkPostgres:
		if cfg.Database.MigrationsPath != "" {
			if err := Migrate(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
				return nil, err
			}
			logger.Info("database migrations applied")
		}
		return NewPostgres(ctx, cfg.Database.URL, database.Timeouts{
			Query: cfg.Database.QueryTimeout,
			Write: cfg.Database.WriteTimeout,
		})

	case config.SinkOpenSearch:
		oscfg := DefaultOpenSearchConfig()
		oscfg.URL = cfg.OpenSearch.URL
		oscfg.Username = cfg.OpenSearch.Username
		oscfg.Password = cfg.OpenSearch.Password
		oscfg.TLSSkipVerify = cfg.OpenSearch.TLSSkipVerify
		oscfg.IndexPrefix = cfg.OpenSearch.IndexPrefix
		s, err := NewOpenSearch(oscfg)
		if err != nil {
			return nil, err
		}
		if err := s.Initialize(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backend")
}
