package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workwhile/automation/common/database"
	"github.com/workwhile/automation/ingest/internal/openphone"
)

const insertEvent = `
	INSERT INTO webhook_events (id, event_type, action, entity_id, data, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// Postgres stores every record as a row in webhook_events.
type Postgres struct {
	pool     *pgxpool.Pool
	timeouts database.Timeouts
}

// NewPostgres connects to connString and verifies the connection.
func NewPostgres(ctx context.Context, connString string, timeouts database.Timeouts) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := timeouts.QueryContext(ctx)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool, timeouts: timeouts}, nil
}

// Migrate applies pending migrations from sourceURL, e.g. file://migrations.
func Migrate(sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Postgres) Deliver(ctx context.Context, rec openphone.Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	ctx, cancel := s.timeouts.WriteContext(ctx)
	defer cancel()

	_, err = s.pool.Exec(ctx, insertEvent,
		uuid.New(),
		string(rec.EventType),
		rec.Action,
		entityIDString(rec.EntityID),
		data,
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook event: %w", err)
	}
	return nil
}

// CountByType returns the number of stored events of the given type.
func (s *Postgres) CountByType(ctx context.Context, eventType openphone.EventType) (int, error) {
	ctx, cancel := s.timeouts.QueryContext(ctx)
	defer cancel()

	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM webhook_events WHERE event_type = $1`, string(eventType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count webhook events: %w", err)
	}
	return n, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := s.timeouts.QueryContext(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
