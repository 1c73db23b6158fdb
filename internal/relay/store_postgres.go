package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS push_events (
    seq          BIGSERIAL PRIMARY KEY,
    id           TEXT NOT NULL UNIQUE,
    message_id   TEXT NOT NULL,
    event_type   TEXT NOT NULL DEFAULT '',
    data         TEXT NOT NULL DEFAULT '',
    publish_time TEXT NOT NULL DEFAULT '',
    ts           BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_push_events_seq ON push_events(seq DESC);
`

// PostgresStore is an EventStore backed by a shared Postgres database. Use
// it whenever more than one relay process runs behind a load balancer: the
// webhook receiver and the SSE broadcasters then see the same buffer.
type PostgresStore struct {
	pool      *pgxpool.Pool
	maxEvents int
	ttl       time.Duration
}

// NewPostgresStore creates a connection pool, fails fast if the database is
// unreachable, and ensures the schema exists.
func NewPostgresStore(dsn string, opts StoreOptions) (*PostgresStore, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool, maxEvents: opts.MaxEvents, ttl: opts.TTL}, nil
}

// Append implements EventStore. ON CONFLICT DO NOTHING keeps concurrent
// redeliveries of the same ingest ID harmless.
func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO push_events (id, message_id, event_type, data, publish_time, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.MessageID, e.Type, e.Data, e.PublishTime, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting push event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM push_events WHERE seq NOT IN (
			SELECT seq FROM push_events ORDER BY seq DESC LIMIT $1
		)`, s.maxEvents)
	if err != nil {
		return fmt.Errorf("trimming push events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// Recent implements EventStore.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Event, error) {
	expired, err := s.expired(ctx)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.maxEvents
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, event_type, data, publish_time, ts
		FROM push_events
		ORDER BY seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying push events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.MessageID, &e.Type, &e.Data, &e.PublishTime, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning push event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating push event rows: %w", err)
	}
	return events, nil
}

// Sweep implements Sweeper.
func (s *PostgresStore) Sweep(ctx context.Context) (int, error) {
	expired, err := s.expired(ctx)
	if err != nil {
		return 0, err
	}
	if expired {
		if _, err := s.pool.Exec(ctx, `DELETE FROM push_events`); err != nil {
			return 0, fmt.Errorf("deleting expired push events: %w", err)
		}
		return 0, nil
	}

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM push_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting push events: %w", err)
	}
	return count, nil
}

// Close implements EventStore.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) expired(ctx context.Context) (bool, error) {
	var newest *int64
	if err := s.pool.QueryRow(ctx, `SELECT MAX(ts) FROM push_events`).Scan(&newest); err != nil {
		return false, fmt.Errorf("reading newest event timestamp: %w", err)
	}
	if newest == nil {
		return false, nil
	}
	age := time.Now().UnixMilli() - *newest
	return age > s.ttl.Milliseconds(), nil
}
