package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS push_events (
    id           TEXT PRIMARY KEY,
    message_id   TEXT NOT NULL,
    event_type   TEXT NOT NULL DEFAULT '',
    data         TEXT NOT NULL DEFAULT '',
    publish_time TEXT NOT NULL DEFAULT '',
    ts           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_push_events_ts ON push_events(ts DESC);
`

// SQLiteStore is an EventStore backed by a local SQLite file. It survives
// process restarts but, like every backend, remains a short-window buffer:
// capacity is trimmed on every append and the collection expires TTL
// seconds after the most recent append.
type SQLiteStore struct {
	db        *sql.DB
	maxEvents int
	ttl       time.Duration
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string, opts StoreOptions) (*SQLiteStore, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %q: %w", path, err)
	}
	// modernc.org/sqlite serializes access through a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, maxEvents: opts.MaxEvents, ttl: opts.TTL}, nil
}

// Append implements EventStore. Insert and trim run in one transaction; a
// crash between them only risks a slightly over-long list, never loss of
// the just-pushed event.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO push_events (id, message_id, event_type, data, publish_time, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.MessageID, e.Type, e.Data, e.PublishTime, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting push event: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM push_events WHERE rowid NOT IN (
			SELECT rowid FROM push_events ORDER BY ts DESC, rowid DESC LIMIT ?
		)`, s.maxEvents)
	if err != nil {
		return fmt.Errorf("trimming push events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing append: %w", err)
	}
	return nil
}

// Recent implements EventStore. The collection-level TTL is enforced
// lazily here: if the newest event is older than the TTL the whole buffer
// is considered expired.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) (events []Event, err error) {
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, event_type, data, publish_time, ts
		FROM push_events
		ORDER BY ts DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying push events: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing rows: %w", cerr)
		}
	}()

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

// Sweep implements Sweeper: it deletes the buffer once expired and reports
// the live count.
func (s *SQLiteStore) Sweep(ctx context.Context) (int, error) {
	expired, err := s.expired(ctx)
	if err != nil {
		return 0, err
	}
	if expired {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM push_events`); err != nil {
			return 0, fmt.Errorf("deleting expired push events: %w", err)
		}
		return 0, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM push_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting push events: %w", err)
	}
	return count, nil
}

// Close implements EventStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// expired reports whether the newest event is older than the TTL. An empty
// table is not expired, just empty.
func (s *SQLiteStore) expired(ctx context.Context) (bool, error) {
	var newest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(ts) FROM push_events`).Scan(&newest); err != nil {
		return false, fmt.Errorf("reading newest event timestamp: %w", err)
	}
	if !newest.Valid {
		return false, nil
	}
	age := time.Now().UnixMilli() - newest.Int64
	return age > s.ttl.Milliseconds(), nil
}
