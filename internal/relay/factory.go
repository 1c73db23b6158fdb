package relay

import (
	"fmt"
	"net/url"
	"strings"
)

// NewStoreFromURL builds an EventStore from a DSN. The scheme selects the
// backend; relay logic never branches on the backend itself.
//
//	memory: (or empty)          in-process buffer, single-process only
//	sqlite:/path/to/relay.db    local SQLite file
//	file:/path/to/relay.db      alias for sqlite
//	postgres://user@host/db     shared Postgres, for multi-process deployments
func NewStoreFromURL(dsn string, opts StoreOptions) (EventStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryStore(opts), nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing event store URL: %w", err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "", "memory", "mem":
		return NewMemoryStore(opts), nil
	case "sqlite", "file":
		path := parsed.Opaque
		if path == "" {
			path = parsed.Path
		}
		if path == "" {
			return nil, fmt.Errorf("event store URL %q has no path", dsn)
		}
		return NewSQLiteStore(path, opts)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported event store scheme %q", parsed.Scheme)
	}
}
