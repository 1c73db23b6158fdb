package relay

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	// DefaultMaxEvents bounds the buffer to the most recent appends.
	DefaultMaxEvents = 100

	// DefaultTTL expires the whole buffer this long after the most recent
	// append. The bound is collection-level, not per-event: the store is a
	// hot window for live tabs, not an audit log.
	DefaultTTL = 5 * time.Minute
)

// EventStore is the buffer between the webhook receiver and the SSE
// broadcaster. Implementations must tolerate concurrent Append calls from
// simultaneous webhook deliveries. Eviction by capacity or TTL is a normal
// operation; the store is advisory, never a system of record.
type EventStore interface {
	// Append inserts the event at the head, trims the collection to its
	// capacity, and refreshes the collection TTL.
	Append(ctx context.Context, e Event) error

	// Recent returns up to limit events, most recent first. No cursor
	// filtering happens here; callers apply their own so the store stays
	// a dumb, swappable primitive.
	Recent(ctx context.Context, limit int) ([]Event, error)

	Close() error
}

// Sweeper is implemented by backends whose TTL needs periodic enforcement
// outside the read path (the SQL backends). The serve command schedules it.
type Sweeper interface {
	// Sweep drops the collection if it has expired and returns the number
	// of live events remaining.
	Sweep(ctx context.Context) (int, error)
}

// StoreOptions configures an EventStore backend. Zero values take the
// package defaults.
type StoreOptions struct {
	MaxEvents int
	TTL       time.Duration
}

func (o StoreOptions) withDefaults() StoreOptions {
	if o.MaxEvents <= 0 {
		o.MaxEvents = DefaultMaxEvents
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	return o
}

// memoryBucketKey is the single cache key under which the whole event list
// lives; the TTL on that one entry is the collection TTL.
const memoryBucketKey = "events"

// MemoryStore is the in-process EventStore. Correct only for
// single-process deployments; multi-process setups need a shared backend.
type MemoryStore struct {
	mu        sync.Mutex
	cache     *ttlcache.Cache[string, []Event]
	maxEvents int
	ttl       time.Duration
	closeOnce sync.Once
}

// NewMemoryStore creates an in-memory EventStore.
func NewMemoryStore(opts StoreOptions) *MemoryStore {
	opts = opts.withDefaults()
	cache := ttlcache.New[string, []Event](
		ttlcache.WithTTL[string, []Event](opts.TTL),
		// Reads must not refresh the collection TTL; only Append does.
		ttlcache.WithDisableTouchOnHit[string, []Event](),
	)
	// The janitor evicts the expired bucket between reads; Get already
	// excludes expired entries, so this only bounds how long the stale
	// slice is held.
	go cache.Start()
	return &MemoryStore{
		cache:     cache,
		maxEvents: opts.MaxEvents,
		ttl:       opts.TTL,
	}
}

// Append implements EventStore.
func (s *MemoryStore) Append(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []Event
	if item := s.cache.Get(memoryBucketKey); item != nil {
		current = item.Value()
	}

	events := make([]Event, 0, len(current)+1)
	events = append(events, e)
	events = append(events, current...)
	if len(events) > s.maxEvents {
		events = events[:s.maxEvents]
	}

	// Set refreshes the entry TTL, so the whole collection expires
	// ttl after the most recent append.
	s.cache.Set(memoryBucketKey, events, ttlcache.DefaultTTL)
	return nil
}

// Recent implements EventStore.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(memoryBucketKey)
	if item == nil {
		return nil, nil
	}
	events := item.Value()
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out, nil
}

// Close implements EventStore. Stop signals the janitor goroutine, so it
// must run at most once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.cache.Stop()
		s.cache.DeleteAll()
	})
	return nil
}
