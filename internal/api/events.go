package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/krockxz/mailflow-relay/internal/relay"
)

const (
	feedDefaultLimit = 10
	feedMaxLimit     = 100
)

// handleEventFeed serves GET /events?since=<epoch-ms>&limit=<1..100>.
//
// The store returns newest-first; the feed re-sorts ascending so
// incremental consumers can fold events in order. An empty result is the
// normal "nothing new" answer, and backend failures degrade to it too: a
// polling consumer's loop must never break on a transient 5xx.
func (s *Server) handleEventFeed(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			since = parsed
		}
	}

	limit := feedDefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > feedMaxLimit {
		limit = feedMaxLimit
	}

	events := s.eventsSince(r, since, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// eventsSince reads up to limit recent events and returns those newer than
// the cursor, oldest first. Store errors are logged and swallowed.
func (s *Server) eventsSince(r *http.Request, since int64, limit int) []relay.Event {
	events := make([]relay.Event, 0)

	recent, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading recent events", "error", err)
		return events
	}

	for _, e := range recent {
		if e.Timestamp > since {
			events = append(events, e)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp < events[j].Timestamp })
	return events
}
