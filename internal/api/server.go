// Package api implements the relay's HTTP handlers: the Pub/Sub webhook
// receiver, the cursor-based event feed, and the SSE broadcast stream.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/krockxz/mailflow-relay/internal/config"
	"github.com/krockxz/mailflow-relay/internal/relay"
)

// Server holds all dependencies for the relay HTTP handlers.
type Server struct {
	store  relay.EventStore
	cfg    *config.AppConfig
	logger *slog.Logger
}

// New creates a new API Server backed by the provided event store.
func New(store relay.EventStore, cfg *config.AppConfig, logger *slog.Logger) *Server {
	return &Server{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Mount registers all relay routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// Push provider side
	r.Post("/webhook", s.handleWebhook)
	r.Get("/webhook", s.handleWebhookHandshake)

	// Browser side
	r.Get("/events", s.handleEventFeed)
	r.Get("/sse", s.handleStream)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errMsg, detail string) {
	writeJSON(w, status, map[string]string{"error": errMsg, "message": detail})
}

// writeSSEFrame writes one SSE frame (event: <type>\ndata: <json>\n\n)
// without flushing; callers flush once per batch.
func writeSSEFrame(w http.ResponseWriter, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return fmt.Errorf("writing SSE frame: %w", err)
	}
	return nil
}
