package api

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// handleStream serves GET /sse: one long-lived connection per browser tab,
// fed by polling the event store.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	clientID := uuid.NewString()
	conn := &streamConn{
		server:   s,
		clientID: clientID,
		// Seeded from connection-open time: a new tab does not replay the
		// whole buffer; it backfills explicitly via /events if it wants to.
		lastPoll: time.Now().UnixMilli(),
		logger:   s.logger.With(slog.String("client_id", clientID)),
	}

	activeStreams.Inc()
	defer activeStreams.Dec()

	conn.run(r, w, flusher)
}

// streamConn is the per-connection broadcaster state. Each connection owns
// its own cursor and timers; nothing here is shared across connections, so
// one client's cleanup can never affect another's.
type streamConn struct {
	server   *Server
	clientID string
	lastPoll int64
	logger   *slog.Logger
}

// run drives the connection until the client disconnects, a write fails,
// or the stream reaches its maximum age. All tickers are stopped before
// returning; no write is ever attempted on a dead stream.
func (c *streamConn) run(r *http.Request, w http.ResponseWriter, flusher http.Flusher) {
	if err := writeSSEFrame(w, "connection", map[string]string{
		"status":   "connected",
		"clientId": c.clientID,
	}); err != nil {
		return
	}
	flusher.Flush()
	framesSent.WithLabelValues("connection").Inc()

	poll := time.NewTicker(c.server.cfg.PollInterval)
	defer poll.Stop()
	keepAlive := time.NewTicker(c.server.cfg.KeepAliveInterval)
	defer keepAlive.Stop()

	// Runtimes with a hard execution ceiling must not be killed mid-write;
	// closing the stream ourselves lets the client reconnect cleanly.
	var expiry <-chan time.Time
	if maxAge := c.server.cfg.MaxStreamAge; maxAge > 0 {
		timer := time.NewTimer(maxAge)
		defer timer.Stop()
		expiry = timer.C
	}

	c.logger.Debug("sse stream opened")
	for {
		select {
		case <-r.Context().Done():
			c.logger.Debug("sse client disconnected")
			return

		case <-expiry:
			c.logger.Debug("sse stream reached max age, closing")
			return

		case <-keepAlive.C:
			// Comment-only frame; carries no event, defeats proxy idle
			// timeouts.
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				c.logger.Debug("sse keep-alive write failed", "error", err)
				return
			}
			flusher.Flush()

		case <-poll.C:
			if !c.pollOnce(r, w, flusher) {
				return
			}
		}
	}
}

// pollOnce fetches everything newer than the cursor and forwards it,
// oldest first. It returns false when a write fails and the connection
// must stop. The cursor advances to the maximum timestamp seen in the
// batch, not to wall-clock time, so a slow cycle cannot skip events that
// arrived while it ran.
func (c *streamConn) pollOnce(r *http.Request, w http.ResponseWriter, flusher http.Flusher) bool {
	batch := c.server.eventsSince(r, c.lastPoll, feedMaxLimit)
	if len(batch) == 0 {
		return true
	}

	for _, e := range batch {
		frame := map[string]any{
			"messageId": e.MessageID,
			"timestamp": e.Timestamp,
		}
		if err := writeSSEFrame(w, e.EventType(), frame); err != nil {
			c.logger.Debug("sse event write failed", "error", err)
			return false
		}
		framesSent.WithLabelValues(e.EventType()).Inc()
		if e.Timestamp > c.lastPoll {
			c.lastPoll = e.Timestamp
		}
	}
	flusher.Flush()
	return true
}
