// Package sseclient implements the relay's subscription manager: an
// EventSource-equivalent client that consumes the /sse stream, dispatches
// typed mail events to application handlers, and reconnects automatically
// with a fixed delay when the transport fails. The watch CLI command and
// headless consumers use it the way a browser tab uses EventSource.
package sseclient

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/krockxz/mailflow-relay/internal/relay"
)

// ConnectionState describes the subscription lifecycle.
type ConnectionState string

const (
	StateIdle       ConnectionState = "idle"
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateClosed     ConnectionState = "closed"
)

const (
	// DefaultReconnectDelay is the fixed wait before a reconnect attempt.
	DefaultReconnectDelay = 3 * time.Second

	// UnlimitedReconnects makes the client retry forever.
	UnlimitedReconnects = -1
)

// EmailEvent is the payload of an email:* frame.
type EmailEvent struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

// EmailHandler receives typed mail events (email:new, email:read, email:sent).
type EmailHandler func(eventType string, event EmailEvent)

// MessageHandler is the catch-all for frames with no typed handler.
type MessageHandler func(eventType string, data []byte)

// Options configures a Client. Zero values take the package defaults.
type Options struct {
	// URL is the relay's SSE endpoint.
	URL string

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxReconnectAttempts caps consecutive failed attempts when positive.
	// Zero and UnlimitedReconnects both retry forever, matching the
	// EventSource behavior a browser tab gets for free.
	MaxReconnectAttempts int

	// HTTPClient must not set a Timeout; the stream is long-lived.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is one logical subscription to the relay's SSE stream. At most
// one transport connection is live at a time; reconnecting always closes
// the previous one first.
type Client struct {
	url         string
	delay       time.Duration
	maxAttempts int
	hc          *http.Client
	logger      *slog.Logger

	mu       sync.Mutex
	state    ConnectionState
	clientID string
	attempts int
	cancel   context.CancelFunc

	onEmail      EmailHandler
	onMessage    MessageHandler
	onConnChange func(connected bool)
}

// New creates a Client. Call Connect to open the subscription.
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = UnlimitedReconnects
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		url:         opts.URL,
		delay:       opts.ReconnectDelay,
		maxAttempts: opts.MaxReconnectAttempts,
		hc:          opts.HTTPClient,
		logger:      opts.Logger,
		state:       StateIdle,
	}
}

// OnEmail registers the handler for typed mail events.
func (c *Client) OnEmail(h EmailHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEmail = h
}

// OnMessage registers the catch-all handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = h
}

// OnConnectionChange registers a callback invoked with true when the
// stream opens and false when it drops. Transport failures are surfaced
// here, never as errors to the caller.
func (c *Client) OnConnectionChange(f func(connected bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnChange = f
}

// ClientID returns the server-assigned ID, or "" before the first
// connection event.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the subscription. It is a no-op when already open or
// connecting.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateOpen || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateConnecting
	c.attempts = 0
	c.mu.Unlock()

	go c.loop(ctx)
}

// Disconnect cancels any pending reconnect, closes the transport, and
// resets the client ID. Disconnecting an already-closed client is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	wasOpen := c.state == StateOpen
	c.state = StateClosed
	c.clientID = ""
	notify := c.onConnChange
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasOpen && notify != nil {
		notify(false)
	}
}

// Reconnect tears the connection down and dials again immediately,
// bypassing the reconnect delay.
func (c *Client) Reconnect() {
	c.Disconnect()
	c.Connect()
}

// loop runs the connect/stream/backoff cycle until the context is
// canceled or the attempt budget is exhausted.
func (c *Client) loop(ctx context.Context) {
	for {
		err := c.stream(ctx)

		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("sse stream dropped", "url", c.url, "error", err)
		c.markDropped()

		c.mu.Lock()
		if c.maxAttempts >= 0 && c.attempts >= c.maxAttempts {
			c.state = StateClosed
			c.mu.Unlock()
			c.logger.Warn("sse reconnect attempts exhausted", "attempts", c.attempts)
			return
		}
		c.attempts++
		c.state = StateConnecting
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.delay):
		}
	}
}

// stream performs one transport connection and blocks reading frames
// until it errors or the context is canceled. The response body is closed
// before the caller can open a new connection, so no two sockets are ever
// live for one subscription.
func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("dialing stream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	c.markOpen()

	var eventType string
	var data strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.dispatch(eventType, []byte(data.String()))
			}
			eventType = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Keep-alive comment frame.
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}

// dispatch routes one frame to the registered handlers. A malformed
// payload is logged and skipped; it never terminates the subscription.
func (c *Client) dispatch(eventType string, data []byte) {
	if eventType == "" {
		eventType = "message"
	}

	c.mu.Lock()
	onEmail := c.onEmail
	onMessage := c.onMessage
	c.mu.Unlock()

	switch eventType {
	case "connection":
		var payload struct {
			Status   string `json:"status"`
			ClientID string `json:"clientId"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Warn("malformed connection event", "error", err)
			return
		}
		if payload.Status == "connected" {
			c.mu.Lock()
			c.clientID = payload.ClientID
			c.mu.Unlock()
		}

	case relay.EventTypeNew, relay.EventTypeRead, relay.EventTypeSent:
		var ev EmailEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("malformed email event", "type", eventType, "error", err)
			return
		}
		if onEmail != nil {
			onEmail(eventType, ev)
		}

	default:
		if onMessage != nil {
			onMessage(eventType, data)
		}
	}
}

// markOpen moves to StateOpen, resets the attempt counter, and notifies.
func (c *Client) markOpen() {
	c.mu.Lock()
	c.state = StateOpen
	c.attempts = 0
	notify := c.onConnChange
	c.mu.Unlock()

	if notify != nil {
		notify(true)
	}
}

// markDropped notifies a transport failure unless the client was closed
// deliberately.
func (c *Client) markDropped() {
	c.mu.Lock()
	wasOpen := c.state == StateOpen
	notify := c.onConnChange
	c.mu.Unlock()

	if wasOpen && notify != nil {
		notify(false)
	}
}
