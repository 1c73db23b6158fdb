// Package relay implements the transport of Gmail push notifications from
// the Pub/Sub webhook to connected browser tabs: signature verification,
// a short-lived event buffer with interchangeable backends, and the types
// shared by the ingest, feed, and SSE endpoints.
package relay

import (
	"encoding/base64"
	"strings"
)

// Event types forwarded over the SSE stream. New-mail notifications are the
// default; read/sent markers arrive via the push message's attributes.
const (
	EventTypeNew  = "email:new"
	EventTypeRead = "email:read"
	EventTypeSent = "email:sent"
)

// Event is one received push notification. Events are immutable after
// creation and are evicted from the store by capacity or TTL; consumers
// treat Data as informational only and re-fetch mail from the Gmail API.
type Event struct {
	// ID is assigned at ingest time and is unique across the store's lifetime.
	ID string `json:"id"`

	// Timestamp is the ingest time in epoch milliseconds. It is the cursor
	// field: ordering reflects arrival at the store, not the provider's
	// publish time.
	Timestamp int64 `json:"timestamp"`

	// MessageID is the push provider's message identifier, used by
	// consumers to deduplicate redeliveries.
	MessageID string `json:"messageId"`

	// Type is one of the EventType constants. Empty means EventTypeNew.
	Type string `json:"type,omitempty"`

	// Data is the decoded payload from the push envelope, if any.
	Data string `json:"data,omitempty"`

	// PublishTime is the provider's own publish time, kept for diagnostics.
	PublishTime string `json:"publishTime,omitempty"`
}

// EventType returns the event's type, defaulting to EventTypeNew.
func (e Event) EventType() string {
	if e.Type == "" {
		return EventTypeNew
	}
	return e.Type
}

// NormalizeEventType maps a push attribute value onto one of the EventType
// constants. The attribute arrives from an unauthenticated payload and is
// later written into an SSE "event:" line, so anything but an exact match,
// in particular values containing newlines, collapses to EventTypeNew.
func NormalizeEventType(s string) string {
	switch s {
	case EventTypeRead:
		return EventTypeRead
	case EventTypeSent:
		return EventTypeSent
	default:
		return EventTypeNew
	}
}

// DecodeBase64URL decodes a URL-safe base64 string as produced by Pub/Sub:
// '-' and '_' are translated to the standard alphabet and missing '='
// padding is restored before decoding.
func DecodeBase64URL(s string) ([]byte, error) {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if pad := len(normalized) % 4; pad != 0 {
		normalized += strings.Repeat("=", 4-pad)
	}
	return base64.StdEncoding.DecodeString(normalized)
}

// EncodeBase64URL is the inverse of DecodeBase64URL (unpadded URL-safe
// alphabet, as Pub/Sub emits).
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
