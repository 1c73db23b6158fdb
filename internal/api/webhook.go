package api

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/krockxz/mailflow-relay/internal/relay"
)

// signatureHeader carries the push provider's HMAC over the raw body.
// Header lookup is case-insensitive per net/http.
const signatureHeader = "X-Goog-Signature"

// pushEnvelope is the Pub/Sub push delivery body.
type pushEnvelope struct {
	Message      *pushMessage `json:"message"`
	Subscription string       `json:"subscription,omitempty"`
}

type pushMessage struct {
	MessageID    string            `json:"messageId"`
	AltMessageID string            `json:"message_id,omitempty"`
	Data         string            `json:"data,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	PublishTime  string            `json:"publishTime,omitempty"`
}

// id returns the provider message ID; Pub/Sub sends both the camelCase and
// snake_case spellings depending on delivery path.
func (m *pushMessage) id() string {
	if m.MessageID != "" {
		return m.MessageID
	}
	return m.AltMessageID
}

// handleWebhook ingests one Pub/Sub push delivery.
//
// Invalid JSON is still acknowledged with 200 so the provider does not
// redeliver a permanently-malformed body forever; semantically invalid
// payloads and auth failures get 4xx, which the provider will retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	// Verification must run against the untouched bytes; parsing first and
	// re-serializing would invalidate the signature.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		eventsIngested.WithLabelValues("read_error").Inc()
		writeError(w, http.StatusBadRequest, "Bad Request", "Unable to read request body")
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		s.logger.Warn("webhook body is not valid JSON", "error", err, "bytes", len(body))
		eventsIngested.WithLabelValues("invalid_json").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"error": "Invalid JSON"})
		return
	}

	if s.cfg.VerificationToken != "" {
		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			s.logger.Warn("webhook delivery missing signature header")
			signatureFailures.Inc()
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Missing signature")
			return
		}
		if !relay.VerifySignature(signature, body, s.cfg.VerificationToken) {
			s.logger.Warn("webhook signature verification failed", "bytes", len(body))
			signatureFailures.Inc()
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid signature")
			return
		}
	} else {
		s.logger.Warn("GOOGLE_PUBSUB_VERIFICATION_TOKEN is not set, accepting webhook without signature verification")
	}

	if envelope.Message == nil {
		eventsIngested.WithLabelValues("invalid_payload").Inc()
		writeError(w, http.StatusBadRequest, "Bad Request", "Missing message field")
		return
	}
	messageID := envelope.Message.id()
	if messageID == "" {
		eventsIngested.WithLabelValues("invalid_payload").Inc()
		writeError(w, http.StatusBadRequest, "Bad Request", "Missing messageId")
		return
	}

	// Handshake and test deliveries omit data; that is valid. A payload
	// that fails to decode is tolerated rather than rejected.
	var data string
	if envelope.Message.Data != "" {
		if decoded, err := relay.DecodeBase64URL(envelope.Message.Data); err == nil {
			data = string(decoded)
		} else {
			s.logger.Debug("could not decode message data", "messageId", messageID, "error", err)
		}
	}

	event := relay.Event{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UnixMilli(),
		MessageID:   messageID,
		Type:        relay.NormalizeEventType(envelope.Message.Attributes["type"]),
		Data:        data,
		PublishTime: envelope.Message.PublishTime,
	}

	if err := s.store.Append(r.Context(), event); err != nil {
		// Still ack: the store is advisory and the provider retrying
		// would not make it healthier.
		s.logger.Error("appending event to store", "messageId", messageID, "error", err)
		eventsIngested.WithLabelValues("store_error").Inc()
	} else {
		eventsIngested.WithLabelValues("ok").Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"eventId":   event.ID,
		"messageId": event.MessageID,
	})
}

// handleWebhookHandshake answers subscription-verification GETs. This is a
// legacy token check via query parameter, never used to authenticate POST
// payloads.
func (s *Server) handleWebhookHandshake(w http.ResponseWriter, r *http.Request) {
	if s.cfg.VerificationToken != "" {
		token := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.VerificationToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid verification token")
			return
		}
	}

	if challenge := r.URL.Query().Get("hub.challenge"); challenge != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
