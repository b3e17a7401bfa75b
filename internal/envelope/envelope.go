// Package envelope defines the canonical event envelope shared by the ingress
// gateway and the worker. Ingress builds envelopes from raw webhook payloads;
// the worker re-normalizes message bodies defensively before processing.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultGroupID is the ordering group used when no conversation is known.
const DefaultGroupID = "sup-mw-default"

// MaxDedupeIDLength caps dedupe and group identifiers for transport safety.
const MaxDedupeIDLength = 128

// Envelope is the canonical transport-level event.
type Envelope struct {
	EventID        string         `json:"event_id"`
	ReceivedAt     string         `json:"received_at"`
	GroupID        string         `json:"group_id"`
	DedupeID       string         `json:"dedupe_id"`
	Payload        map[string]any `json:"payload"`
	Source         string         `json:"source"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id,omitempty"`
}

// Build constructs an envelope from an ingress payload. Missing identifiers are
// generated (event id) or defaulted (group). The payload is kept as-is; callers
// that received a non-object body should wrap it before calling Build.
func Build(payload map[string]any, defaultGroupID, source string) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	if defaultGroupID == "" {
		defaultGroupID = DefaultGroupID
	}

	eventID := coerceString(payload["event_id"])
	if eventID == "" {
		eventID = "evt:" + uuid.New().String()
	}
	receivedAt := coerceString(payload["received_at"])
	if receivedAt == "" {
		receivedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	conversationID := firstString(payload, "conversation_id", "ticket_id", "group_id")
	if conversationID == "" {
		conversationID = defaultGroupID
	}
	messageID := firstString(payload, "message_id", "dedupe_id")
	if messageID == "" {
		messageID = eventID
	}
	groupID := coerceString(payload["group_id"])
	if groupID == "" {
		groupID = conversationID
	}
	src := coerceString(payload["source"])
	if src == "" {
		src = source
	}

	return Envelope{
		EventID:        eventID,
		ReceivedAt:     receivedAt,
		GroupID:        sanitizeGroupID(groupID, defaultGroupID),
		DedupeID:       shorten(messageID, MaxDedupeIDLength),
		Payload:        payload,
		Source:         src,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
}

// Normalize rebuilds an envelope from an already-enveloped message body,
// tolerating slightly different shapes (fields at the top level or nested
// under payload). The worker uses it so a malformed producer cannot crash
// processing.
func Normalize(data map[string]any, defaultGroupID, source string) Envelope {
	if data == nil {
		data = map[string]any{}
	}
	if defaultGroupID == "" {
		defaultGroupID = DefaultGroupID
	}

	payload, _ := data["payload"].(map[string]any)
	if payload == nil {
		payload = map[string]any{}
	}

	eventID := coerceString(data["event_id"])
	if eventID == "" {
		eventID = coerceString(payload["event_id"])
	}
	if eventID == "" {
		eventID = "evt:" + uuid.New().String()
	}
	receivedAt := coerceString(data["received_at"])
	if receivedAt == "" {
		receivedAt = coerceString(payload["received_at"])
	}
	if receivedAt == "" {
		receivedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	conversationID := coerceString(data["conversation_id"])
	if conversationID == "" {
		conversationID = firstString(payload, "conversation_id", "ticket_id")
	}
	if conversationID == "" {
		conversationID = coerceString(data["group_id"])
	}
	if conversationID == "" {
		conversationID = defaultGroupID
	}
	messageID := firstString(data, "message_id", "dedupe_id")
	if messageID == "" {
		messageID = firstString(payload, "message_id", "dedupe_id")
	}
	dedupeID := coerceString(data["dedupe_id"])
	if dedupeID == "" {
		dedupeID = messageID
	}
	if dedupeID == "" {
		dedupeID = eventID
	}
	groupID := coerceString(data["group_id"])
	if groupID == "" {
		groupID = conversationID
	}
	src := coerceString(data["source"])
	if src == "" {
		src = coerceString(payload["source"])
	}
	if src == "" {
		src = source
	}

	return Envelope{
		EventID:        eventID,
		ReceivedAt:     receivedAt,
		GroupID:        sanitizeGroupID(groupID, defaultGroupID),
		DedupeID:       shorten(dedupeID, MaxDedupeIDLength),
		Payload:        payload,
		Source:         src,
		ConversationID: conversationID,
		MessageID:      messageID,
	}
}

// Decode unmarshals a JSON message body and normalizes it.
func Decode(body []byte, defaultGroupID, source string) (Envelope, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return Envelope{}, fmt.Errorf("envelope: decode: %w", err)
	}
	return Normalize(data, defaultGroupID, source), nil
}

// Encode marshals the envelope for transport.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		// JSON numbers decode as float64; ids are effectively integers.
		return strings.TrimSuffix(fmt.Sprintf("%.0f", s), ".")
	default:
		return fmt.Sprintf("%v", s)
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := coerceString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func sanitizeGroupID(value, defaultGroupID string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		cleaned = defaultGroupID
	}
	cleaned = strings.ReplaceAll(cleaned, " ", "-")
	return shorten(cleaned, MaxDedupeIDLength)
}

func shorten(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
