package envelope

import (
	"strings"
	"testing"
)

func TestBuild_GeneratesEventIDAndDefaults(t *testing.T) {
	env := Build(map[string]any{}, "", "webhook_target")

	if env.EventID == "" {
		t.Fatal("EventID should be generated")
	}
	if !strings.HasPrefix(env.EventID, "evt:") {
		t.Errorf("EventID = %q, want evt: prefix", env.EventID)
	}
	if env.GroupID != DefaultGroupID {
		t.Errorf("GroupID = %q, want %q", env.GroupID, DefaultGroupID)
	}
	if env.ConversationID != DefaultGroupID {
		t.Errorf("ConversationID = %q, want %q", env.ConversationID, DefaultGroupID)
	}
	if env.Source != "webhook_target" {
		t.Errorf("Source = %q, want %q", env.Source, "webhook_target")
	}
	if env.ReceivedAt == "" {
		t.Error("ReceivedAt should be set")
	}
	if env.DedupeID != env.EventID {
		t.Errorf("DedupeID = %q, want event id %q", env.DedupeID, env.EventID)
	}
}

func TestBuild_ConversationFromTicketID(t *testing.T) {
	env := Build(map[string]any{"ticket_id": "conv-42", "event_id": "evt-1"}, "grp-default", "src")

	if env.ConversationID != "conv-42" {
		t.Errorf("ConversationID = %q, want %q", env.ConversationID, "conv-42")
	}
	if env.GroupID != "conv-42" {
		t.Errorf("GroupID = %q, want %q", env.GroupID, "conv-42")
	}
	if env.EventID != "evt-1" {
		t.Errorf("EventID = %q, want %q", env.EventID, "evt-1")
	}
}

func TestBuild_NumericIDsCoerced(t *testing.T) {
	env := Build(map[string]any{"conversation_id": float64(12345)}, "", "src")

	if env.ConversationID != "12345" {
		t.Errorf("ConversationID = %q, want %q", env.ConversationID, "12345")
	}
}

func TestBuild_GroupIDSanitized(t *testing.T) {
	env := Build(map[string]any{"group_id": "  conv 42  "}, "", "src")

	if env.GroupID != "conv-42" {
		t.Errorf("GroupID = %q, want %q", env.GroupID, "conv-42")
	}

	long := strings.Repeat("x", 300)
	env = Build(map[string]any{"group_id": long}, "", "src")
	if len(env.GroupID) != MaxDedupeIDLength {
		t.Errorf("len(GroupID) = %d, want %d", len(env.GroupID), MaxDedupeIDLength)
	}
}

func TestNormalize_FieldsNestedUnderPayload(t *testing.T) {
	env := Normalize(map[string]any{
		"payload": map[string]any{
			"event_id":  "evt-9",
			"ticket_id": "conv-7",
			"source":    "replayed",
		},
	}, "", "src")

	if env.EventID != "evt-9" {
		t.Errorf("EventID = %q, want %q", env.EventID, "evt-9")
	}
	if env.ConversationID != "conv-7" {
		t.Errorf("ConversationID = %q, want %q", env.ConversationID, "conv-7")
	}
	if env.Source != "replayed" {
		t.Errorf("Source = %q, want %q", env.Source, "replayed")
	}
}

func TestNormalize_TopLevelWins(t *testing.T) {
	env := Normalize(map[string]any{
		"event_id":        "evt-top",
		"conversation_id": "conv-top",
		"payload": map[string]any{
			"event_id":        "evt-nested",
			"conversation_id": "conv-nested",
		},
	}, "", "src")

	if env.EventID != "evt-top" {
		t.Errorf("EventID = %q, want %q", env.EventID, "evt-top")
	}
	if env.ConversationID != "conv-top" {
		t.Errorf("ConversationID = %q, want %q", env.ConversationID, "conv-top")
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	orig := Build(map[string]any{"event_id": "evt-1", "ticket_id": "conv-42"}, "", "src")
	body, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(body, "", "src")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.EventID != orig.EventID {
		t.Errorf("EventID = %q, want %q", got.EventID, orig.EventID)
	}
	if got.GroupID != orig.GroupID {
		t.Errorf("GroupID = %q, want %q", got.GroupID, orig.GroupID)
	}
	if got.ConversationID != orig.ConversationID {
		t.Errorf("ConversationID = %q, want %q", got.ConversationID, orig.ConversationID)
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("{not json"), "", "src"); err == nil {
		t.Fatal("Decode should fail on invalid JSON")
	}
}
