package handler

import (
	"context"
	"errors"
	"testing"

	"support-middleware/internal/automation"
	conversationdomain "support-middleware/internal/conversation/domain"
	"support-middleware/internal/envelope"
	"support-middleware/internal/flags"
	"support-middleware/internal/support"
)

type failingClient struct {
	support.DryRunClient
	err error
}

func (c *failingClient) SendReply(ctx context.Context, conversationID, message string) error {
	return c.err
}

func TestPipeline_RouteOnlyTagsConversation(t *testing.T) {
	h := NewPipeline()
	outbound := &support.DryRunClient{}
	env := envelope.Envelope{EventID: "evt:1", ConversationID: "conv-1"}

	result, err := h.Handle(context.Background(), env, nil, flags.Flags{SafeMode: true}, outbound)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if result.Mode != automation.ModeRouteOnly {
		t.Errorf("mode = %q, want route_only", result.Mode)
	}
	if !result.DryRun {
		t.Error("expected dry-run result with dry-run client")
	}
	intents := outbound.Intents()
	if len(intents) != 1 || intents[0].Kind != "add_tags" {
		t.Fatalf("intents = %+v, want single add_tags", intents)
	}
	if intents[0].Tags[0] != "needs-agent" {
		t.Errorf("tags = %v, want needs-agent", intents[0].Tags)
	}
}

func TestPipeline_AutomationCandidateSendsDraftReply(t *testing.T) {
	h := NewPipeline()
	outbound := &support.DryRunClient{}
	env := envelope.Envelope{
		EventID:        "evt:2",
		ConversationID: "conv-2",
		Payload: map[string]any{
			"order_id":        "1001",
			"status":          "shipped",
			"carrier":         "UPS",
			"tracking_number": "1Z999",
		},
	}

	result, err := h.Handle(context.Background(), env, nil, flags.Flags{AutomationEnabled: true}, outbound)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if result.Mode != automation.ModeAutomationCandidate {
		t.Errorf("mode = %q, want automation_candidate", result.Mode)
	}
	intents := outbound.Intents()
	if len(intents) != 2 {
		t.Fatalf("got %d intents, want 2 (tag + reply)", len(intents))
	}
	if intents[0].Kind != "add_tags" || intents[0].Tags[0] != "order-status" {
		t.Errorf("first intent = %+v", intents[0])
	}
	reply := intents[1]
	if reply.Kind != "send_reply" {
		t.Fatalf("second intent = %+v", reply)
	}
	want := "Thanks for reaching out about order 1001. The current status is shipped. Your tracking number with UPS is 1Z999."
	if reply.Message != want {
		t.Errorf("reply = %q\nwant    %q", reply.Message, want)
	}
}

func TestPipeline_SnapshotCarriesPriorEvent(t *testing.T) {
	h := NewPipeline()
	env := envelope.Envelope{EventID: "evt:3", ConversationID: "conv-3"}
	prior := &conversationdomain.State{ConversationID: "conv-3", EventID: "evt:2"}

	result, err := h.Handle(context.Background(), env, prior, flags.FailSafe(), &support.DryRunClient{})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := result.Snapshot["previous_event_id"]; got != "evt:2" {
		t.Errorf("previous_event_id = %v, want evt:2", got)
	}
	if got := result.Snapshot["safe_mode"]; got != true {
		t.Errorf("safe_mode = %v, want true", got)
	}
}

func TestPipeline_OutboundFailureAbortsCycle(t *testing.T) {
	h := NewPipeline()
	wantErr := errors.New("boom")
	outbound := &failingClient{err: wantErr}
	env := envelope.Envelope{
		EventID:        "evt:4",
		ConversationID: "conv-4",
		Payload:        map[string]any{"order_id": "9"},
	}

	_, err := h.Handle(context.Background(), env, nil, flags.Flags{AutomationEnabled: true}, outbound)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}
