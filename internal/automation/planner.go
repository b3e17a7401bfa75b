// Package automation turns a normalized event into an explicit action plan.
// Planning is pure: it reads the envelope and the runtime flag snapshot and
// never touches the network, so the same inputs always yield the same plan.
package automation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"support-middleware/internal/envelope"
	"support-middleware/internal/flags"
)

// Plan modes. RouteOnly plans carry no automation actions.
const (
	ModeRouteOnly           = "route_only"
	ModeAutomationCandidate = "automation_candidate"
)

// Action kinds emitted by the planner.
const (
	ActionRouteOnly        = "route_only"
	ActionAnalyze          = "analyze"
	ActionOrderStatusReply = "order_status_draft_reply"
)

// Action is one step the worker intends to take for a conversation.
type Action struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Note           string         `json:"note"`
	Reasons        []string       `json:"reasons,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
}

// Plan is the structured representation of what the worker intends to do
// for one event.
type Plan struct {
	EventID           string
	Mode              string
	SafeMode          bool
	AutomationEnabled bool
	Actions           []Action
	Reasons           []string
}

// PlanActions builds the action plan for a normalized envelope under the
// given flag snapshot. Safe mode dominates: automation actions are planned
// only when automation is enabled and safe mode is off.
func PlanActions(env envelope.Envelope, fl flags.Flags) Plan {
	mode := ModeRouteOnly
	if fl.Effective().AutomationEnabled {
		mode = ModeAutomationCandidate
	}

	var reasons []string
	if fl.SafeMode {
		reasons = append(reasons, "safe_mode")
	}
	if !fl.AutomationEnabled {
		reasons = append(reasons, "automation_disabled")
	}

	plan := Plan{
		EventID:           env.EventID,
		Mode:              mode,
		SafeMode:          fl.SafeMode,
		AutomationEnabled: fl.AutomationEnabled,
		Reasons:           reasons,
	}

	if mode == ModeRouteOnly {
		plan.Actions = append(plan.Actions, Action{
			Type:           ActionRouteOnly,
			ConversationID: env.ConversationID,
			Note:           "automation disabled; routing only",
			Reasons:        reasons,
		})
		return plan
	}

	plan.Actions = append(plan.Actions, Action{
		Type:           ActionAnalyze,
		ConversationID: env.ConversationID,
		Note:           "automation candidate",
		Reasons:        reasons,
	})

	summary := SummarizeOrder(env)
	message := CustomerMessage(env.Payload)
	plan.Actions = append(plan.Actions, Action{
		Type:           ActionOrderStatusReply,
		ConversationID: env.ConversationID,
		Note:           "order status draft reply",
		Reasons:        reasons,
		Parameters: map[string]any{
			"order_summary":      summary,
			"prompt_fingerprint": draftFingerprint(env.ConversationID, message, summary),
		},
	})
	return plan
}

// CustomerMessage extracts the customer's text from the payload, falling back
// to a generic request when none of the known fields carry one.
func CustomerMessage(payload map[string]any) string {
	for _, key := range []string{"customer_message", "message", "body", "text", "customer_note"} {
		if s := strings.TrimSpace(coerceString(firstValue(payload, key))); s != "" {
			return s
		}
	}
	return "Order status request"
}

// draftFingerprint hashes the full draft-reply input so audit records can
// prove which context a reply was generated from.
func draftFingerprint(conversationID, customerMessage string, summary OrderSummary) string {
	raw, _ := json.Marshal(map[string]any{
		"conversation_id":  conversationID,
		"customer_message": customerMessage,
		"order_summary":    summary,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
