// Package handler executes the per-event processing step between the queue
// and the stores. It plans actions from the envelope and the kill-switch
// snapshot, performs outbound effects through whatever support.Client the
// worker injected, and reports what happened for state and audit persistence.
package handler

import (
	"context"
	"fmt"

	"support-middleware/internal/automation"
	conversationdomain "support-middleware/internal/conversation/domain"
	"support-middleware/internal/envelope"
	"support-middleware/internal/flags"
	"support-middleware/internal/support"
)

// Result captures everything the worker needs to persist after handling one
// event: the new conversation snapshot and the audit trail entries.
type Result struct {
	Mode     string
	DryRun   bool
	Actions  []automation.Action
	Snapshot map[string]any
}

// Handler processes one normalized event. prior is the last persisted state
// for the conversation, nil when none exists.
type Handler interface {
	Handle(ctx context.Context, env envelope.Envelope, prior *conversationdomain.State, fl flags.Flags, outbound support.Client) (Result, error)
}

// Pipeline is the default Handler: plan, execute outbound effects, summarize.
type Pipeline struct{}

// NewPipeline returns the default event handler.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Handle plans actions for the event and executes them through outbound.
// Outbound failures abort the cycle so nothing is persisted for a half-applied
// event; the queue redelivers and the idempotency ledger was not yet written.
func (p *Pipeline) Handle(ctx context.Context, env envelope.Envelope, prior *conversationdomain.State, fl flags.Flags, outbound support.Client) (Result, error) {
	plan := automation.PlanActions(env, fl)

	for _, action := range plan.Actions {
		if err := p.execute(ctx, env, action, outbound); err != nil {
			return Result{}, fmt.Errorf("handler: action %s: %w", action.Type, err)
		}
	}

	snapshot := map[string]any{
		"mode":               plan.Mode,
		"actions":            plan.Actions,
		"safe_mode":          plan.SafeMode,
		"automation_enabled": plan.AutomationEnabled,
		"dry_run":            outbound.DryRun(),
		"source":             env.Source,
	}
	if prior != nil {
		snapshot["previous_event_id"] = prior.EventID
	}

	return Result{
		Mode:     plan.Mode,
		DryRun:   outbound.DryRun(),
		Actions:  plan.Actions,
		Snapshot: snapshot,
	}, nil
}

func (p *Pipeline) execute(ctx context.Context, env envelope.Envelope, action automation.Action, outbound support.Client) error {
	switch action.Type {
	case automation.ActionRouteOnly:
		return outbound.AddTags(ctx, env.ConversationID, []string{"needs-agent"})
	case automation.ActionAnalyze:
		return outbound.AddTags(ctx, env.ConversationID, []string{"order-status"})
	case automation.ActionOrderStatusReply:
		return outbound.SendReply(ctx, env.ConversationID, draftReply(action))
	default:
		// Unknown action kinds are recorded in audit but have no effect.
		return nil
	}
}

func draftReply(action automation.Action) string {
	summary, ok := action.Parameters["order_summary"].(automation.OrderSummary)
	if !ok {
		return "Thanks for reaching out. An agent will follow up on your order shortly."
	}
	reply := fmt.Sprintf("Thanks for reaching out about order %s. The current status is %s.",
		summary.OrderID, summary.Status)
	if summary.TrackingNumber != "" {
		if summary.Carrier != "" {
			reply += fmt.Sprintf(" Your tracking number with %s is %s.", summary.Carrier, summary.TrackingNumber)
		} else {
			reply += fmt.Sprintf(" Your tracking number is %s.", summary.TrackingNumber)
		}
	}
	return reply
}
