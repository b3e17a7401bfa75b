// Package worker consumes the ordered event queue and drives each event
// through the processing cycle: idempotency check, kill-switch read, handler
// dispatch, then state, audit, and ledger persistence. The ledger write comes
// last so a crash mid-cycle causes a redelivery, never a lost event.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	auditdomain "support-middleware/internal/audit/domain"
	auditrepo "support-middleware/internal/audit/repository"
	conversationdomain "support-middleware/internal/conversation/domain"
	conversationrepo "support-middleware/internal/conversation/repository"
	"support-middleware/internal/envelope"
	"support-middleware/internal/flags"
	"support-middleware/internal/handler"
	idempotencydomain "support-middleware/internal/idempotency/domain"
	idempotencyrepo "support-middleware/internal/idempotency/repository"
	"support-middleware/internal/support"
)

// Outcome reports how one processing cycle ended.
type Outcome struct {
	Status idempotencydomain.Outcome
	Mode   string
	DryRun bool
}

// Processor runs the per-event cycle. All stores are written before the
// idempotency record, so a duplicate delivery can only skip work that already
// completed in full.
type Processor struct {
	Idempotency   idempotencyrepo.Repository
	Conversations conversationrepo.Repository
	Audit         auditrepo.Repository
	Flags         flags.Provider
	Handler       handler.Handler

	// Live is the real outbound client; nil or OutboundEnabled=false means
	// every cycle runs dry. Even with a live client, per-event flags decide.
	Live            support.Client
	OutboundEnabled bool

	IdempotencyTTL  time.Duration
	ConversationTTL time.Duration
	AuditTTL        time.Duration

	// now is a test hook; defaults to time.Now.
	now func() time.Time
}

func (p *Processor) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now().UTC()
}

// Process runs one full cycle for the envelope. A nil error means the message
// can be acknowledged; any error means the delivery should be retried.
func (p *Processor) Process(ctx context.Context, env envelope.Envelope) (Outcome, error) {
	existing, err := p.Idempotency.GetByEventID(ctx, env.EventID)
	if err != nil {
		// A failed read must not skip the event; redelivery re-checks.
		return Outcome{}, fmt.Errorf("worker: idempotency check %s: %w", env.EventID, err)
	}
	if existing != nil {
		return Outcome{Status: idempotencydomain.OutcomeSkipped, Mode: existing.Mode, DryRun: true}, nil
	}

	fl, err := p.Flags.Current(ctx)
	if err != nil {
		// Process anyway, but in the observe-only posture.
		log.Printf("worker: flags read failed, using fail-safe posture: %v", err)
		fl = flags.FailSafe()
	}

	outbound := p.selectOutbound(fl)

	prior, err := p.Conversations.GetByConversationID(ctx, env.ConversationID)
	if err != nil {
		return Outcome{}, fmt.Errorf("worker: load state %s: %w", env.ConversationID, err)
	}

	result, err := p.Handler.Handle(ctx, env, prior, fl, outbound)
	if err != nil {
		return Outcome{}, err
	}

	now := p.clock()
	if err := p.Conversations.Upsert(ctx, &conversationdomain.State{
		ConversationID: env.ConversationID,
		EventID:        env.EventID,
		Mode:           result.Mode,
		Snapshot:       result.Snapshot,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(p.ConversationTTL),
	}); err != nil {
		return Outcome{}, fmt.Errorf("worker: persist state %s: %w", env.ConversationID, err)
	}

	for i, action := range result.Actions {
		rec := &auditdomain.Record{
			ConversationID: env.ConversationID,
			TSActionID:     auditdomain.NewTSActionID(now, env.EventID, i),
			EventID:        env.EventID,
			Action:         action.Type,
			Detail: map[string]any{
				"note":    action.Note,
				"reasons": action.Reasons,
				"mode":    result.Mode,
			},
			DryRun:     result.DryRun,
			RecordedAt: now,
			ExpiresAt:  now.Add(p.AuditTTL),
		}
		if len(action.Parameters) > 0 {
			rec.Detail["parameters"] = action.Parameters
		}
		if err := p.Audit.Append(ctx, rec); err != nil {
			return Outcome{}, fmt.Errorf("worker: audit append %s: %w", env.EventID, err)
		}
	}

	created, err := p.Idempotency.Create(ctx, &idempotencydomain.Record{
		EventID:            env.EventID,
		ConversationID:     env.ConversationID,
		Outcome:            idempotencydomain.OutcomeApplied,
		Mode:               result.Mode,
		Source:             env.Source,
		PayloadFingerprint: idempotencydomain.Fingerprint(env.Payload),
		ProcessedAt:        now,
		ExpiresAt:          now.Add(p.IdempotencyTTL),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("worker: ledger write %s: %w", env.EventID, err)
	}
	if !created {
		// A concurrent delivery finished first; this cycle's effects were
		// dry-run safe or identical, treat as skip.
		return Outcome{Status: idempotencydomain.OutcomeSkipped, Mode: result.Mode, DryRun: result.DryRun}, nil
	}

	return Outcome{Status: idempotencydomain.OutcomeApplied, Mode: result.Mode, DryRun: result.DryRun}, nil
}

// selectOutbound is the hard automation gate. The handler never sees the live
// client unless outbound is enabled for the process and both kill switches
// permit automation for this specific event.
func (p *Processor) selectOutbound(fl flags.Flags) support.Client {
	effective := fl.Effective()
	if p.OutboundEnabled && effective.AutomationEnabled && p.Live != nil {
		return p.Live
	}
	return &support.DryRunClient{}
}
