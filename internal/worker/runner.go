package worker

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"support-middleware/internal/envelope"
	idempotencydomain "support-middleware/internal/idempotency/domain"
	"support-middleware/internal/pipeline"
	"support-middleware/internal/queue"
	"support-middleware/internal/telemetry"
)

// MessageSource fetches and acknowledges queue messages.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// DeadLetterSink receives messages that exhausted their delivery budget.
type DeadLetterSink interface {
	Send(ctx context.Context, msg kafka.Message, attempts int, cause error) error
}

// EventProcessor runs the per-event cycle.
type EventProcessor interface {
	Process(ctx context.Context, env envelope.Envelope) (Outcome, error)
}

// Runner is the consume loop. It processes one message at a time so ordering
// within a group is preserved: a message is committed only after it was
// applied, skipped, or dead-lettered, and the next message of the group is
// never started before that.
type Runner struct {
	Source      MessageSource
	DeadLetter  DeadLetterSink
	Processor   EventProcessor
	Retry       queue.RetryPolicy
	MaxDelivery int

	// RateLimitFloor is the minimum delay before retrying a rate-limited
	// attempt, regardless of the retry policy's schedule.
	RateLimitFloor time.Duration

	DefaultGroupID string
	EventSource    string
	Emitter        telemetry.EventEmitter

	// sleep is a test hook; defaults to a context-aware timer wait.
	sleep func(ctx context.Context, d time.Duration)
}

// Run consumes until ctx is canceled. Fetch errors are logged and retried;
// only context cancellation ends the loop.
func (r *Runner) Run(ctx context.Context) {
	for {
		msg, err := r.Source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka fetch error: %v", err)
			continue
		}
		r.handleMessage(ctx, msg)
	}
}

// handleMessage drives one message to a terminal outcome: committed after
// success or skip, or dead-lettered and committed after the budget runs out.
func (r *Runner) handleMessage(ctx context.Context, msg kafka.Message) {
	env, err := envelope.Decode(msg.Value, r.DefaultGroupID, r.EventSource)
	if err != nil {
		// Undecodable bodies can never succeed; park them for inspection.
		log.Printf("worker: undecodable message at %d/%d: %v", msg.Partition, msg.Offset, err)
		r.deadLetter(ctx, msg, envelope.Envelope{GroupID: string(msg.Key)}, 1, err)
		return
	}

	maxDelivery := r.MaxDelivery
	if maxDelivery < 1 {
		maxDelivery = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxDelivery; attempt++ {
		if ctx.Err() != nil {
			// Shutdown mid-message: leave it uncommitted for redelivery.
			return
		}

		outcome, err := r.Processor.Process(ctx, env)
		if err == nil {
			r.commit(ctx, msg)
			r.emitOutcome(env, outcome)
			return
		}
		lastErr = err

		if attempt == maxDelivery {
			break
		}

		delay := r.Retry.NextDelay(attempt)
		if pipeline.IsRateLimited(err) && delay < r.RateLimitFloor {
			delay = r.RateLimitFloor
		}
		log.Printf("worker: event %s attempt %d/%d failed, retrying in %s: %v",
			env.EventID, attempt, maxDelivery, delay, err)
		telemetry.EmitAsync(r.Emitter, ctx, &telemetry.Event{
			EventType:      telemetry.EventRetried,
			EventID:        env.EventID,
			ConversationID: env.ConversationID,
			GroupID:        env.GroupID,
			Source:         env.Source,
			Detail:         map[string]string{"attempt": strconv.Itoa(attempt), "error": err.Error()},
			CreatedAt:      time.Now().UTC(),
		})
		r.wait(ctx, delay)
	}

	log.Printf("worker: event %s exhausted %d deliveries, dead-lettering: %v", env.EventID, maxDelivery, lastErr)
	r.deadLetter(ctx, msg, env, maxDelivery, lastErr)
}

func (r *Runner) deadLetter(ctx context.Context, msg kafka.Message, env envelope.Envelope, attempts int, cause error) {
	if err := r.DeadLetter.Send(ctx, msg, attempts, cause); err != nil {
		// Do not commit; the message redelivers and dead-lettering is retried.
		log.Printf("worker: dead-letter write failed for %s: %v", env.EventID, err)
		return
	}
	r.commit(ctx, msg)
	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}
	telemetry.EmitAsync(r.Emitter, ctx, &telemetry.Event{
		EventType:      telemetry.EventDeadLettered,
		EventID:        env.EventID,
		ConversationID: env.ConversationID,
		GroupID:        env.GroupID,
		Source:         env.Source,
		Detail:         map[string]string{"attempts": strconv.Itoa(attempts), "error": causeText},
		CreatedAt:      time.Now().UTC(),
	})
}

func (r *Runner) commit(ctx context.Context, msg kafka.Message) {
	if err := r.Source.Commit(ctx, msg); err != nil {
		// Redelivery after a failed commit is absorbed by the ledger.
		log.Printf("worker: commit failed at %d/%d: %v", msg.Partition, msg.Offset, err)
	}
}

func (r *Runner) emitOutcome(env envelope.Envelope, outcome Outcome) {
	eventType := telemetry.EventProcessed
	if outcome.Status == idempotencydomain.OutcomeSkipped {
		eventType = telemetry.EventSkipped
	}
	telemetry.EmitAsync(r.Emitter, context.Background(), &telemetry.Event{
		EventType:      eventType,
		EventID:        env.EventID,
		ConversationID: env.ConversationID,
		GroupID:        env.GroupID,
		Source:         env.Source,
		Mode:           outcome.Mode,
		CreatedAt:      time.Now().UTC(),
	})
}

func (r *Runner) wait(ctx context.Context, d time.Duration) {
	if r.sleep != nil {
		r.sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
