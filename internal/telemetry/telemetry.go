// Package telemetry defines the pipeline's operational event stream. Events
// are best-effort: emit failures are logged and never fail event processing.
package telemetry

import (
	"context"
	"log"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventAccepted     = "event_accepted"
	EventRejected     = "event_rejected"
	EventProcessed    = "event_processed"
	EventSkipped      = "event_skipped"
	EventRetried      = "event_retried"
	EventDeadLettered = "event_dead_lettered"
	TokenRefreshed    = "token_refreshed"
	TokenRefreshError = "token_refresh_error"
)

// Event is one operational occurrence in the pipeline.
type Event struct {
	EventType      string
	EventID        string
	ConversationID string
	GroupID        string
	Source         string
	Mode           string
	Detail         map[string]string
	CreatedAt      time.Time
}

// EventEmitter emits pipeline events (e.g. to OTel logs or Loki). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after servers stop before shutting
// down OTel providers, so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from the hot path for fire-and-forget telemetry; errors are logged.
//
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout so cancellation of the
// processing cycle does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}

// Multi fans one event out to several emitters. Errors from individual
// emitters are collected; the last one is returned.
type Multi []EventEmitter

// Emit sends the event to every emitter.
func (m Multi) Emit(ctx context.Context, event *Event) error {
	var lastErr error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
