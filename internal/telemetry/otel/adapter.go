package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"support-middleware/internal/telemetry"
)

// NewEventEmitter returns an EventEmitter that sends pipeline events as OTel
// log records via the given LoggerProvider. If provider is nil, returns a
// no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("supmw.telemetry")}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the pipeline event to an OTel log record and emits it.
// Best-effort; errors are logged by callers.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetBody(otellog.StringValue(event.EventType))
	if event.EventType != "" {
		rec.AddAttributes(otellog.String("event_type", event.EventType))
	}
	if event.EventID != "" {
		rec.AddAttributes(otellog.String("event_id", event.EventID))
	}
	if event.ConversationID != "" {
		rec.AddAttributes(otellog.String("conversation_id", event.ConversationID))
	}
	if event.GroupID != "" {
		rec.AddAttributes(otellog.String("group_id", event.GroupID))
	}
	if event.Source != "" {
		rec.AddAttributes(otellog.String("source", event.Source))
	}
	if event.Mode != "" {
		rec.AddAttributes(otellog.String("mode", event.Mode))
	}
	for k, v := range event.Detail {
		rec.AddAttributes(otellog.String(k, v))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
