package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"support-middleware/internal/envelope"
	idempotencydomain "support-middleware/internal/idempotency/domain"
	"support-middleware/internal/pipeline"
	"support-middleware/internal/queue"
)

type fakeSource struct {
	messages []kafka.Message
	fetched  int
	commits  []kafka.Message
	// cancel stops the runner loop once the scripted messages run out.
	cancel context.CancelFunc
}

func (f *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	if f.fetched >= len(f.messages) {
		f.cancel()
		return kafka.Message{}, context.Canceled
	}
	msg := f.messages[f.fetched]
	f.fetched++
	return msg, nil
}

func (f *fakeSource) Commit(_ context.Context, msg kafka.Message) error {
	f.commits = append(f.commits, msg)
	return nil
}

type fakeDLQ struct {
	sent []kafka.Message
	errs []error
}

func (f *fakeDLQ) Send(_ context.Context, msg kafka.Message, attempts int, cause error) error {
	f.sent = append(f.sent, msg)
	f.errs = append(f.errs, cause)
	return nil
}

type scriptedProcessor struct {
	// errs maps event id to the errors returned on successive attempts;
	// exhausted scripts succeed.
	errs     map[string][]error
	attempts map[string]int
	order    []string
}

func newScriptedProcessor() *scriptedProcessor {
	return &scriptedProcessor{errs: map[string][]error{}, attempts: map[string]int{}}
}

func (s *scriptedProcessor) Process(_ context.Context, env envelope.Envelope) (Outcome, error) {
	s.order = append(s.order, env.EventID)
	n := s.attempts[env.EventID]
	s.attempts[env.EventID] = n + 1
	script := s.errs[env.EventID]
	if n < len(script) && script[n] != nil {
		return Outcome{}, script[n]
	}
	return Outcome{Status: idempotencydomain.OutcomeApplied, Mode: "route_only", DryRun: true}, nil
}

func message(eventID, group string) kafka.Message {
	env := envelope.Envelope{
		EventID:        eventID,
		GroupID:        group,
		DedupeID:       eventID,
		ConversationID: group,
		Source:         "test",
		Payload:        map[string]any{},
	}
	value, _ := env.Encode()
	return kafka.Message{Key: []byte(group), Value: value}
}

func newRunner(src *fakeSource, dlq *fakeDLQ, proc EventProcessor) (*Runner, *[]time.Duration) {
	var delays []time.Duration
	r := &Runner{
		Source:         src,
		DeadLetter:     dlq,
		Processor:      proc,
		Retry:          queue.ExponentialRetryPolicy{Initial: time.Second, Max: 30 * time.Second},
		MaxDelivery:    5,
		RateLimitFloor: 30 * time.Second,
		DefaultGroupID: "sup-mw-default",
		EventSource:    "test",
		sleep: func(_ context.Context, d time.Duration) {
			delays = append(delays, d)
		},
	}
	return r, &delays
}

func runUntilDrained(r *Runner, src *fakeSource) {
	ctx, cancel := context.WithCancel(context.Background())
	src.cancel = cancel
	defer cancel()
	r.Run(ctx)
}

func TestRunner_SuccessCommitsAndMovesOn(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{message("evt:1", "conv-1"), message("evt:2", "conv-1")}}
	proc := newScriptedProcessor()
	r, _ := newRunner(src, &fakeDLQ{}, proc)

	runUntilDrained(r, src)

	if len(src.commits) != 2 {
		t.Fatalf("got %d commits, want 2", len(src.commits))
	}
	if len(proc.order) != 2 || proc.order[0] != "evt:1" || proc.order[1] != "evt:2" {
		t.Errorf("processing order = %v, want fetch order preserved", proc.order)
	}
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{message("evt:1", "conv-1")}}
	proc := newScriptedProcessor()
	proc.errs["evt:1"] = []error{errors.New("transient"), errors.New("transient")}
	dlq := &fakeDLQ{}
	r, delays := newRunner(src, dlq, proc)

	runUntilDrained(r, src)

	if proc.attempts["evt:1"] != 3 {
		t.Errorf("attempts = %d, want 3", proc.attempts["evt:1"])
	}
	if len(dlq.sent) != 0 {
		t.Error("message must not be dead-lettered after eventual success")
	}
	if len(src.commits) != 1 {
		t.Errorf("got %d commits, want 1", len(src.commits))
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*delays) != 2 || (*delays)[0] != want[0] || (*delays)[1] != want[1] {
		t.Errorf("delays = %v, want %v", *delays, want)
	}
}

func TestRunner_DeadLettersAfterBudgetExhausted(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{message("evt:1", "conv-1")}}
	proc := newScriptedProcessor()
	proc.errs["evt:1"] = []error{
		errors.New("fail"), errors.New("fail"), errors.New("fail"), errors.New("fail"), errors.New("fail"),
	}
	dlq := &fakeDLQ{}
	r, delays := newRunner(src, dlq, proc)

	runUntilDrained(r, src)

	if proc.attempts["evt:1"] != 5 {
		t.Errorf("attempts = %d, want exactly the delivery budget", proc.attempts["evt:1"])
	}
	if len(dlq.sent) != 1 {
		t.Fatalf("got %d dead-letter writes, want 1", len(dlq.sent))
	}
	if dlq.errs[0] == nil || dlq.errs[0].Error() != "fail" {
		t.Errorf("dead-letter cause = %v", dlq.errs[0])
	}
	if len(src.commits) != 1 {
		t.Error("dead-lettered message must still be committed")
	}
	// Four waits between five attempts, none after the last.
	if len(*delays) != 4 {
		t.Errorf("got %d delays, want 4", len(*delays))
	}
}

func TestRunner_RateLimitedUsesSlowProfile(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{message("evt:1", "conv-1")}}
	proc := newScriptedProcessor()
	proc.errs["evt:1"] = []error{fmt.Errorf("outbound: %w", pipeline.ErrRateLimited)}
	r, delays := newRunner(src, &fakeDLQ{}, proc)

	runUntilDrained(r, src)

	if len(*delays) != 1 {
		t.Fatalf("got %d delays, want 1", len(*delays))
	}
	if (*delays)[0] != 30*time.Second {
		t.Errorf("delay = %v, want rate-limit floor of 30s", (*delays)[0])
	}
}

func TestRunner_UndecodableMessageDeadLettersImmediately(t *testing.T) {
	src := &fakeSource{messages: []kafka.Message{{Key: []byte("conv-1"), Value: []byte("not json")}}}
	proc := newScriptedProcessor()
	dlq := &fakeDLQ{}
	r, _ := newRunner(src, dlq, proc)

	runUntilDrained(r, src)

	if len(proc.order) != 0 {
		t.Error("undecodable message must not reach the processor")
	}
	if len(dlq.sent) != 1 {
		t.Fatalf("got %d dead-letter writes, want 1", len(dlq.sent))
	}
	if len(src.commits) != 1 {
		t.Error("undecodable message must be committed after parking")
	}
}
