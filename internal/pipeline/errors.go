// Package pipeline holds the error taxonomy shared by the worker, the queue
// runner, and the outbound clients.
package pipeline

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks a downstream 429-class failure. The runner backs off
// on a slower schedule for these instead of treating them as hard failures.
// Wrap with fmt.Errorf("...: %w", ErrRateLimited).
var ErrRateLimited = errors.New("rate limited by downstream")

// ErrDuplicateEvent is returned by the idempotency ledger when a record for
// the event id already exists. The worker acknowledges without re-processing.
var ErrDuplicateEvent = errors.New("duplicate event")

// ConfigError reports missing or invalid operator-provided configuration
// (a flag or secret). It fails fast rather than defaulting to an unsafe state.
type ConfigError struct {
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration %q: %s", e.Name, e.Reason)
}

// IsRateLimited reports whether err is, or wraps, ErrRateLimited.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
