// Package secrets resolves secret material by logical name at invocation
// time. Secrets are never embedded in code, config structs, or queue
// payloads; components hold names and resolve values when they need them.
package secrets

import (
	"context"

	"support-middleware/internal/pipeline"
)

// Reader resolves a secret value by logical name.
type Reader interface {
	Get(ctx context.Context, name string) (string, error)
}

// Store is a Reader whose secrets can also be rotated (e.g. by the token
// refresher).
type Store interface {
	Reader
	Put(ctx context.Context, name, value string) error
}

// NotFound builds the error returned when a named secret is missing or empty.
func NotFound(name string) error {
	return &pipeline.ConfigError{Name: name, Reason: "secret not provisioned"}
}

// Chain tries each reader in order and returns the first hit. Lets a process
// prefer env-injected secrets over the store in development.
type Chain []Reader

// Get resolves through the chain; the last reader's error is returned when
// nothing resolves.
func (c Chain) Get(ctx context.Context, name string) (string, error) {
	var lastErr error
	for _, r := range c {
		value, err := r.Get(ctx, name)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = NotFound(name)
	}
	return "", lastErr
}
