package repository

import (
	"context"

	"support-middleware/internal/idempotency/domain"
)

// Repository defines persistence for the idempotency ledger.
type Repository interface {
	// GetByEventID returns the record for the event id, or nil if absent or expired.
	GetByEventID(ctx context.Context, eventID string) (*domain.Record, error)
	// Create inserts the record. It reports false when a live record for the
	// same event id already exists (the duplicate-delivery case); an expired
	// record is replaced.
	Create(ctx context.Context, r *domain.Record) (bool, error)
}
