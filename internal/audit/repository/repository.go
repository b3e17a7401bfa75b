package repository

import (
	"context"

	"support-middleware/internal/audit/domain"
)

// Repository defines persistence for the append-only audit trail.
type Repository interface {
	// Append inserts one record. Records are never mutated after insert.
	Append(ctx context.Context, rec *domain.Record) error
	// ListByConversation returns non-expired records for the conversation in
	// ts_action_id order, up to limit.
	ListByConversation(ctx context.Context, conversationID string, limit int32) ([]*domain.Record, error)
}
