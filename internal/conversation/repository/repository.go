package repository

import (
	"context"

	"support-middleware/internal/conversation/domain"
)

// Repository defines persistence for conversation state snapshots.
type Repository interface {
	// GetByConversationID returns the snapshot, or nil if absent or expired.
	GetByConversationID(ctx context.Context, conversationID string) (*domain.State, error)
	// Upsert creates or overwrites the snapshot for the state's conversation id.
	Upsert(ctx context.Context, s *domain.State) error
}
