package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"support-middleware/internal/conversation/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a conversation state store backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByConversationID returns the state for the conversation, or nil if not
// found. Expired rows are treated as absent.
func (r *PostgresRepository) GetByConversationID(ctx context.Context, conversationID string) (*domain.State, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT conversation_id, event_id, mode, snapshot, updated_at, expires_at
		FROM conversation_state
		WHERE conversation_id = $1 AND expires_at > now()`, conversationID)

	var st domain.State
	var snapshot []byte
	err := row.Scan(&st.ConversationID, &st.EventID, &st.Mode, &snapshot, &st.UpdatedAt, &st.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &st.Snapshot); err != nil {
			return nil, fmt.Errorf("conversation state %s: snapshot: %w", conversationID, err)
		}
	}
	return &st, nil
}

// Upsert creates or overwrites the snapshot for the state's conversation id.
func (r *PostgresRepository) Upsert(ctx context.Context, s *domain.State) error {
	snapshot, err := json.Marshal(s.Snapshot)
	if err != nil {
		return fmt.Errorf("conversation state %s: marshal snapshot: %w", s.ConversationID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversation_state (conversation_id, event_id, mode, snapshot, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			mode = EXCLUDED.mode,
			snapshot = EXCLUDED.snapshot,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at`,
		s.ConversationID, s.EventID, s.Mode, snapshot, s.UpdatedAt, s.ExpiresAt)
	return err
}
