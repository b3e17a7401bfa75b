package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"support-middleware/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit trail repository backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one audit record.
func (r *PostgresRepository) Append(ctx context.Context, rec *domain.Record) error {
	detail, err := json.Marshal(rec.Detail)
	if err != nil {
		return fmt.Errorf("audit %s: marshal detail: %w", rec.EventID, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_trail
			(conversation_id, ts_action_id, event_id, action, detail, dry_run, recorded_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ConversationID, rec.TSActionID, rec.EventID, rec.Action, detail,
		rec.DryRun, rec.RecordedAt, rec.ExpiresAt)
	return err
}

// ListByConversation returns non-expired records for the conversation ordered
// by ts_action_id, up to limit.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string, limit int32) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, ts_action_id, event_id, action, detail, dry_run, recorded_at, expires_at
		FROM audit_trail
		WHERE conversation_id = $1 AND expires_at > now()
		ORDER BY ts_action_id
		LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		var detail []byte
		if err := rows.Scan(&rec.ConversationID, &rec.TSActionID, &rec.EventID, &rec.Action,
			&detail, &rec.DryRun, &rec.RecordedAt, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &rec.Detail); err != nil {
				return nil, fmt.Errorf("audit %s: detail: %w", rec.TSActionID, err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
