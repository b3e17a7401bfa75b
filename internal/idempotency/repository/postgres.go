package repository

import (
	"context"
	"database/sql"
	"errors"

	"support-middleware/internal/idempotency/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an idempotency ledger backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByEventID returns the record for the event id, or nil if not found.
// Expired records are treated as absent. It returns an error only for
// database failures, not for missing rows.
func (r *PostgresRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT event_id, conversation_id, outcome, mode, source, payload_fingerprint, processed_at, expires_at
		FROM idempotency_records
		WHERE event_id = $1 AND expires_at > now()`, eventID)

	var rec domain.Record
	var outcome string
	err := row.Scan(&rec.EventID, &rec.ConversationID, &outcome, &rec.Mode,
		&rec.Source, &rec.PayloadFingerprint, &rec.ProcessedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.Outcome = domain.Outcome(outcome)
	return &rec, nil
}

// Create inserts the record, replacing only an expired row for the same event
// id. Returns false when a live record already exists.
func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO idempotency_records
			(event_id, conversation_id, outcome, mode, source, payload_fingerprint, processed_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO UPDATE SET
			conversation_id = EXCLUDED.conversation_id,
			outcome = EXCLUDED.outcome,
			mode = EXCLUDED.mode,
			source = EXCLUDED.source,
			payload_fingerprint = EXCLUDED.payload_fingerprint,
			processed_at = EXCLUDED.processed_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= now()`,
		rec.EventID, rec.ConversationID, string(rec.Outcome), rec.Mode,
		rec.Source, rec.PayloadFingerprint, rec.ProcessedAt, rec.ExpiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
