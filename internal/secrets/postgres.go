package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps rotatable secrets in the secrets table. Used by the
// token refresher, which writes new access credentials at runtime.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a secret store backed by the given db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the named secret, or a ConfigError when absent or empty.
func (s *PostgresStore) Get(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NotFound(name)
		}
		return "", fmt.Errorf("secrets: get %s: %w", name, err)
	}
	if value == "" {
		return "", NotFound(name)
	}
	return value, nil
}

// Put creates or rotates the named secret.
func (s *PostgresStore) Put(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (name, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value)
	if err != nil {
		return fmt.Errorf("secrets: put %s: %w", name, err)
	}
	return nil
}
