package flags

import (
	"context"
	"database/sql"
	"fmt"

	"support-middleware/internal/pipeline"
)

// PostgresProvider reads kill switches from the runtime_flags table on every
// call. Operators toggle flags with a plain UPDATE; no deployment needed.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider returns a Provider backed by the given db.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Current reads both flags fresh. A missing flag or read failure returns the
// fail-safe posture together with the error, so callers can continue in
// observe-only mode while surfacing the problem: automation_enabled is never
// assumed true in an ambiguous state.
func (p *PostgresProvider) Current(ctx context.Context) (Flags, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, value FROM runtime_flags WHERE name IN ($1, $2)`,
		SafeModeFlag, AutomationEnabledFlag)
	if err != nil {
		return FailSafe(), fmt.Errorf("flags: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return FailSafe(), fmt.Errorf("flags: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return FailSafe(), fmt.Errorf("flags: %w", err)
	}

	for _, name := range []string{SafeModeFlag, AutomationEnabledFlag} {
		if _, ok := values[name]; !ok {
			return FailSafe(), &pipeline.ConfigError{Name: name, Reason: "flag not provisioned"}
		}
	}

	f := Flags{
		SafeMode:          ParseBool(values[SafeModeFlag]),
		AutomationEnabled: ParseBool(values[AutomationEnabledFlag]),
	}
	return f.Effective(), nil
}
