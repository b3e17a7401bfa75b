package db

import (
	"context"
	"database/sql"
	"log"
	"time"
)

// sweepTables are the TTL-bounded stores; expired rows are invisible to reads
// and removed here opportunistically.
var sweepTables = []string{"idempotency_records", "conversation_state", "audit_trail"}

// Sweeper periodically deletes rows whose expires_at has passed. The stores
// filter expired rows on read, so sweeping is a space reclamation concern,
// not a correctness one.
type Sweeper struct {
	DB       *sql.DB
	Interval time.Duration
}

// Run sweeps on the configured interval until ctx is cancelled.
// Failures are logged and the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	for _, table := range sweepTables {
		res, err := s.DB.ExecContext(ctx, "DELETE FROM "+table+" WHERE expires_at <= now()")
		if err != nil {
			log.Printf("sweeper: %s: %v", table, err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			log.Printf("sweeper: %s: removed %d expired rows", table, n)
		}
	}
}
