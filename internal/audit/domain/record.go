package domain

import (
	"fmt"
	"time"
)

// Record is one append-only audit trail entry. Ordering within a conversation
// is by TSActionID, which sorts lexicographically in time order.
type Record struct {
	ConversationID string
	TSActionID     string
	EventID        string
	Action         string
	Detail         map[string]any
	DryRun         bool
	RecordedAt     time.Time
	ExpiresAt      time.Time
}

// NewTSActionID builds the sort key for an audit record: RFC3339Nano timestamp,
// the event id, and a per-event sequence number so multiple actions from one
// event keep their relative order.
func NewTSActionID(recordedAt time.Time, eventID string, seq int) string {
	return fmt.Sprintf("%s#%s#%03d", recordedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"), eventID, seq)
}
