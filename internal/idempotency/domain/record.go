package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome records how an event finished processing.
type Outcome string

const (
	// OutcomeApplied means the handler ran and its effects were persisted.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means processing completed with an explicit skip.
	OutcomeSkipped Outcome = "skipped"
)

// Record is one entry in the idempotency ledger. Created exactly once per
// distinct event id the first time processing completes; never updated.
type Record struct {
	EventID            string
	ConversationID     string
	Outcome            Outcome
	Mode               string
	Source             string
	PayloadFingerprint string
	ProcessedAt        time.Time
	ExpiresAt          time.Time
}

// Fingerprint returns a short stable digest of the payload, kept on the
// record for dispute debugging without retaining the payload itself.
func Fingerprint(payload map[string]any) string {
	serialized, err := json.Marshal(payload)
	if err != nil {
		serialized = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])[:12]
}
