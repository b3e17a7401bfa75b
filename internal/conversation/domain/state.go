package domain

import "time"

// State is the last-known materialized view of a conversation, owned
// exclusively by the worker and overwritten on each successful cycle.
type State struct {
	ConversationID string
	EventID        string // last applied event
	Mode           string
	Snapshot       map[string]any
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}
