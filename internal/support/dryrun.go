package support

import (
	"context"
	"sync"
)

// Intent records an outbound action the dry-run client suppressed.
type Intent struct {
	Kind           string // "send_reply" or "add_tags"
	ConversationID string
	Message        string
	Tags           []string
}

// DryRunClient records outbound intents without performing them. The worker
// injects it whenever automation is disabled or safe mode is on, so handler
// logic runs end to end while customers see nothing.
type DryRunClient struct {
	mu      sync.Mutex
	intents []Intent
}

// SendReply records the reply intent and performs no network call.
func (c *DryRunClient) SendReply(_ context.Context, conversationID, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, Intent{Kind: "send_reply", ConversationID: conversationID, Message: message})
	return nil
}

// AddTags records the tagging intent and performs no network call.
func (c *DryRunClient) AddTags(_ context.Context, conversationID string, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, Intent{Kind: "add_tags", ConversationID: conversationID, Tags: append([]string(nil), tags...)})
	return nil
}

// DryRun always reports true.
func (c *DryRunClient) DryRun() bool { return true }

// Intents returns a copy of the recorded intents.
func (c *DryRunClient) Intents() []Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Intent(nil), c.intents...)
}
