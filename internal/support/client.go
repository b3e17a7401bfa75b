// Package support is the outbound boundary to the support platform. The
// worker chooses which Client implementation the handler receives: the HTTP
// client only when automation is enabled, the dry-run client otherwise.
// That selection, not handler goodwill, is the kill-switch guarantee.
package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"support-middleware/internal/pipeline"
)

const defaultTimeout = 15 * time.Second

// Client performs effect-producing actions against the support platform.
type Client interface {
	// SendReply posts a reply message on the conversation.
	SendReply(ctx context.Context, conversationID, message string) error
	// AddTags applies routing tags to the conversation.
	AddTags(ctx context.Context, conversationID string, tags []string) error
	// DryRun reports whether this client suppresses real effects.
	DryRun() bool
}

// HTTPClient talks to the support platform REST API.
type HTTPClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewHTTPClient returns a live outbound client for the given base URL and API key.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendReply posts a reply on the conversation.
func (c *HTTPClient) SendReply(ctx context.Context, conversationID, message string) error {
	return c.post(ctx, fmt.Sprintf("/conversations/%s/messages", conversationID), map[string]any{
		"body": message,
	})
}

// AddTags applies routing tags to the conversation.
func (c *HTTPClient) AddTags(ctx context.Context, conversationID string, tags []string) error {
	return c.post(ctx, fmt.Sprintf("/conversations/%s/tags", conversationID), map[string]any{
		"tags": tags,
	})
}

// DryRun always reports false for the live client.
func (c *HTTPClient) DryRun() bool { return false }

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any) error {
	if c.BaseURL == "" {
		return fmt.Errorf("support: base URL not configured")
	}
	if c.APIKey == "" {
		return fmt.Errorf("support: API key not configured")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("support: %s: %w", path, pipeline.ErrRateLimited)
	case resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("support: %s failed status=%d body=%s", path, resp.StatusCode, string(b))
	}
	return nil
}
