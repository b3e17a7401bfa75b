// Package loki provides a client to push pipeline events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"support-middleware/internal/telemetry"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters that are invalid in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// Emitter implements telemetry.EventEmitter against a Loki push endpoint.
type Emitter struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewEmitter creates a Loki emitter for the given base URL (e.g.
// http://localhost:3100). Returns nil when baseURL is empty so callers can
// pass the result straight into a telemetry.Multi.
func NewEmitter(baseURL string) *Emitter {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	return &Emitter{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Emit pushes the event as a single log line with labels for the queryable
// fields. Best-effort; callers log and ignore errors.
func (e *Emitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if e == nil || event == nil {
		return nil
	}
	line, err := json.Marshal(map[string]any{
		"event_type":      event.EventType,
		"event_id":        event.EventID,
		"conversation_id": event.ConversationID,
		"group_id":        event.GroupID,
		"source":          event.Source,
		"mode":            event.Mode,
		"detail":          event.Detail,
	})
	if err != nil {
		return err
	}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	labels := map[string]string{
		"event_type": event.EventType,
		"source":     event.Source,
		"mode":       event.Mode,
	}
	return e.push(ctx, ts, string(line), labels)
}

// push sends a single log line to Loki. labels are added to the stream on top
// of the fixed job label. Returns an error if the HTTP request fails or Loki
// returns non-2xx.
func (e *Emitter) push(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if e.BaseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = "supmw"
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{
		Streams: []Stream{{
			Stream: streamLabels,
			Values: [][]string{{fmt.Sprintf("%d", timestamp.UnixNano()), line}},
		}},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(e.BaseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
