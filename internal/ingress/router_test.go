package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"support-middleware/internal/envelope"
	"support-middleware/internal/secrets"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Get(_ context.Context, name string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

type fakeQueue struct {
	enqueued []envelope.Envelope
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, env envelope.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, env)
	return nil
}

func testDeps(queue *fakeQueue) Deps {
	return Deps{
		Tokens:          staticTokens{token: "shared-token"},
		TokenSecretName: "webhook_token",
		Queue:           queue,
		DefaultGroupID:  "sup-mw-default",
		Source:          "support_http_target",
	}
}

func post(router http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_AcceptsAndEnqueues(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(testDeps(queue))

	w := post(router, "shared-token", `{"conversation_id":"conv-1","message":"hi"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("status field = %v", resp["status"])
	}
	if resp["event_id"] == "" || resp["event_id"] == nil {
		t.Error("response must carry the event id")
	}
	if len(queue.enqueued) != 1 {
		t.Fatalf("got %d enqueued, want 1", len(queue.enqueued))
	}
	env := queue.enqueued[0]
	if env.ConversationID != "conv-1" || env.GroupID != "conv-1" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestWebhook_MissingToken(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(testDeps(queue))

	w := post(router, "", `{}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing_token") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(queue.enqueued) != 0 {
		t.Error("unauthorized request must not enqueue")
	}
}

func TestWebhook_InvalidToken(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(testDeps(queue))

	w := post(router, "wrong", `{}`)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_token") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWebhook_TokenResolveFailure(t *testing.T) {
	queue := &fakeQueue{}
	deps := testDeps(queue)
	deps.Tokens = staticTokens{err: secrets.NotFound("webhook_token")}
	router := NewRouter(deps)

	w := post(router, "shared-token", `{}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if len(queue.enqueued) != 0 {
		t.Error("request must not be accepted when token cannot be verified")
	}
}

func TestWebhook_EnqueueFailure(t *testing.T) {
	queue := &fakeQueue{err: errors.New("brokers down")}
	router := NewRouter(testDeps(queue))

	w := post(router, "shared-token", `{"conversation_id":"conv-1"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "enqueue_failed") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWebhook_MalformedBodyStillAccepted(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(testDeps(queue))

	w := post(router, "shared-token", `not json at all`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := queue.enqueued[0]
	if env.Payload["raw_body"] != "not json at all" {
		t.Errorf("payload = %+v, want raw_body fallback", env.Payload)
	}
	if env.GroupID != "sup-mw-default" {
		t.Errorf("group = %q, want default group", env.GroupID)
	}
}

func TestWebhook_NonObjectJSONWrapped(t *testing.T) {
	queue := &fakeQueue{}
	router := NewRouter(testDeps(queue))

	w := post(router, "shared-token", `[1,2,3]`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if _, ok := queue.enqueued[0].Payload["data"]; !ok {
		t.Errorf("payload = %+v, want data wrapper", queue.enqueued[0].Payload)
	}
}

func TestHealthAndReady(t *testing.T) {
	queue := &fakeQueue{}
	deps := testDeps(queue)
	readyErr := errors.New("db unreachable")
	deps.Ready = func(context.Context) error { return readyErr }
	router := NewRouter(deps)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/ready status = %d, want 503", w.Code)
	}

	readyErr = nil
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("/ready status = %d, want 200", w.Code)
	}
}
