// Package ingress is the webhook gateway. It validates the shared token,
// wraps the payload in the canonical envelope, enqueues it, and ACKs fast;
// all real processing happens in the worker.
package ingress

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"support-middleware/internal/envelope"
	"support-middleware/internal/secrets"
	"support-middleware/internal/telemetry"
)

// TokenHeader carries the shared webhook token.
const TokenHeader = "X-Webhook-Token"

// maxBodyBytes caps webhook bodies; anything bigger is rejected before parse.
const maxBodyBytes = 1 << 20 // 1MB

// Enqueuer writes envelopes to the events queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, env envelope.Envelope) error
}

// Deps are the gateway's collaborators.
type Deps struct {
	// Tokens resolves the webhook token secret; wrap with a CachedReader so
	// every request does not hit the backing store.
	Tokens secrets.Reader
	// TokenSecretName is the logical name of the webhook token secret.
	TokenSecretName string
	Queue           Enqueuer
	DefaultGroupID  string
	Source          string
	// Ready reports whether downstream dependencies are reachable. Nil means
	// always ready.
	Ready   func(ctx context.Context) error
	Emitter telemetry.EventEmitter
}

// NewRouter wires the gateway endpoints.
// Public: /health, /ready. Token-guarded: POST /webhook.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms downstream dependencies are reachable.
	r.GET("/ready", func(c *gin.Context) {
		if deps.Ready == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := deps.Ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.POST("/webhook", func(c *gin.Context) {
		expected, err := deps.Tokens.Get(c.Request.Context(), deps.TokenSecretName)
		if err != nil {
			// A gateway that cannot verify tokens must not accept anything.
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "code": "internal_error"})
			return
		}

		provided := c.GetHeader(TokenHeader)
		if provided == "" {
			reject(c, deps, http.StatusUnauthorized, "missing_token")
			return
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			reject(c, deps, http.StatusUnauthorized, "invalid_token")
			return
		}

		payload := parsePayload(c.Request.Body)
		env := envelope.Build(payload, deps.DefaultGroupID, deps.Source)

		if err := deps.Queue.Enqueue(c.Request.Context(), env); err != nil {
			telemetry.EmitAsync(deps.Emitter, c.Request.Context(), &telemetry.Event{
				EventType: telemetry.EventRejected,
				EventID:   env.EventID,
				GroupID:   env.GroupID,
				Source:    env.Source,
				Detail:    map[string]string{"code": "enqueue_failed", "error": err.Error()},
				CreatedAt: time.Now().UTC(),
			})
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "code": "enqueue_failed"})
			return
		}

		telemetry.EmitAsync(deps.Emitter, c.Request.Context(), &telemetry.Event{
			EventType:      telemetry.EventAccepted,
			EventID:        env.EventID,
			ConversationID: env.ConversationID,
			GroupID:        env.GroupID,
			Source:         env.Source,
			CreatedAt:      time.Now().UTC(),
		})
		c.JSON(http.StatusOK, gin.H{"status": "accepted", "event_id": env.EventID})
	})

	return r
}

func reject(c *gin.Context, deps Deps, status int, code string) {
	telemetry.EmitAsync(deps.Emitter, c.Request.Context(), &telemetry.Event{
		EventType: telemetry.EventRejected,
		Detail:    map[string]string{"code": code},
		CreatedAt: time.Now().UTC(),
	})
	c.JSON(status, gin.H{"status": "error", "code": code})
}

// parsePayload decodes the body as a JSON object. Undecodable bodies become
// {"raw_body": ...} and non-object JSON becomes {"data": ...}, so every
// webhook yields an envelope and the dispute trail starts at ingress.
func parsePayload(body io.Reader) map[string]any {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil || len(raw) == 0 {
		return map[string]any{}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]any{"raw_body": string(raw)}
	}
	if obj, ok := decoded.(map[string]any); ok {
		return obj
	}
	return map[string]any{"data": decoded}
}
