// Package refresher rotates the commerce platform access credential on a
// fixed schedule. Failures are logged and surfaced as telemetry; the pipeline
// keeps running on the previous credential until the next cycle succeeds.
package refresher

import (
	"context"
	"fmt"
	"log"
	"time"

	"support-middleware/internal/secrets"
	"support-middleware/internal/telemetry"
)

// Token is the result of a credential exchange.
type Token struct {
	AccessToken string
	// RefreshToken is the rotated refresh credential, empty when the
	// provider does not rotate it.
	RefreshToken string
	ExpiresIn    time.Duration
}

// Exchanger trades a refresh credential for a fresh access credential.
type Exchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, refreshToken string) (Token, error)
}

// SecretNames are the logical names the refresher reads and writes.
type SecretNames struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
}

// Refresher runs the periodic rotation.
type Refresher struct {
	Secrets   secrets.Store
	Exchanger Exchanger
	Names     SecretNames
	// Interval between refreshes, typically 4h. Zero disables Run.
	Interval time.Duration
	Emitter  telemetry.EventEmitter
}

// RefreshOnce performs a single rotation: read the client credentials and
// refresh token, exchange them, store the new access token, and store the
// rotated refresh token when the provider returned one.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	clientID, err := r.Secrets.Get(ctx, r.Names.ClientID)
	if err != nil {
		return fmt.Errorf("refresher: %w", err)
	}
	clientSecret, err := r.Secrets.Get(ctx, r.Names.ClientSecret)
	if err != nil {
		return fmt.Errorf("refresher: %w", err)
	}
	refreshToken, err := r.Secrets.Get(ctx, r.Names.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresher: %w", err)
	}

	token, err := r.Exchanger.Exchange(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		return fmt.Errorf("refresher: exchange: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("refresher: exchange returned empty access token")
	}

	if err := r.Secrets.Put(ctx, r.Names.AccessToken, token.AccessToken); err != nil {
		return fmt.Errorf("refresher: store access token: %w", err)
	}
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if err := r.Secrets.Put(ctx, r.Names.RefreshToken, token.RefreshToken); err != nil {
			return fmt.Errorf("refresher: store rotated refresh token: %w", err)
		}
	}
	return nil
}

// Run refreshes immediately, then on every tick until ctx is canceled.
// A failed cycle is logged and reported; the loop keeps going.
func (r *Refresher) Run(ctx context.Context) {
	if r.Interval <= 0 {
		log.Println("refresher: disabled (no interval)")
		return
	}

	r.cycle(ctx)
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("refresher: stopped")
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Refresher) cycle(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		log.Printf("refresher: cycle failed: %v", err)
		telemetry.EmitAsync(r.Emitter, ctx, &telemetry.Event{
			EventType: telemetry.TokenRefreshError,
			Detail:    map[string]string{"error": err.Error()},
			CreatedAt: time.Now().UTC(),
		})
		return
	}
	log.Println("refresher: access credential rotated")
	telemetry.EmitAsync(r.Emitter, ctx, &telemetry.Event{
		EventType: telemetry.TokenRefreshed,
		CreatedAt: time.Now().UTC(),
	})
}
