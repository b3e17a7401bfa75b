// seed provisions development secrets and the conservative kill-switch
// defaults for local testing. Idempotent: existing secrets are left alone.
package main

import (
	"context"
	"log"

	"support-middleware/internal/config"
	"support-middleware/internal/db"
	"support-middleware/internal/flags"
	"support-middleware/internal/secrets"
)

const devWebhookToken = "dev-webhook-token"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	store := secrets.NewPostgresStore(conn)

	if _, err := store.Get(ctx, cfg.WebhookTokenSecret); err == nil {
		log.Println("Seed already applied (webhook token exists). Skipping.")
		return
	}

	if err := store.Put(ctx, cfg.WebhookTokenSecret, devWebhookToken); err != nil {
		log.Fatalf("seed webhook token: %v", err)
	}

	// The migration seeds safe_mode=true / automation_enabled=false; restate
	// them here so a reset database comes back in the observe-only posture.
	for name, value := range map[string]string{
		flags.SafeModeFlag:          "true",
		flags.AutomationEnabledFlag: "false",
	} {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO runtime_flags (name, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (name) DO NOTHING`, name, value); err != nil {
			log.Fatalf("seed flag %s: %v", name, err)
		}
	}

	log.Println("Seed completed successfully.")
	log.Printf("Webhook token (%s): %s", cfg.WebhookTokenSecret, devWebhookToken)
}
