// Ingress is the webhook gateway: it validates the shared token, envelopes
// the payload, and enqueues it for the worker. Set DATABASE_URL and
// KAFKA_BROKERS; see internal/config for the full surface.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support-middleware/internal/config"
	"support-middleware/internal/db"
	"support-middleware/internal/ingress"
	"support-middleware/internal/queue"
	"support-middleware/internal/secrets"
	"support-middleware/internal/telemetry"
	"support-middleware/internal/telemetry/loki"
	otelsetup "support-middleware/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("ingress: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("ingress: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "sup-mw-ingress", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	emitter := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if lokiEmitter := loki.NewEmitter(cfg.LokiURL); lokiEmitter != nil {
		emitter = append(emitter, lokiEmitter)
	}

	producer := queue.NewProducer(brokers, cfg.EventsTopic)
	defer producer.Close()

	// Env-injected secrets win over the store so local runs need no seed.
	tokens := &secrets.CachedReader{
		Next: secrets.Chain{&secrets.EnvReader{}, secrets.NewPostgresStore(conn)},
		TTL:  cfg.TokenCacheTTL(),
	}

	router := ingress.NewRouter(ingress.Deps{
		Tokens:          tokens,
		TokenSecretName: cfg.WebhookTokenSecret,
		Queue:           producer,
		DefaultGroupID:  cfg.DefaultMessageGroupID,
		Source:          cfg.EventSource,
		Ready:           conn.PingContext,
		Emitter:         emitter,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("ingress: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("ingress: shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ingress: shutdown: %v", err)
	}

	// Give in-flight async telemetry emits time to complete.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("ingress: telemetry shutdown: %v", err)
	}
	log.Println("ingress: stopped")
}
