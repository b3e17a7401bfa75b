// Worker consumes the ordered events topic and runs the processing cycle per
// event: idempotency check, kill-switch read, handler dispatch, persistence.
// It also runs the TTL sweeper and the commerce token refresher.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	auditrepo "support-middleware/internal/audit/repository"
	"support-middleware/internal/config"
	conversationrepo "support-middleware/internal/conversation/repository"
	"support-middleware/internal/db"
	"support-middleware/internal/flags"
	"support-middleware/internal/handler"
	idempotencyrepo "support-middleware/internal/idempotency/repository"
	"support-middleware/internal/queue"
	"support-middleware/internal/refresher"
	"support-middleware/internal/secrets"
	"support-middleware/internal/support"
	"support-middleware/internal/telemetry"
	"support-middleware/internal/telemetry/loki"
	otelsetup "support-middleware/internal/telemetry/otel"
	"support-middleware/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "sup-mw-worker", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	emitter := telemetry.Multi{otelsetup.NewEventEmitter(providers.LoggerProvider)}
	if lokiEmitter := loki.NewEmitter(cfg.LokiURL); lokiEmitter != nil {
		emitter = append(emitter, lokiEmitter)
	}

	secretStore := secrets.NewPostgresStore(conn)

	var live support.Client
	if cfg.OutboundEnabled && cfg.SupportAPIBaseURL != "" {
		apiKey, err := secretStore.Get(ctx, cfg.SupportAPIKeySecret)
		if err != nil {
			log.Fatalf("worker: support API key: %v", err)
		}
		live = support.NewHTTPClient(cfg.SupportAPIBaseURL, apiKey)
	}

	processor := &worker.Processor{
		Idempotency:     idempotencyrepo.NewPostgresRepository(conn),
		Conversations:   conversationrepo.NewPostgresRepository(conn),
		Audit:           auditrepo.NewPostgresRepository(conn),
		Flags:           &flags.EnvOverrideProvider{Next: flags.NewPostgresProvider(conn)},
		Handler:         handler.NewPipeline(),
		Live:            live,
		OutboundEnabled: cfg.OutboundEnabled,
		IdempotencyTTL:  cfg.IdempotencyRetention(),
		ConversationTTL: cfg.ConversationRetention(),
		AuditTTL:        cfg.AuditRetention(),
	}

	consumer := queue.NewConsumer(brokers, cfg.EventsTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	deadLetter := queue.NewDeadLetter(brokers, cfg.EventsDLQTopic)
	defer deadLetter.Close()

	runner := &worker.Runner{
		Source:         consumer,
		DeadLetter:     deadLetter,
		Processor:      processor,
		Retry:          queue.ExponentialRetryPolicy{Initial: cfg.RetryInitial(), Max: cfg.RetryMax()},
		MaxDelivery:    cfg.MaxDeliveryCount,
		RateLimitFloor: cfg.RetryMax(),
		DefaultGroupID: cfg.DefaultMessageGroupID,
		EventSource:    cfg.EventSource,
		Emitter:        emitter,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper := &db.Sweeper{DB: conn, Interval: time.Hour}
		sweeper.Run(ctx)
	}()

	if interval := cfg.RefreshInterval(); interval > 0 && cfg.CommerceTokenURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := &refresher.Refresher{
				Secrets:   secretStore,
				Exchanger: refresher.NewOAuthExchanger(cfg.CommerceTokenURL),
				Names: refresher.SecretNames{
					ClientID:     cfg.CommerceClientIDSecret,
					ClientSecret: cfg.CommerceClientSecretSecret,
					RefreshToken: cfg.CommerceRefreshTokenSecret,
					AccessToken:  cfg.CommerceAccessTokenSecret,
				},
				Interval: interval,
				Emitter:  emitter,
			}
			r.Run(ctx)
		}()
	}

	log.Printf("worker: consuming %s (group %s), dead-lettering to %s",
		cfg.EventsTopic, cfg.KafkaGroupID, cfg.EventsDLQTopic)
	runner.Run(ctx)

	wg.Wait()
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("worker: telemetry shutdown: %v", err)
	}
	log.Println("worker: stopped")
}
