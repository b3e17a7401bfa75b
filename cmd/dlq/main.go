// dlq is the operator tool for the dead-letter topic: list parked messages or
// replay them back onto the events topic with a fresh retry budget.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"support-middleware/internal/config"
	"support-middleware/internal/queue"
)

func main() {
	list := flag.Bool("list", false, "List dead-lettered messages")
	limit := flag.Int("limit", 20, "Max messages to list per partition")
	replay := flag.Int("replay", 0, "Replay up to N dead-lettered messages onto the events topic")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("dlq: KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case *list:
		browser := queue.NewBrowser(brokers, cfg.EventsDLQTopic)
		entries, err := browser.List(ctx, *limit)
		if err != nil {
			log.Fatalf("dlq: list: %v", err)
		}
		if len(entries) == 0 {
			fmt.Println("dead-letter topic is empty")
			return
		}
		for _, e := range entries {
			fmt.Printf("%s partition=%d offset=%d group=%s attempts=%s at=%s error=%s\n",
				e.EventID, e.Partition, e.Offset, e.GroupID, e.Attempts, e.DeadLetteredAt, e.LastError)
		}

	case *replay > 0:
		replayer := queue.NewReplayer(brokers, cfg.EventsDLQTopic, cfg.EventsTopic, cfg.KafkaGroupID+"-replay")
		defer replayer.Close()
		for i := 0; i < *replay; i++ {
			msg, err := replayer.ReplayOne(ctx)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Printf("replayed %d message(s); no more within timeout\n", i)
					return
				}
				log.Fatalf("dlq: replay: %v", err)
			}
			fmt.Printf("replayed %s (group %s)\n", queue.HeaderValue(msg, queue.HeaderEventID), string(msg.Key))
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}
