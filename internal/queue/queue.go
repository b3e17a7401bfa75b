// Package queue is the ordered event transport on Kafka. Messages are keyed
// by group id with a hash balancer, so every event of a group lands on the
// same partition and is consumed in enqueue order; groups spread across
// partitions and proceed independently. Commit-after-processing gives
// at-least-once delivery; the idempotency ledger makes effects exactly-once.
package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"support-middleware/internal/envelope"
)

// Message headers used across the pipeline and the dead-letter topic.
const (
	HeaderEventID          = "event_id"
	HeaderDedupeID         = "dedupe_id"
	HeaderDeliveryAttempts = "delivery_attempts"
	HeaderLastError        = "last_error"
	HeaderOriginPartition  = "origin_partition"
	HeaderOriginOffset     = "origin_offset"
	HeaderDeadLetteredAt   = "dead_lettered_at"
)

// enqueueTimeout bounds a single Kafka write so slow brokers do not hold the
// ingress response past its fast-ack budget.
const enqueueTimeout = 5 * time.Second

// Producer writes envelopes to the events topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a producer for the given topic. brokers must be
// non-empty. Call Close when shutting down.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer}
}

// Enqueue writes one envelope keyed by its group id. Exactly one write is
// attempted per call; the caller may retry on failure because downstream
// dedup is by event id.
func (p *Producer) Enqueue(ctx context.Context, env envelope.Envelope) error {
	value, err := env.Encode()
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(env.GroupID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(env.EventID)},
			{Key: HeaderDedupeID, Value: []byte(env.DedupeID)},
		},
	})
}

// Close closes the Kafka writer. Safe to call multiple times.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Consumer fetches messages from the events topic with manual commits, so a
// message is only removed from the group's backlog after processing (or
// dead-lettering) completes.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a consumer-group reader for the given topic.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  1 * time.Second,
	})
	return &Consumer{reader: reader}
}

// Fetch returns the next message without committing it.
func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

// Commit acknowledges the message, removing it from the group's backlog.
func (c *Consumer) Commit(ctx context.Context, msg kafka.Message) error {
	return c.reader.CommitMessages(ctx, msg)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// HeaderValue returns the named header from a message, or "".
func HeaderValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
