package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DeadLetter writes exhausted messages to the dead-letter topic for manual
// inspection, preserving the original key and value and attaching diagnostic
// headers.
type DeadLetter struct {
	writer *kafka.Writer
}

// NewDeadLetter creates a dead-letter writer for the given topic.
func NewDeadLetter(brokers []string, topic string) *DeadLetter {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return &DeadLetter{writer: writer}
}

// Send moves the message to the dead-letter topic. attempts is the number of
// deliveries the message used; cause is the final processing error.
func (d *DeadLetter) Send(ctx context.Context, msg kafka.Message, attempts int, cause error) error {
	causeText := ""
	if cause != nil {
		causeText = cause.Error()
	}
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDeliveryAttempts, Value: []byte(strconv.Itoa(attempts))},
		kafka.Header{Key: HeaderLastError, Value: []byte(causeText)},
		kafka.Header{Key: HeaderOriginPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderDeadLetteredAt, Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)

	writeCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	return d.writer.WriteMessages(writeCtx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
}

// Close closes the writer.
func (d *DeadLetter) Close() error {
	if d == nil || d.writer == nil {
		return nil
	}
	return d.writer.Close()
}

// Replayer re-enters dead-lettered messages at the events topic, keyed by the
// original group so they rejoin their ordering domain. Replay consumption
// uses its own consumer group so a message is not replayed twice.
type Replayer struct {
	consumer *Consumer
	producer *kafka.Writer
}

// NewReplayer creates a replayer reading the dead-letter topic and writing to
// the events topic.
func NewReplayer(brokers []string, dlqTopic, eventsTopic, groupID string) *Replayer {
	return &Replayer{
		consumer: NewConsumer(brokers, dlqTopic, groupID),
		producer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        eventsTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireAll,
		},
	}
}

// ReplayOne moves the next dead-lettered message back onto the events topic.
// Returns the replayed message for operator display. Diagnostic headers are
// stripped so the worker sees a clean redelivery with a fresh retry budget.
func (r *Replayer) ReplayOne(ctx context.Context) (kafka.Message, error) {
	msg, err := r.consumer.Fetch(ctx)
	if err != nil {
		return kafka.Message{}, err
	}

	var headers []kafka.Header
	for _, h := range msg.Headers {
		switch h.Key {
		case HeaderDeliveryAttempts, HeaderLastError, HeaderOriginPartition, HeaderOriginOffset, HeaderDeadLetteredAt:
		default:
			headers = append(headers, h)
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := r.producer.WriteMessages(writeCtx, kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}); err != nil {
		return kafka.Message{}, err
	}
	if err := r.consumer.Commit(ctx, msg); err != nil {
		return kafka.Message{}, err
	}
	return msg, nil
}

// Close closes both ends of the replayer.
func (r *Replayer) Close() error {
	err := r.consumer.Close()
	if werr := r.producer.Close(); err == nil {
		err = werr
	}
	return err
}
