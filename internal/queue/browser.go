package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Entry is an operator-facing view of one dead-lettered message.
type Entry struct {
	EventID        string
	GroupID        string
	Attempts       string
	LastError      string
	DeadLetteredAt string
	Partition      int
	Offset         int64
}

// Browser enumerates the dead-letter topic without consuming it, so repeated
// listings show the same backlog.
type Browser struct {
	brokers []string
	topic   string
}

// NewBrowser creates a browser for the given dead-letter topic.
func NewBrowser(brokers []string, topic string) *Browser {
	return &Browser{brokers: brokers, topic: topic}
}

// List reads up to limit messages per partition from the start of the topic.
func (b *Browser) List(ctx context.Context, limit int) ([]Entry, error) {
	if len(b.brokers) == 0 {
		return nil, fmt.Errorf("dlq browser: no brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", b.brokers[0])
	if err != nil {
		return nil, fmt.Errorf("dlq browser: dial: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(b.topic)
	if err != nil {
		return nil, fmt.Errorf("dlq browser: partitions: %w", err)
	}

	var out []Entry
	for _, p := range partitions {
		entries, err := b.listPartition(ctx, p.ID, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func (b *Browser) listPartition(ctx context.Context, partition, limit int) ([]Entry, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   b.brokers,
		Topic:     b.topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   500 * time.Millisecond,
	})
	defer reader.Close()

	if err := reader.SetOffset(kafka.FirstOffset); err != nil {
		return nil, fmt.Errorf("dlq browser: offset: %w", err)
	}

	var out []Entry
	for len(out) < limit {
		readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		msg, err := reader.ReadMessage(readCtx)
		cancel()
		if err != nil {
			// Timeout means the partition backlog is drained.
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			break
		}
		out = append(out, Entry{
			EventID:        HeaderValue(msg, HeaderEventID),
			GroupID:        string(msg.Key),
			Attempts:       HeaderValue(msg, HeaderDeliveryAttempts),
			LastError:      HeaderValue(msg, HeaderLastError),
			DeadLetteredAt: HeaderValue(msg, HeaderDeadLetteredAt),
			Partition:      msg.Partition,
			Offset:         msg.Offset,
		})
	}
	return out, nil
}
