// Package redpanda publishes job lifecycle events to a Redpanda/Kafka
// topic so downstream consumers (notifications, analytics) can observe
// status transitions without polling the database.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/ai-video-generator/internal/domain"
)

// Producer wraps a Kafka producer and implements domain.EventPublisher.
// Publishing is fire-and-forget best-effort: job state lives in Postgres,
// the stream is an observer channel only.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer against the given seed brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=events.NewProducer: no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
	)
	if err != nil {
		return nil, fmt.Errorf("op=events.NewProducer: %w", err)
	}
	slog.Info("event producer created", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &Producer{client: client, topic: topic}, nil
}

// PublishJobEvent produces one event keyed by job id so per-job ordering
// is preserved within a partition.
func (p *Producer) PublishJobEvent(ctx context.Context, ev domain.JobEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.JobID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "job_id", Value: []byte(ev.JobID)},
			{Key: "status", Value: []byte(ev.To)},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("op=events.publish: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// Noop is an EventPublisher that drops every event. Used when no brokers
// are configured.
type Noop struct{}

// PublishJobEvent discards the event.
func (Noop) PublishJobEvent(context.Context, domain.JobEvent) error { return nil }
