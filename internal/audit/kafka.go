package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes audit events to a Kafka topic. Production is
// fire-and-forget with an error callback into the caller's logger; audit
// delivery must never block a credential operation.
type KafkaSink struct {
	client  *kgo.Client
	topic   string
	onError func(error)
}

// KafkaSinkOption configures a KafkaSink.
type KafkaSinkOption func(*KafkaSink)

// WithErrorHandler installs a callback for async produce failures.
func WithErrorHandler(fn func(error)) KafkaSinkOption {
	return func(s *KafkaSink) {
		if fn != nil {
			s.onError = fn
		}
	}
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string, opts ...KafkaSinkOption) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist; anything else is surfaced at first produce.
		_ = err
	}

	s := &KafkaSink{client: client, topic: topic, onError: func(error) {}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *KafkaSink) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.Action),
		Value: value,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.onError(fmt.Errorf("produce audit event: %w", err))
		}
	})
	return nil
}

// Close flushes pending events and releases the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush audit events: %w", err)
	}
	s.client.Close()
	return nil
}
