package queue

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Producer publishes keyed messages to a single topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{writer: w}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// MultiProducer routes messages to per-topic writers; the outbox worker
// uses it because outbox rows carry their destination topic.
type MultiProducer struct {
	brokers   []string
	producers map[string]*Producer
}

func NewMultiProducer(brokers []string) *MultiProducer {
	return &MultiProducer{
		brokers:   brokers,
		producers: make(map[string]*Producer),
	}
}

func (m *MultiProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p, ok := m.producers[topic]
	if !ok {
		p = NewProducer(m.brokers, topic)
		m.producers[topic] = p
	}
	return p.Publish(ctx, key, value)
}

func (m *MultiProducer) Close() error {
	var firstErr error
	for _, p := range m.producers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewReader builds a consumer-group reader for one topic.
func NewReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}
