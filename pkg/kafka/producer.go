package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config holds Kafka connection details.
type Config struct {
	Brokers []string
	Topic   string
}

// Producer writes keyed messages to a single topic. Messages with the same
// key land on the same partition, so per-key ordering is preserved.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// Publish writes one message. Headers are attached as-is.
func (p *Producer) Publish(ctx context.Context, key string, body []byte, headers map[string]string) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
