package events

import (
	"context"
	"encoding/json"
	"fmt"
)

type amqpBroker interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
	Close() error
}

type kafkaBroker interface {
	Publish(ctx context.Context, key string, body []byte, headers map[string]string) error
	Close() error
}

// AMQPPublisher routes events by type through a topic exchange.
type AMQPPublisher struct {
	broker amqpBroker
}

func NewAMQPPublisher(broker amqpBroker) *AMQPPublisher {
	return &AMQPPublisher{broker: broker}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.broker.Publish(ctx, string(event.Type), body)
}

func (p *AMQPPublisher) Close() error { return p.broker.Close() }

// KafkaPublisher keys events by order id so one order's events stay in order.
type KafkaPublisher struct {
	broker kafkaBroker
}

func NewKafkaPublisher(broker kafkaBroker) *KafkaPublisher {
	return &KafkaPublisher{broker: broker}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.broker.Publish(ctx, event.OrderID, body, map[string]string{"event_type": string(event.Type)})
}

func (p *KafkaPublisher) Close() error { return p.broker.Close() }
