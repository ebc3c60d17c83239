// Package events defines the order events emitted after a change commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
)

// Type names an event. It doubles as the AMQP routing key.
type Type string

const (
	OrderCreated       Type = "order.created"
	OrderUpdated       Type = "order.updated"
	OrderStatusChanged Type = "order.status_changed"
	OrderDeleted       Type = "order.deleted"
	PaymentInitiated   Type = "payment.initiated"
)

// Event is the wire shape of every published event.
type Event struct {
	Type           Type      `json:"type"`
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Total          string    `json:"total,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// ForOrder builds an event carrying the order's current state.
func ForOrder(t Type, order *models.Order) Event {
	return Event{
		Type:       t,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.TotalAmount.StringFixed(2),
		OccurredAt: time.Now().UTC(),
	}
}

func Decode(body []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	if evt.Type == "" || evt.OrderID == "" {
		return Event{}, fmt.Errorf("event is missing type or order id")
	}
	return evt, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
