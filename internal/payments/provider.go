// Package payments adapts external payment gateways to a single provider
// interface with a normalized outcome vocabulary.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"storefront/internal/apperrors"
	"storefront/internal/models"
)

// InitiateOptions carries caller-selected provider options.
type InitiateOptions struct {
	Currency      string
	PaymentOption string
	// ItemNames maps product ids to display names for providers that show line items.
	ItemNames map[string]string
}

// Payload is what the client needs to complete a payment with the provider.
type Payload struct {
	Provider      string `json:"provider"`
	TransactionID string `json:"transaction_id"`
	ClientSecret  string `json:"client_secret,omitempty"`
	CheckoutHTML  string `json:"checkout_html,omitempty"`
}

func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment payload: %w", err)
	}
	return string(b), nil
}

func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode payment payload: %w", err)
	}
	return p, nil
}

// Transaction is a provider-side transaction created for an order.
type Transaction struct {
	ID       string
	Currency string
	Payload  Payload
}

// Notification is a verified provider callback, reduced to what reconciliation needs.
type Notification struct {
	OrderID       string
	TransactionID string
	Outcome       models.PaymentOutcome
	// Ignored is set for authentic notifications that carry no payment outcome.
	Ignored bool
}

// Provider is implemented once per payment gateway.
type Provider interface {
	Name() string
	// Initiate creates a provider transaction for a PENDING order with a positive total.
	Initiate(ctx context.Context, order *models.Order, opts InitiateOptions) (*Transaction, error)
	// Verify asks the provider for the authoritative status of a transaction.
	Verify(ctx context.Context, transactionID string) (models.PaymentOutcome, error)
	// HandleCallback authenticates a raw notification. It returns an InvalidSignature
	// error before interpreting any field of an unauthenticated payload.
	HandleCallback(raw []byte, signature string) (*Notification, error)
}

// SandboxProvider is implemented by providers that can report whether they talk to a test environment.
type SandboxProvider interface {
	Sandbox() bool
}

// Registry resolves providers by name.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperrors.BadRequest(fmt.Sprintf("unsupported payment provider %q", name))
	}
	return p, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
