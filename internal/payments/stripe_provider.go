package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeConfig configures the card provider.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	Backends      *stripe.Backends
	// Intents overrides the PaymentIntents client; used by tests.
	Intents stripePaymentIntentAPI
}

// StripeProvider takes card payments through Stripe PaymentIntents.
type StripeProvider struct {
	intents       stripePaymentIntentAPI
	webhookSecret string
	currency      string
	timeout       time.Duration
}

func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	intents := cfg.Intents
	if intents == nil {
		intents = client.New(key, cfg.Backends).PaymentIntents
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StripeProvider{
		intents:       intents,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		timeout:       timeout,
	}, nil
}

func (p *StripeProvider) Name() string { return models.ProviderStripe }

// minorUnits converts a 2-decimal amount to cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (p *StripeProvider) Initiate(ctx context.Context, order *models.Order, opts InitiateOptions) (*Transaction, error) {
	amount := minorUnits(order.TotalAmount)
	if amount <= 0 {
		return nil, apperrors.Validation("order total must be positive to start a payment")
	}
	currency := p.currency
	if opts.Currency != "" {
		currency = strings.ToLower(opts.Currency)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("orderId", order.ID)
	params.AddMetadata("userId", order.UserID)

	intent, err := p.intents.New(params)
	if err != nil {
		return nil, apperrors.ProviderUnavailable(p.Name(), err)
	}

	return &Transaction{
		ID:       intent.ID,
		Currency: strings.ToUpper(currency),
		Payload: Payload{
			Provider:      p.Name(),
			TransactionID: intent.ID,
			ClientSecret:  intent.ClientSecret,
		},
	}, nil
}

func (p *StripeProvider) Verify(ctx context.Context, transactionID string) (models.PaymentOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.intents.Get(transactionID, params)
	if err != nil {
		return "", apperrors.ProviderUnavailable(p.Name(), err)
	}
	return stripeOutcome(intent.Status), nil
}

func stripeOutcome(status stripe.PaymentIntentStatus) models.PaymentOutcome {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.OutcomeApproved
	case stripe.PaymentIntentStatusCanceled:
		return models.OutcomeFailed
	default:
		return models.OutcomePending
	}
}

func (p *StripeProvider) HandleCallback(raw []byte, signature string) (*Notification, error) {
	event, err := webhook.ConstructEventWithOptions(raw, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, apperrors.InvalidSignature(p.Name())
	}

	var outcome models.PaymentOutcome
	switch string(event.Type) {
	case "payment_intent.succeeded":
		outcome = models.OutcomeApproved
	case "payment_intent.payment_failed", "payment_intent.canceled":
		outcome = models.OutcomeFailed
	default:
		return &Notification{Ignored: true}, nil
	}
	if event.Data == nil {
		return nil, apperrors.Validation("stripe event has no data")
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, apperrors.Validation("stripe event carries an unreadable payment intent")
	}
	return &Notification{
		OrderID:       intent.Metadata["orderId"],
		TransactionID: intent.ID,
		Outcome:       outcome,
	}, nil
}
