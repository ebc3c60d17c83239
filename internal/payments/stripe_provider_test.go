package payments

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const testWebhookSecret = "whsec_test_secret"

type intentsMock struct {
	mock.Mock
}

func (m *intentsMock) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(params)
	intent, _ := args.Get(0).(*stripe.PaymentIntent)
	return intent, args.Error(1)
}

func (m *intentsMock) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	args := m.Called(id, params)
	intent, _ := args.Get(0).(*stripe.PaymentIntent)
	return intent, args.Error(1)
}

func newStripeForTest(t *testing.T, intents *intentsMock) *StripeProvider {
	t.Helper()
	p, err := NewStripeProvider(StripeConfig{WebhookSecret: testWebhookSecret, Intents: intents})
	require.NoError(t, err)
	return p
}

func TestStripeInitiate(t *testing.T) {
	intents := new(intentsMock)
	p := newStripeForTest(t, intents)
	order := &models.Order{ID: "order-1", UserID: "user-1", TotalAmount: decimal.RequireFromString("203.00")}

	intents.On("New", mock.MatchedBy(func(params *stripe.PaymentIntentParams) bool {
		return *params.Amount == 20300 && *params.Currency == "usd" && params.Metadata["orderId"] == "order-1"
	})).Return(&stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil).Once()

	tx, err := p.Initiate(context.Background(), order, InitiateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "pi_123", tx.ID)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, "pi_123_secret", tx.Payload.ClientSecret)
	intents.AssertExpectations(t)
}

func TestStripeInitiateRejectsZeroTotal(t *testing.T) {
	intents := new(intentsMock)
	p := newStripeForTest(t, intents)

	_, err := p.Initiate(context.Background(), &models.Order{ID: "order-1"}, InitiateOptions{})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	intents.AssertNotCalled(t, "New", mock.Anything)
}

func TestStripeInitiateProviderError(t *testing.T) {
	intents := new(intentsMock)
	p := newStripeForTest(t, intents)
	intents.On("New", mock.Anything).Return(nil, errors.New("connection reset")).Once()

	_, err := p.Initiate(context.Background(), &models.Order{ID: "o", TotalAmount: decimal.NewFromInt(10)}, InitiateOptions{})

	assert.ErrorIs(t, err, apperrors.ErrProviderUnavailable)
}

func TestStripeVerifyMapsStatuses(t *testing.T) {
	cases := map[stripe.PaymentIntentStatus]models.PaymentOutcome{
		stripe.PaymentIntentStatusSucceeded:             models.OutcomeApproved,
		stripe.PaymentIntentStatusCanceled:              models.OutcomeFailed,
		stripe.PaymentIntentStatusProcessing:            models.OutcomePending,
		stripe.PaymentIntentStatusRequiresPaymentMethod: models.OutcomePending,
	}
	for status, want := range cases {
		intents := new(intentsMock)
		p := newStripeForTest(t, intents)
		intents.On("Get", "pi_1", mock.Anything).Return(&stripe.PaymentIntent{ID: "pi_1", Status: status}, nil).Once()

		got, err := p.Verify(context.Background(), "pi_1")

		require.NoError(t, err)
		assert.Equal(t, want, got, string(status))
	}
}

func signedStripeEvent(t *testing.T, payload string) (body []byte, header string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestStripeCallbackSucceeded(t *testing.T) {
	p := newStripeForTest(t, new(intentsMock))
	body, header := signedStripeEvent(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded",
		"data":{"object":{"id":"pi_9","object":"payment_intent","status":"succeeded","metadata":{"orderId":"order-9"}}}}`)

	n, err := p.HandleCallback(body, header)

	require.NoError(t, err)
	assert.Equal(t, "order-9", n.OrderID)
	assert.Equal(t, "pi_9", n.TransactionID)
	assert.Equal(t, models.OutcomeApproved, n.Outcome)
	assert.False(t, n.Ignored)
}

func TestStripeCallbackFailedAndIgnored(t *testing.T) {
	p := newStripeForTest(t, new(intentsMock))

	body, header := signedStripeEvent(t, `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed",
		"data":{"object":{"id":"pi_2","object":"payment_intent","metadata":{"orderId":"order-2"}}}}`)
	n, err := p.HandleCallback(body, header)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, n.Outcome)

	body, header = signedStripeEvent(t, `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{}}}`)
	n, err = p.HandleCallback(body, header)
	require.NoError(t, err)
	assert.True(t, n.Ignored)
}

func TestStripeCallbackRejectsBadSignature(t *testing.T) {
	p := newStripeForTest(t, new(intentsMock))
	body, header := signedStripeEvent(t, `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9"}}}`)

	_, err := p.HandleCallback(append(body, ' '), header)
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	_, err = p.HandleCallback(body, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestNewStripeProviderRequiresSecrets(t *testing.T) {
	_, err := NewStripeProvider(StripeConfig{WebhookSecret: "whsec"})
	assert.Error(t, err)

	_, err = NewStripeProvider(StripeConfig{SecretKey: "sk_test"})
	assert.Error(t, err)
}
