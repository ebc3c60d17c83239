package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/config"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.New())
	require.NoError(t, err)
	cfg.Auth.JWTSecret = "secret"
	cfg.Stripe = config.Stripe{}
	cfg.Payway = config.Payway{}
	return cfg
}

func TestNewRequiresStoreAndSecret(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	cfg.Auth.JWTSecret = ""
	_, err = New(cfg, Deps{Store: repositories.NewMemoryStore()})
	assert.Error(t, err)
}

func TestTransitionTable(t *testing.T) {
	assert.False(t, TransitionTable(config.CancelPolicyStrict).Allows(models.StatusPaid, models.StatusCancelled))
	assert.True(t, TransitionTable(config.CancelPolicyPreShipment).Allows(models.StatusPaid, models.StatusCancelled))
	assert.False(t, TransitionTable(config.CancelPolicyPreShipment).Allows(models.StatusShipped, models.StatusCancelled))
}

func TestNewProviders(t *testing.T) {
	cfg := testConfig(t)
	registry, err := NewProviders(cfg)
	require.NoError(t, err)
	assert.Empty(t, registry.Names())

	cfg.Payway = config.Payway{MerchantID: "ec000002", APIKey: "key", BaseURL: "https://checkout-sandbox.payway.com.kh"}
	cfg.Stripe = config.Stripe{SecretKey: "sk_test_123", WebhookSecret: "whsec_123", Currency: "usd"}
	registry, err = NewProviders(cfg)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.ProviderStripe, models.ProviderPayway}, registry.Names())
}

func TestHealthAndMetrics(t *testing.T) {
	store := repositories.NewMemoryStore()
	a, err := New(testConfig(t), Deps{Store: store, Registry: prometheus.NewRegistry()})
	require.NoError(t, err)

	resp, err := a.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	ctx := context.Background()
	product := &models.Product{Name: "Widget", Price: decimal.NewFromInt(10), Stock: 3}
	require.NoError(t, a.Services.Products.CreateProduct(ctx, product))
	user := &models.User{ID: "u-1", Username: "shopper", Email: "shopper@example.com", Password: "x"}
	require.NoError(t, store.Repositories().Users.Create(ctx, user))
	caller := services.Caller{UserID: user.ID, Role: models.RoleUser}
	order, err := a.Services.Orders.CreateOrder(ctx, caller.UserID, []services.ItemRequest{{ProductID: product.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = a.Services.Orders.PayOrder(ctx, order.ID, caller)
	require.NoError(t, err)

	resp, err = a.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `storefront_order_transitions_total{from="PENDING",to="PAID"} 1`)
}
