package config_test

import (
	"testing"
	"time"

	"storefront/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	cfg, err := config.Load(v)

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, config.CancelPolicyStrict, cfg.Orders.CancelPolicy)
	assert.Equal(t, "0.1", cfg.Pricing.VATRate.String())
	assert.Equal(t, "500", cfg.Pricing.FreeShippingThreshold.String())
	assert.Equal(t, "5", cfg.Pricing.FlatShipping.String())
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Events.KafkaBrokers)
	assert.False(t, cfg.StripeEnabled())
	assert.False(t, cfg.PaywayEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLITE")
	t.Setenv("ORDERS_CANCEL_POLICY", "pre_shipment")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PAYWAY_MERCHANT_ID", "ec000002")
	t.Setenv("PAYWAY_API_KEY", "secret")
	t.Setenv("PAYMENT_PROVIDER_TIMEOUT", "3s")

	cfg, err := config.Load(config.New())

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, config.CancelPolicyPreShipment, cfg.Orders.CancelPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.PaywayEnabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ORDERS_CANCEL_POLICY":  "whenever",
		"EVENTS_BROKER":         "nats",
		"PRICING_VAT_RATE":      "ten percent",
		"PRICING_FLAT_SHIPPING": "-1",
	}
	for key, value := range cases {
		v := viper.New()
		config.SetDefaults(v)
		v.Set(key, value)

		_, err := config.Load(v)
		assert.Error(t, err, key)
	}
}
