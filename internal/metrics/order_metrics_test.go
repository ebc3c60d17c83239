package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetrics_Records(t *testing.T) {
	m := NewOrderMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordTransition("PENDING", "PAID")
	m.RecordTransition("PENDING", "PAID")
	m.RecordTransitionFailed("PAID", "insufficient_stock")
	m.RecordCallback("payway", "paid")
	m.RecordProviderCall("stripe", "initiate", errors.New("timeout"), 20*time.Millisecond)
	m.RecordStockReleased()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("PENDING", "PAID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsFailed.WithLabelValues("PAID", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callbacks.WithLabelValues("payway", "paid")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.providerLatency))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockReleased))
}

func TestOrderMetrics_ReuseExistingCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(registry)
	second := NewOrderMetricsWithRegisterer(registry)

	first.RecordStockReleased()
	second.RecordStockReleased()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.stockReleased))
}

func TestOrderMetrics_NilIsNoop(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.RecordTransition("PENDING", "PAID")
		m.RecordCallback("stripe", "invalid_signature")
		m.RecordProviderCall("stripe", "verify", nil, time.Millisecond)
	})
}
