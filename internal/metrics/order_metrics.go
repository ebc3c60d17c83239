package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics holds the collectors for the order lifecycle and payment reconciliation.
type OrderMetrics struct {
	transitions       *prometheus.CounterVec
	transitionsFailed *prometheus.CounterVec
	callbacks         *prometheus.CounterVec
	providerLatency   *prometheus.HistogramVec
	stockReleased     prometheus.Counter
}

// NewOrderMetrics registers the collectors with the default registerer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		transitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order status transitions applied, by source and target status",
		}, []string{"from", "to"}),
		transitionsFailed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transitions_failed_total",
			Help: "Order status transitions rejected, by target status and error kind",
		}, []string{"to", "reason"}),
		callbacks: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_payment_callbacks_total",
			Help: "Payment provider notifications received, by provider and result",
		}, []string{"provider", "result"}),
		providerLatency: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_payment_provider_request_seconds",
			Help:    "Latency of outbound payment provider calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation", "outcome"}),
		stockReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_releases_total",
			Help: "Reservations returned to stock by cancellation or deletion",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// A nil *OrderMetrics is valid and records nothing.

func (m *OrderMetrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *OrderMetrics) RecordTransitionFailed(to, reason string) {
	if m == nil {
		return
	}
	m.transitionsFailed.WithLabelValues(to, reason).Inc()
}

func (m *OrderMetrics) RecordCallback(provider, result string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(provider, result).Inc()
}

func (m *OrderMetrics) RecordProviderCall(provider, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.providerLatency.WithLabelValues(provider, operation, outcome).Observe(duration.Seconds())
}

func (m *OrderMetrics) RecordStockReleased() {
	if m == nil {
		return
	}
	m.stockReleased.Inc()
}
