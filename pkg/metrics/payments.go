package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the payment counters.
const (
	OutcomeCreated     = "created"
	OutcomeAlreadyPaid = "already_paid"
	OutcomeRejected    = "rejected"
	OutcomeProviderErr = "provider_error"
	OutcomeStoreErr    = "store_error"
	OutcomeConflict    = "conflict"

	OutcomeApplied   = "applied"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
	OutcomeInvalid   = "invalid_signature"
	OutcomeFailed    = "failed"
)

// PaymentMetrics records charge, source and webhook outcomes.
type PaymentMetrics struct {
	charges          *prometheus.CounterVec
	sources          *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	charges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_charges_total",
		Help: "Charge creation attempts by outcome.",
	}, []string{"outcome"})
	sources := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_sources_total",
		Help: "Source creation attempts by outcome.",
	}, []string{"outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_webhook_events_total",
		Help: "Provider webhook deliveries by outcome.",
	}, []string{"outcome"})
	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payments_provider_request_duration_seconds",
		Help:    "Latency of payment provider API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(charges, sources, webhooks, providerDuration)
	return &PaymentMetrics{
		charges:          charges,
		sources:          sources,
		webhooks:         webhooks,
		providerDuration: providerDuration,
	}
}

func (m *PaymentMetrics) IncCharge(outcome string) {
	if m == nil || m.charges == nil {
		return
	}
	m.charges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncSource(outcome string) {
	if m == nil || m.sources == nil {
		return
	}
	m.sources.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveProviderCall records the duration of a provider API call.
func (m *PaymentMetrics) ObserveProviderCall(operation string, duration time.Duration) {
	if m == nil || m.providerDuration == nil {
		return
	}
	m.providerDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
