package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts inbound gateway callbacks and their handling outcome.
type WebhookMetrics struct {
	received *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook counters on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_callbacks_received",
		Help: "Inbound gateway callbacks by endpoint.",
	}, []string{"endpoint"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_callback_outcomes",
		Help: "Gateway callback processing outcomes by endpoint.",
	}, []string{"endpoint", "outcome"})
	reg.MustRegister(received, outcomes)
	return &WebhookMetrics{received: received, outcomes: outcomes}
}

// IncReceived counts one inbound callback on the named endpoint.
func (m *WebhookMetrics) IncReceived(endpoint string) {
	if m == nil || m.received == nil {
		return
	}
	m.received.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

// IncOutcome counts one processing outcome (processed, rejected, failed,
// duplicate) on the named endpoint.
func (m *WebhookMetrics) IncOutcome(endpoint, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Inc()
}
