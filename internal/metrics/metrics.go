// Package metrics exposes webhook and grant counters for Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/navikt/stripe-github-access/internal/notify"
)

const namespace = "stripe_github_access"

// Webhook results recorded by ObserveWebhook.
const (
	ResultInvalidPayload   = "invalid_payload"
	ResultInvalidSignature = "invalid_signature"
	ResultIgnored          = "ignored"
	ResultNoUsername       = "no_username"
	ResultProcessed        = "processed"
)

// Metrics counts webhook deliveries and collaborator grants.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	grants   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Stripe webhook deliveries by event type and handling result.",
		}, []string{"type", "result"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Collaborator grant attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.events, m.grants)
	return m
}

// ObserveWebhook counts one delivery. eventType is empty when verification failed.
func (m *Metrics) ObserveWebhook(eventType, result string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType, result).Inc()
}

// Report counts one grant outcome.
func (m *Metrics) Report(_ context.Context, grant notify.Grant) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(string(grant.Outcome)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
