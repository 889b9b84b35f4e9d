// Package metrics owns the Prometheus registry and the collectors the API
// exports on /metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smartcampus/campus-api/internal/realtime"
)

// Metrics groups the collectors. Each instance has its own registry so
// tests do not collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	ChatResults *prometheus.CounterVec
	Subscribers prometheus.Gauge
	Changes     *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ChatResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chatbot requests by outcome.",
		}, []string{"outcome"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscribers",
			Help:      "Open realtime subscriptions.",
		}),
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_changes_total",
			Help:      "Row changes published by table.",
		}, []string{"table"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests, m.Latency, m.ChatResults, m.Subscribers, m.Changes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ChatOutcome adapts ChatResults to chat.Proxy.Observe.
func (m *Metrics) ChatOutcome(outcome string) {
	m.ChatResults.WithLabelValues(outcome).Inc()
}

// SetSubscribers adapts Subscribers to realtime.Hub.OnSubscribersChanged.
func (m *Metrics) SetSubscribers(total int) {
	m.Subscribers.Set(float64(total))
}

type countingPublisher struct {
	next    realtime.Publisher
	changes *prometheus.CounterVec
}

func (c countingPublisher) Publish(ctx context.Context, change realtime.Change) error {
	c.changes.WithLabelValues(change.Table).Inc()
	return c.next.Publish(ctx, change)
}

// CountChanges wraps next so every published change is counted by table.
func (m *Metrics) CountChanges(next realtime.Publisher) realtime.Publisher {
	return countingPublisher{next: next, changes: m.Changes}
}
