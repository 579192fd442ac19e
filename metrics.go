package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the chat server, scraped from the monitoring HTTP
// listener's /metrics endpoint.
var (
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "Total number of TCP connections accepted",
	})

	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_active",
		Help: "Current number of live chat sessions",
	})

	connectionsMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connections_max",
		Help: "Configured maximum concurrent connections",
	})

	connectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_connections_rejected_total",
		Help: "Connections rejected before negotiation, by reason",
	}, []string{"reason"})

	disconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_disconnects_total",
		Help: "Session terminations by reason",
	}, []string{"reason"})

	sessionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_session_duration_seconds",
		Help:    "Session lifetime from accept to cleanup",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	})

	messagesBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_broadcast_total",
		Help: "Messages admitted and routed to a room",
	})

	messagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_delivered_total",
		Help: "Per-recipient message deliveries enqueued",
	})

	messagesRateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_rate_limited_total",
		Help: "Messages dropped by the per-session rate limiter",
	})

	messagesOversized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_oversized_total",
		Help: "Messages rejected for exceeding the size limit",
	})
)

func init() {
	prometheus.MustRegister(
		connectionsTotal,
		connectionsActive,
		connectionsMax,
		connectionsRejected,
		disconnectsTotal,
		sessionDuration,
		messagesBroadcast,
		messagesDelivered,
		messagesRateLimited,
		messagesOversized,
	)
}

// promMetrics feeds engine counters into Prometheus. It implements
// chat.Metrics.
type promMetrics struct{}

func (promMetrics) SessionOpened() {
	connectionsTotal.Inc()
	connectionsActive.Inc()
}

func (promMetrics) SessionClosed(reason string, duration time.Duration) {
	connectionsActive.Dec()
	disconnectsTotal.WithLabelValues(reason).Inc()
	sessionDuration.Observe(duration.Seconds())
}

func (promMetrics) MessageBroadcast(recipients int) {
	messagesBroadcast.Inc()
	messagesDelivered.Add(float64(recipients))
}

func (promMetrics) MessageRateLimited() {
	messagesRateLimited.Inc()
}

func (promMetrics) MessageOversized() {
	messagesOversized.Inc()
}
