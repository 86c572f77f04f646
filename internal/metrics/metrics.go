package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the service collectors. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesSent        prometheus.Counter
	SendFailures        prometheus.Counter
	InboxLoadFailures   prometheus.Counter
	LiveSubscriptions   prometheus.Gauge
	LiveEventsDelivered prometheus.Counter
	LiveEventsDropped   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rental", Name: "messages_sent_total",
			Help: "Messages stored through the send endpoint.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rental", Name: "message_send_failures_total",
			Help: "Message inserts rejected by the database.",
		}),
		InboxLoadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rental", Name: "inbox_load_failures_total",
			Help: "Inbox loads that ended in the error state.",
		}),
		LiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rental", Name: "live_subscriptions_active",
			Help: "Open live thread subscriptions.",
		}),
		LiveEventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rental", Name: "live_events_delivered_total",
			Help: "Insert events handed to subscribers.",
		}),
		LiveEventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rental", Name: "live_events_dropped_total",
			Help: "Insert events dropped because a subscriber buffer was full.",
		}),
	}
	m.Registry.MustRegister(
		m.MessagesSent,
		m.SendFailures,
		m.InboxLoadFailures,
		m.LiveSubscriptions,
		m.LiveEventsDelivered,
		m.LiveEventsDropped,
		collectors.NewGoCollector(),
	)
	return m
}
