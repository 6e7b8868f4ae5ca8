package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts REST requests by route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "primecare_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "primecare_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// ChatConnections is the number of open websocket clients
	ChatConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "primecare_chat_connections",
			Help: "Open chat websocket connections",
		},
	)

	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "primecare_chat_messages_total",
			Help: "Total chat messages relayed",
		},
		[]string{"sender"},
	)

	// ChatEventsRejected counts inbound websocket events answered with an error event
	ChatEventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "primecare_chat_events_rejected_total",
			Help: "Total chat events rejected",
		},
		[]string{"reason"},
	)

	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "primecare_reminders_total",
			Help: "Unread reply reminder emails by outcome",
		},
		[]string{"outcome"},
	)
)
