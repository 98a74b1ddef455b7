// Package metrics provides Prometheus metrics for the voluntrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SocketConnections tracks the number of open websocket connections.
	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "voluntrack_socket_connections",
			Help: "Number of currently open chat websocket connections",
		},
	)

	// SocketEvents counts socket events received from clients.
	SocketEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voluntrack_socket_events_total",
			Help: "Total number of socket events received, by event name",
		},
		[]string{"event"},
	)

	// ChatMessages counts messages persisted, by store backend.
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voluntrack_chat_messages_total",
			Help: "Total number of chat messages persisted",
		},
		[]string{"backend"},
	)

	// ChatStoreDuration tracks conversation store operation latency.
	ChatStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voluntrack_chat_store_duration_seconds",
			Help:    "Duration of conversation store operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
		[]string{"backend", "operation"},
	)

	// SyncRefreshes counts chat session refreshes by trigger.
	SyncRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voluntrack_chat_sync_refreshes_total",
			Help: "Total number of chat session refreshes, by trigger",
		},
		[]string{"trigger"},
	)

	// OTPVerifications counts password reset code checks by outcome.
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voluntrack_otp_verifications_total",
			Help: "Total number of password reset code verifications, by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordSocketOpened increments the open connection gauge.
func RecordSocketOpened() {
	SocketConnections.Inc()
}

// RecordSocketClosed decrements the open connection gauge.
func RecordSocketClosed() {
	SocketConnections.Dec()
}
