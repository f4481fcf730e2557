// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TelegramCallsTotal tracks calls into the Telegram account.
	TelegramCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_calls_total",
			Help: "Total calls to the Telegram API",
		},
		[]string{"operation", "result"},
	)

	// TelegramConnected is 1 while the client session is running.
	TelegramConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telegram_connected",
			Help: "Whether the Telegram client is connected",
		},
	)

	// MirroredRecordsTotal tracks chats and messages written to the store.
	MirroredRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirrored_records_total",
			Help: "Total chat and message records mirrored into the database",
		},
		[]string{"kind", "result"},
	)

	// WebSocketConnectionsActive tracks open echo sockets.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTelegramCall counts one Telegram operation.
func RecordTelegramCall(operation string, err error) {
	TelegramCallsTotal.WithLabelValues(operation, result(err)).Inc()
}

// RecordMirrored counts one mirrored record of kind "chat" or "message".
func RecordMirrored(kind string, err error) {
	MirroredRecordsTotal.WithLabelValues(kind, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
