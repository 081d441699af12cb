// Package metrics exposes Prometheus collectors for the chat relay:
// connection gauges, message counters, and delivery failure counters.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	connectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipchat_connected_clients",
			Help: "Number of currently connected chat clients.",
		},
	)

	chatMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipchat_chat_messages_total",
			Help: "Chat messages accepted into the shared history.",
		},
	)

	eventsDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipchat_events_delivered_total",
			Help: "Outbound events successfully handed to a client send buffer.",
		},
	)

	sendFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ipchat_send_failures_total",
			Help: "Outbound deliveries dropped because the client was closed or slow.",
		},
	)

	historySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ipchat_history_size",
			Help: "Messages currently held in the bounded history buffer.",
		},
	)
)

// MustRegister registers all collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			connectedClients,
			chatMessagesTotal,
			eventsDeliveredTotal,
			sendFailuresTotal,
			historySize,
		)
	})
}

// SetConnectedClients records the current number of registered sessions.
func SetConnectedClients(n int) { connectedClients.Set(float64(n)) }

// IncChatMessages counts a chat message appended to the history buffer.
func IncChatMessages() { chatMessagesTotal.Inc() }

// IncDelivered counts a successful outbound delivery.
func IncDelivered() { eventsDeliveredTotal.Inc() }

// IncSendFailure counts a dropped outbound delivery.
func IncSendFailure() { sendFailuresTotal.Inc() }

// SetHistorySize records the number of messages retained in history.
func SetHistorySize(n int) { historySize.Set(float64(n)) }
