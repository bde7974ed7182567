package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Current number of authenticated websocket connections.",
		},
	)
	wsRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_rooms",
			Help: "Current number of conversation rooms on this instance.",
		},
	)
	wsMessagesDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_frames_delivered_total",
			Help: "Total frames queued to websocket clients.",
		},
	)
	wsHandshakeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_handshake_failures_total",
			Help: "Connections closed because the auth frame was missing or rejected.",
		},
	)
	wsTypingRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_typing_relayed_total",
			Help: "Typing frames relayed to other participants.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsRooms, wsMessagesDelivered, wsHandshakeFailures, wsTypingRelayed)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func setRooms(count int) {
	wsRooms.Set(float64(count))
}

func addDelivered(count int) {
	wsMessagesDelivered.Add(float64(count))
}

func incHandshakeFailures() {
	wsHandshakeFailures.Inc()
}

func incTypingRelayed() {
	wsTypingRelayed.Inc()
}
