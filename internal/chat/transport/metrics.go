package transport

import "github.com/prometheus/client_golang/prometheus"

var (
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_frames_dropped_total",
			Help: "Push frames the client could not decode or dispatch.",
		},
		[]string{"reason"},
	)
	pushDials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_push_dials_total",
			Help: "Push channel dial attempts by result.",
		},
		[]string{"result"},
	)
	polls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_polls_total",
			Help: "Message list polls by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(framesDropped, pushDials, polls)
}

func incDropped(reason string) {
	framesDropped.WithLabelValues(reason).Inc()
}

func incDial(result string) {
	pushDials.WithLabelValues(result).Inc()
}

func incPoll(result string) {
	polls.WithLabelValues(result).Inc()
}
