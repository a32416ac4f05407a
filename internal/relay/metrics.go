package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulsefeed_connected_clients",
		Help: "Number of websocket clients currently attached to the relay.",
	})

	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulsefeed_active_rooms",
		Help: "Number of rooms with at least one member.",
	})

	framesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsefeed_frames_relayed_total",
		Help: "Frames accepted from publishers and fanned out.",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulsefeed_frames_dropped_total",
		Help: "Malformed or unroutable frames dropped by the relay.",
	})
)
