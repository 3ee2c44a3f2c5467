package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimdeck",
			Subsystem: "realtime",
			Name:      "events_received_total",
			Help:      "Change envelopes received, by table and event type",
		},
		[]string{"table", "event_type"},
	)

	staleDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimdeck",
			Subsystem: "realtime",
			Name:      "stale_drops_total",
			Help:      "UPDATE events dropped because the cached row was newer",
		},
		[]string{"table"},
	)

	dispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimdeck",
			Subsystem: "realtime",
			Name:      "dispatch_errors_total",
			Help:      "Envelopes that failed to apply to the store",
		},
		[]string{"table"},
	)

	reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "claimdeck",
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Channel reconnect attempts, by table",
		},
		[]string{"table"},
	)

	openChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "claimdeck",
			Subsystem: "realtime",
			Name:      "open_channels",
			Help:      "Websocket channels currently connected",
		},
	)
)
