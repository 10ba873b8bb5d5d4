package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Coordinator-side protocol counters. Registered on the default
// registry, exposed by the monitoring server when metrics are on.
var (
	Rooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Name:      "rooms",
		Help:      "Number of rooms with at least one participant.",
	})
	Participants = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "parley",
		Name:      "participants",
		Help:      "Number of connected participants in rooms.",
	})
	RelayedPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "relayed_packets_total",
		Help:      "Negotiation packets relayed between participants.",
	}, []string{"type"})
	RoutingMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "parley",
		Name:      "routing_misses_total",
		Help:      "Relayed packets dropped due to a gone target.",
	})
)

// Agent-side telemetry gauges, labeled by remote peer id.
var (
	PeerBitrate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "agent",
		Name:      "peer_bitrate_kbps",
		Help:      "Inbound bitrate per connected peer.",
	}, []string{"peer"})
	PeerRTT = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "parley",
		Subsystem: "agent",
		Name:      "peer_rtt_seconds",
		Help:      "Round-trip time per connected peer.",
	}, []string{"peer"})
)
