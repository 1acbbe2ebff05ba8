package observability

import (
	"net/http"

	"github.com/adred-codev/irmo/netproto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every prometheus collector the protocol engine and
// transport driver report through. Grounded in the teacher's metrics.go
// collector set, renamed to the irmo_ namespace and re-scoped to the
// replication protocol's own concerns (peer state, atoms, retransmits,
// congestion window) instead of WebSocket connection counts.
// ObserveServer, ObservePeer and the host-stats reporter set the gauges;
// the AtomsSent, AtomsReceived, Retransmits, PacketsVerified and
// PacketsDropped counters are registered but nothing in this module
// increments them.
type Metrics struct {
	PeersByState    *prometheus.GaugeVec
	AtomsSent       *prometheus.CounterVec
	AtomsReceived   *prometheus.CounterVec
	Retransmits     prometheus.Counter
	PacketsVerified prometheus.Counter
	PacketsDropped  prometheus.Counter
	SendQueueDepth  *prometheus.GaugeVec
	Cwnd            *prometheus.GaugeVec
	Ssthresh        *prometheus.GaugeVec
	Backoff         *prometheus.GaugeVec
	HostCPUPercent  prometheus.Gauge
	HostMemoryBytes prometheus.Gauge
}

// NewMetrics constructs and registers every collector against reg.
// Passing prometheus.NewRegistry() (rather than the global default
// registry) keeps tests hermetic.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PeersByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irmo_peers",
			Help: "Number of peers currently in each connection state.",
		}, []string{"vhost", "state"}),
		AtomsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irmo_atoms_sent_total",
			Help: "Total atoms placed on the wire, by kind.",
		}, []string{"kind"}),
		AtomsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "irmo_atoms_received_total",
			Help: "Total atoms decoded from inbound packets, by kind.",
		}, []string{"kind"}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irmo_retransmits_total",
			Help: "Total packets resent after a stale-span timeout.",
		}),
		PacketsVerified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irmo_packets_verified_total",
			Help: "Total inbound packets that passed atom verification.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "irmo_packets_dropped_total",
			Help: "Total inbound packets dropped (failed verification or unknown peer).",
		}),
		SendQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irmo_sendqueue_depth",
			Help: "Atoms queued per peer awaiting entry into the send window (unbounded by design).",
		}, []string{"peer"}),
		Cwnd: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irmo_cwnd_bytes",
			Help: "Current congestion window, in bytes, per peer.",
		}, []string{"peer"}),
		Ssthresh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irmo_ssthresh_bytes",
			Help: "Current slow-start threshold, in bytes, per peer.",
		}, []string{"peer"}),
		Backoff: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "irmo_backoff",
			Help: "Current retransmit backoff multiplier per peer.",
		}, []string{"peer"}),
		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irmo_host_cpu_percent",
			Help: "Process CPU utilisation percentage, as reported by gopsutil.",
		}),
		HostMemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "irmo_host_memory_bytes",
			Help: "Process resident memory, in bytes, as reported by gopsutil.",
		}),
	}
	reg.MustRegister(
		m.PeersByState, m.AtomsSent, m.AtomsReceived, m.Retransmits,
		m.PacketsVerified, m.PacketsDropped, m.SendQueueDepth,
		m.Cwnd, m.Ssthresh, m.Backoff, m.HostCPUPercent, m.HostMemoryBytes,
	)
	return m
}

// ObservePeer records the per-peer gauges (send queue depth, congestion
// window, ssthresh, backoff) for one peer, keyed by its address string.
func (m *Metrics) ObservePeer(addr string, p *netproto.Peer) {
	m.SendQueueDepth.WithLabelValues(addr).Set(float64(p.SendQueueDepth()))
	m.Cwnd.WithLabelValues(addr).Set(float64(p.Cwnd()))
	m.Ssthresh.WithLabelValues(addr).Set(float64(p.Ssthresh()))
	m.Backoff.WithLabelValues(addr).Set(float64(p.Backoff()))
}

// ObserveServer records peers-by-state for every peer a server tracks.
func (m *Metrics) ObserveServer(vhost string, srv *netproto.Server) {
	counts := map[netproto.State]int{}
	srv.ForEachPeer(func(addr string, p *netproto.Peer) {
		counts[p.State()]++
		m.ObservePeer(addr, p)
	})
	for _, st := range []netproto.State{
		netproto.StateHandshaking, netproto.StateConnected,
		netproto.StateDisconnecting, netproto.StateDisconnected,
	} {
		m.PeersByState.WithLabelValues(vhost, st.String()).Set(float64(counts[st]))
	}
}

// Handler returns an http.Handler serving the registry in Prometheus
// exposition format, for mounting at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
