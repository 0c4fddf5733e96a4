// Package metrics exports go-gbn session metrics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-gbn/gbn"
)

const namespace = "gbn"

var sessionStates = []gbn.State{
	gbn.StateInit,
	gbn.StateSynSent,
	gbn.StateAwaitSyn,
	gbn.StateEstablished,
	gbn.StateTransfer,
	gbn.StateClosed,
}

type counterDesc struct {
	desc  *prometheus.Desc
	value func(m *gbn.SessionMetrics) uint64
}

// SessionCollector is a prometheus.Collector reading one session's metrics.
// Every sample carries a constant "role" label.
type SessionCollector struct {
	metrics *gbn.SessionMetrics

	counters   []counterDesc
	windowBase *prometheus.Desc
	curAck     *prometheus.Desc
	state      *prometheus.Desc
}

var _ prometheus.Collector = (*SessionCollector)(nil)

// NewSessionCollector creates a collector for m, labeled with role.
func NewSessionCollector(role gbn.Role, m *gbn.SessionMetrics) *SessionCollector {
	labels := prometheus.Labels{"role": role.String()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "session", name), help, variable, labels)
	}
	counter := func(name, help string, value func(m *gbn.SessionMetrics) uint64) counterDesc {
		return counterDesc{desc: desc(name, help), value: value}
	}

	return &SessionCollector{
		metrics: m,
		counters: []counterDesc{
			counter("packets_sent_total", "Packets written to the endpoint.",
				func(m *gbn.SessionMetrics) uint64 { return m.PacketSendCount.Load() }),
			counter("packets_received_total", "Packets read from the endpoint.",
				func(m *gbn.SessionMetrics) uint64 { return m.PacketRecvCount.Load() }),
			counter("retransmits_total", "Data units sent again after going back to the window base.",
				func(m *gbn.SessionMetrics) uint64 { return m.RetransmitCount.Load() }),
			counter("ack_timeouts_total", "ACK waits that expired.",
				func(m *gbn.SessionMetrics) uint64 { return m.TimeoutCount.Load() }),
			counter("suppressed_sends_total", "Sends suppressed by a scripted timeout.",
				func(m *gbn.SessionMetrics) uint64 { return m.SuppressedCount.Load() }),
			counter("corrupted_sends_total", "Data units sent with a corrupted payload.",
				func(m *gbn.SessionMetrics) uint64 { return m.CorruptCount.Load() }),
			counter("forced_slides_total", "Window slides forced after exhausting retries.",
				func(m *gbn.SessionMetrics) uint64 { return m.ForcedSlideCount.Load() }),
			counter("stale_acks_total", "ACKs below the window base.",
				func(m *gbn.SessionMetrics) uint64 { return m.StaleAckCount.Load() }),
			counter("unexpected_packets_total", "Packets ignored for an unexpected flag or sequence number.",
				func(m *gbn.SessionMetrics) uint64 { return m.UnexpectedCount.Load() }),
			counter("delivered_total", "Data units accepted in order by the receiver.",
				func(m *gbn.SessionMetrics) uint64 { return m.DeliveredCount.Load() }),
		},
		windowBase: desc("window_base", "Oldest unacknowledged sequence number of the sender."),
		curAck:     desc("cur_ack", "Highest contiguous sequence number accepted by the receiver."),
		state:      desc("state", "Current session state (1 = active).", "state"),
	}
}

// Describe implements prometheus.Collector.
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	ch <- c.windowBase
	ch <- c.curAck
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	for _, cd := range c.counters {
		ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(cd.value(c.metrics)))
	}

	ch <- prometheus.MustNewConstMetric(c.windowBase, prometheus.GaugeValue, float64(c.metrics.WindowBase.Load()))
	ch <- prometheus.MustNewConstMetric(c.curAck, prometheus.GaugeValue, float64(c.metrics.CurAck.Load()))

	current := gbn.State(c.metrics.State.Load())
	for _, s := range sessionStates {
		val := 0.0
		if s == current {
			val = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, val, s.String())
	}
}
