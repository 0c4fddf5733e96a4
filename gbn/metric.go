package gbn

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for one session role.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// PacketSendCount indicates the number of packets written to the endpoint.
	PacketSendCount atomic.Uint64
	// PacketRecvCount indicates the number of packets read from the endpoint.
	PacketRecvCount atomic.Uint64

	// RetransmitCount indicates the number of data units sent again after going back.
	RetransmitCount atomic.Uint64
	// TimeoutCount indicates the number of ACK waits that expired.
	TimeoutCount atomic.Uint64
	// SuppressedCount indicates the number of sends suppressed by a scripted timeout.
	SuppressedCount atomic.Uint64
	// CorruptCount indicates the number of units sent with a corrupted payload.
	CorruptCount atomic.Uint64
	// ForcedSlideCount indicates how often the window base was forced past a stalled unit.
	ForcedSlideCount atomic.Uint64
	// StaleAckCount indicates the number of ACKs below the window base.
	StaleAckCount atomic.Uint64
	// UnexpectedCount indicates packets ignored for an unexpected flag or sequence number.
	UnexpectedCount atomic.Uint64

	// DeliveredCount indicates the number of units the receiver accepted in order.
	DeliveredCount atomic.Uint64

	// WindowBase is the sender's oldest unacknowledged sequence number.
	WindowBase atomic.Int64
	// CurAck is the receiver's highest contiguous accepted sequence number.
	CurAck atomic.Int64
	// State is the current session State.
	State atomic.Uint32
}

func (m *SessionMetrics) incPacketSendCount() {
	m.PacketSendCount.Add(1)
}

func (m *SessionMetrics) incPacketRecvCount() {
	m.PacketRecvCount.Add(1)
}

func (m *SessionMetrics) incRetransmitCount() {
	m.RetransmitCount.Add(1)
}

func (m *SessionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *SessionMetrics) incSuppressedCount() {
	m.SuppressedCount.Add(1)
}

func (m *SessionMetrics) incCorruptCount() {
	m.CorruptCount.Add(1)
}

func (m *SessionMetrics) incForcedSlideCount() {
	m.ForcedSlideCount.Add(1)
}

func (m *SessionMetrics) incStaleAckCount() {
	m.StaleAckCount.Add(1)
}

func (m *SessionMetrics) incUnexpectedCount() {
	m.UnexpectedCount.Add(1)
}

func (m *SessionMetrics) incDeliveredCount() {
	m.DeliveredCount.Add(1)
}

func (m *SessionMetrics) setWindowBase(base int) {
	m.WindowBase.Store(int64(base))
}

func (m *SessionMetrics) setCurAck(ack int) {
	m.CurAck.Store(int64(ack))
}

func (m *SessionMetrics) setState(s State) {
	m.State.Store(uint32(s))
}
