package gbn

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gbn/internal/clock"
	"github.com/arloliu/go-gbn/internal/memnet"
	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/packet"
)

// testWait bounds every blocking step of a test.
const testWait = 2 * time.Second

// newTestConfig creates a Config with a discarding debug logger and a short ACK timeout.
func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithLogger(logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)),
		WithAckTimeout(50 * time.Millisecond),
	}

	cfg, err := NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newTestPair binds a listening "sender" endpoint and a "receiver" endpoint dialed to it.
func newTestPair(t *testing.T) (sender, receiver *memnet.Endpoint) {
	t.Helper()

	network := memnet.NewNetwork(0)

	sender, err := network.Listen("sender")
	require.NoError(t, err)
	receiver, err = network.Dial("receiver", "sender")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = sender.Close()
		_ = receiver.Close()
	})

	return sender, receiver
}

// expectPacket reads the next packet from ep, failing the test after testWait.
func expectPacket(t *testing.T, ep Endpoint) packet.Packet {
	t.Helper()

	select {
	case p, ok := <-ep.Inbound():
		require.True(t, ok, "inbound closed")
		return p
	case <-time.After(testWait):
		t.Fatal("timed out waiting for packet")
	}

	return packet.Packet{}
}

// drain returns every packet already queued on ep without blocking.
func drain(ep Endpoint) []packet.Packet {
	var out []packet.Packet
	for {
		select {
		case p, ok := <-ep.Inbound():
			if !ok {
				return out
			}
			out = append(out, p)
		default:
			return out
		}
	}
}

// seqs returns the sequence numbers of pkts.
func seqs(pkts []packet.Packet) []int32 {
	out := make([]int32, 0, len(pkts))
	for _, p := range pkts {
		out = append(out, p.Seq)
	}

	return out
}

// senderHarness runs a Sender on a fake clock against a peer driven by the test.
type senderHarness struct {
	t      *testing.T
	clock  *clock.Fake
	sender *Sender
	peer   *memnet.Endpoint
	peerSq int32

	done chan struct{}
	res  *SenderResult
	err  error
}

// startSender starts a Sender and completes the handshake and parameter
// exchange from the peer side.
func startSender(t *testing.T, params SessionParams, opts ...Option) *senderHarness {
	t.Helper()

	fake := clock.NewFake()
	ep, peer := newTestPair(t)
	cfg := newTestConfig(t, append([]Option{WithClock(fake)}, opts...)...)

	h := &senderHarness{
		t:      t,
		clock:  fake,
		sender: NewSender(ep, cfg),
		peer:   peer,
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		defer close(h.done)
		h.res, h.err = h.sender.Run(ctx)
	}()

	require.NoError(t, peer.Send(packet.NewSYN()))
	synack := expectPacket(t, peer)
	require.Equal(t, packet.SYNACK, synack.Flag)
	require.Equal(t, int32(0), synack.Ack)

	h.peerSq = 1
	require.NoError(t, peer.Send(packet.NewACK(h.peerSq, synack.Seq)))
	h.peerSq++
	require.NoError(t, peer.Send(packet.NewParam(h.peerSq, synack.Seq, byte(params.WindowSize))))
	h.peerSq++
	require.NoError(t, peer.Send(packet.NewParam(h.peerSq, synack.Seq, byte(params.TotalUnits))))

	return h
}

// round waits until the sender blocks on its ACK timer and returns every
// packet sent in the round.
func (h *senderHarness) round() []packet.Packet {
	h.t.Helper()

	select {
	case <-h.clock.Armed():
		return drain(h.peer)
	case <-h.done:
		h.t.Fatalf("sender finished early: %v", h.err)
	case <-time.After(testWait):
		h.t.Fatal("timed out waiting for the sender to arm its ACK timer")
	}

	return nil
}

// expire moves the clock past the armed ACK timer.
func (h *senderHarness) expire() {
	h.clock.Advance(h.sender.cfg.AckTimeout())
}

// ack sends a cumulative ACK for n.
func (h *senderHarness) ack(n int) {
	h.t.Helper()

	h.peerSq++
	require.NoError(h.t, h.peer.Send(packet.NewACK(h.peerSq, int32(n)))) //nolint:gosec // test values are small
}

// wait returns the result of Run.
func (h *senderHarness) wait() (*SenderResult, error) {
	h.t.Helper()

	select {
	case <-h.done:
		return h.res, h.err
	case <-time.After(testWait):
		h.t.Fatal("timed out waiting for the sender to finish")
	}

	return nil, nil
}

// expectRST reads the closing RST from the peer endpoint, skipping data units
// sent in a final round that ended without arming the ACK timer.
func (h *senderHarness) expectRST() {
	h.t.Helper()

	rst := expectPacket(h.t, h.peer)
	for rst.Flag == packet.ACK {
		rst = expectPacket(h.t, h.peer)
	}
	require.Equal(h.t, packet.RST, rst.Flag)
	require.Equal(h.t, senderSeq, rst.Seq)
	require.Equal(h.t, senderAck, rst.Ack)
}

// receiverHarness runs a Receiver against a sender peer driven by the test.
type receiverHarness struct {
	t        *testing.T
	receiver *Receiver
	peer     *memnet.Endpoint

	done chan struct{}
	res  *ReceiverResult
	err  error
}

// startReceiver starts a Receiver and completes the handshake and parameter
// exchange from the sender side.
func startReceiver(t *testing.T, params SessionParams, expectedActions int, opts ...Option) *receiverHarness {
	t.Helper()

	peer, ep := newTestPair(t)
	r, err := NewReceiver(ep, params, expectedActions, newTestConfig(t, opts...))
	require.NoError(t, err)

	h := &receiverHarness{t: t, receiver: r, peer: peer, done: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		defer close(h.done)
		h.res, h.err = r.Run(ctx)
	}()

	syn := expectPacket(t, peer)
	require.Equal(t, packet.SYN, syn.Flag)
	require.NoError(t, peer.Send(packet.NewSYNACK(senderSeq)))

	ack := expectPacket(t, peer)
	require.Equal(t, packet.ACK, ack.Flag)

	window := expectPacket(t, peer)
	require.Equal(t, byte(params.WindowSize), window.Payload)
	total := expectPacket(t, peer)
	require.Equal(t, byte(params.TotalUnits), total.Payload)

	return h
}

// data sends data unit seq.
func (h *receiverHarness) data(seq int32) {
	h.t.Helper()
	require.NoError(h.t, h.peer.Send(packet.NewData(seq, senderAck)))
}

func (h *receiverHarness) wait() (*ReceiverResult, error) {
	h.t.Helper()

	select {
	case <-h.done:
		return h.res, h.err
	case <-time.After(testWait):
		h.t.Fatal("timed out waiting for the receiver to finish")
	}

	return nil, nil
}
