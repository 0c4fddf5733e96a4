package gbn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gbn/internal/clock"
	"github.com/arloliu/go-gbn/packet"
)

func TestSenderHandshake_RepeatedSYN(t *testing.T) {
	ep, peer := newTestPair(t)
	fake := clock.NewFake()

	var changes []State
	cfg := newTestConfig(t, WithClock(fake), WithStateChangeHandler(func(_ Role, _, next State) {
		changes = append(changes, next)
	}))
	s := NewSender(ep, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()

	// a lost SYN-ACK is recovered by the receiver's next SYN
	for i := 0; i < 3; i++ {
		require.NoError(t, peer.Send(packet.NewSYN()))
		synack := expectPacket(t, peer)
		assert.Equal(t, packet.NewSYNACK(senderSeq), synack)
	}

	// stray packets while waiting are ignored
	require.NoError(t, peer.Send(packet.NewRST(9, 9)))
	require.NoError(t, peer.Send(packet.NewSYNACK(4)))

	require.NoError(t, peer.Send(packet.NewACK(1, senderSeq)))
	require.NoError(t, peer.Send(packet.NewParam(2, senderSeq, 1)))
	require.NoError(t, peer.Send(packet.NewParam(3, senderSeq, 1)))

	<-fake.Armed()
	assert.Equal(t, []int32{1}, seqs(drain(peer)))
	require.NoError(t, peer.Send(packet.NewACK(4, 1)))

	require.NoError(t, <-done)
	assert.Equal(t, []State{StateAwaitSyn, StateEstablished, StateTransfer, StateClosed}, changes)
	assert.Equal(t, uint64(2), s.Metrics().UnexpectedCount.Load())
}

func TestReceiverHandshake_IgnoresUntilSYNACK(t *testing.T) {
	peer, ep := newTestPair(t)
	r, err := NewReceiver(ep, SessionParams{WindowSize: 4, TotalUnits: 1}, 0, newTestConfig(t))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()

	assert.Equal(t, packet.NewSYN(), expectPacket(t, peer))

	require.NoError(t, peer.Send(packet.NewACK(9, 9)))
	require.NoError(t, peer.Send(packet.Packet{Seq: 7, Ack: 3, Flag: packet.SYNACK}))
	require.NoError(t, peer.Send(packet.NewData(1, senderAck)))
	require.NoError(t, peer.Send(packet.NewSYNACK(7)))

	assert.Equal(t, packet.NewACK(1, 7), expectPacket(t, peer))
	assert.Equal(t, packet.NewParam(2, 7, 4), expectPacket(t, peer))
	assert.Equal(t, packet.NewParam(3, 7, 1), expectPacket(t, peer))

	require.NoError(t, peer.Send(packet.NewData(1, senderAck)))
	assert.Equal(t, packet.NewACK(4, 1), expectPacket(t, peer))

	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), r.Metrics().UnexpectedCount.Load())
}
