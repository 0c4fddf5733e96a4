package gbn

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-gbn/packet"
)

func newUDPPair(t *testing.T) (sender, receiver *UDPEndpoint) {
	t.Helper()

	sender, err := ListenUDP("127.0.0.1:0", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sender.Close() })

	receiver, err = DialUDP(sender.LocalAddr().String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = receiver.Close() })

	return sender, receiver
}

func TestUDPEndpoint_Exchange(t *testing.T) {
	sender, receiver := newUDPPair(t)

	require.ErrorIs(t, sender.Send(packet.NewSYNACK(1)), ErrNoPeer)
	assert.Nil(t, sender.Peer())

	require.NoError(t, receiver.Send(packet.NewSYN()))
	assert.Equal(t, packet.NewSYN(), expectPacket(t, sender))
	require.NotNil(t, sender.Peer())
	assert.Equal(t, receiver.LocalAddr().Port, sender.Peer().Port)

	require.NoError(t, sender.Send(packet.NewSYNACK(1)))
	assert.Equal(t, packet.NewSYNACK(1), expectPacket(t, receiver))
}

func TestUDPEndpoint_DropsMalformed(t *testing.T) {
	sender, _ := newUDPPair(t)

	conn, err := net.DialUDP("udp", nil, sender.LocalAddr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	_, err = conn.Write(make([]byte, packet.Size+1))
	require.NoError(t, err)
	_, err = conn.Write(packet.NewACK(1, 2).Encode())
	require.NoError(t, err)

	assert.Equal(t, packet.NewACK(1, 2), expectPacket(t, sender))
	assert.Equal(t, uint64(2), sender.DecodeErrCount())
}

func TestUDPEndpoint_Close(t *testing.T) {
	sender, _ := newUDPPair(t)

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())

	select {
	case _, ok := <-sender.Inbound():
		assert.False(t, ok)
	case <-time.After(testWait):
		t.Fatal("inbound not closed")
	}
}

// scriptedReader replays errs in order, delivering pkt where an entry is nil,
// and reports net.ErrClosed once the script is exhausted.
func scriptedReader(calls *atomic.Int32, pkt packet.Packet, errs ...error) datagramReader {
	from := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
	return func(b []byte) (int, *net.UDPAddr, error) {
		i := int(calls.Add(1)) - 1
		if i >= len(errs) {
			return 0, nil, net.ErrClosed
		}
		if errs[i] != nil {
			return 0, nil, errs[i]
		}

		return copy(b, pkt.Encode()), from, nil
	}
}

func newScriptedEndpoint(t *testing.T, read datagramReader) *UDPEndpoint {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	ep := newUDPEndpointWithReader(conn, nil, newTestConfig(t).GetLogger(), read)
	t.Cleanup(func() { _ = ep.Close() })

	return ep
}

func TestUDPEndpoint_GivesUpOnRepeatedReadErrors(t *testing.T) {
	errRead := errors.New("connection refused")
	errs := make([]error, udpMaxReadFailures+5)
	for i := range errs {
		errs[i] = errRead
	}

	var calls atomic.Int32
	ep := newScriptedEndpoint(t, scriptedReader(&calls, packet.NewSYN(), errs...))

	select {
	case _, ok := <-ep.Inbound():
		assert.False(t, ok)
	case <-time.After(testWait):
		t.Fatal("inbound not closed")
	}
	assert.Equal(t, int32(udpMaxReadFailures), calls.Load())
}

func TestUDPEndpoint_RecoversFromTransientReadErrors(t *testing.T) {
	errRead := errors.New("connection refused")

	var calls atomic.Int32
	ep := newScriptedEndpoint(t, scriptedReader(&calls, packet.NewSYN(), errRead, errRead, nil))

	assert.Equal(t, packet.NewSYN(), expectPacket(t, ep))
	require.NotNil(t, ep.Peer())
	assert.Equal(t, 9, ep.Peer().Port)

	select {
	case _, ok := <-ep.Inbound():
		assert.False(t, ok)
	case <-time.After(testWait):
		t.Fatal("inbound not closed")
	}
	assert.Equal(t, int32(4), calls.Load())
}
