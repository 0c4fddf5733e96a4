package gbn

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/packet"
)

const (
	// udpReadBufferSize is larger than packet.Size so oversized datagrams are
	// detected instead of silently truncated to a valid length.
	udpReadBufferSize = 64

	udpInboundQueueSize = 256

	// udpMaxReadFailures consecutive read errors stop the read loop and close Inbound.
	udpMaxReadFailures = 8
	udpReadRetryDelay  = 5 * time.Millisecond
)

// datagramReader reads one datagram into b.
type datagramReader func(b []byte) (int, *net.UDPAddr, error)

// UDPEndpoint is an Endpoint over a UDP socket.
//
// A listening endpoint (sender) replies to the source of the most recent valid
// datagram; a dialed endpoint (receiver) always sends to the address it dialed.
// Datagrams that fail to decode are logged and dropped.
type UDPEndpoint struct {
	conn      *net.UDPConn
	fixedPeer bool
	peer      atomic.Pointer[net.UDPAddr]
	inbound   chan packet.Packet
	logger    logger.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	decodeErrCount atomic.Uint64
}

var _ Endpoint = (*UDPEndpoint)(nil)

// ListenUDP binds addr (e.g. ":5000") for the sender role.
func ListenUDP(addr string, l logger.Logger) (*UDPEndpoint, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("gbn: resolve %q: %w", addr, err)
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("gbn: listen %q: %w", addr, err)
	}

	return newUDPEndpoint(conn, nil, l), nil
}

// DialUDP opens an ephemeral local socket that sends to addr, for the receiver role.
func DialUDP(addr string, l logger.Logger) (*UDPEndpoint, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("gbn: resolve %q: %w", addr, err)
	}

	network := "udp"
	if raddr.IP.To4() != nil {
		network = "udp4"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("gbn: open socket: %w", err)
	}

	return newUDPEndpoint(conn, raddr, l), nil
}

func newUDPEndpoint(conn *net.UDPConn, peer *net.UDPAddr, l logger.Logger) *UDPEndpoint {
	return newUDPEndpointWithReader(conn, peer, l, conn.ReadFromUDP)
}

func newUDPEndpointWithReader(conn *net.UDPConn, peer *net.UDPAddr, l logger.Logger, read datagramReader) *UDPEndpoint {
	if l == nil {
		l = logger.GetLogger()
	}

	ep := &UDPEndpoint{
		conn:      conn,
		fixedPeer: peer != nil,
		inbound:   make(chan packet.Packet, udpInboundQueueSize),
		logger:    l,
		done:      make(chan struct{}),
	}
	if peer != nil {
		ep.peer.Store(peer)
	}

	ep.wg.Add(1)
	go ep.readLoop(read)

	return ep
}

// LocalAddr returns the bound local address.
func (ep *UDPEndpoint) LocalAddr() *net.UDPAddr {
	addr, _ := ep.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Peer returns the current peer address, or nil if none is known yet.
func (ep *UDPEndpoint) Peer() *net.UDPAddr {
	return ep.peer.Load()
}

// Inbound delivers decoded packets.
func (ep *UDPEndpoint) Inbound() <-chan packet.Packet {
	return ep.inbound
}

// Send encodes p and writes it to the peer.
func (ep *UDPEndpoint) Send(p packet.Packet) error {
	peer := ep.peer.Load()
	if peer == nil {
		return ErrNoPeer
	}

	_, err := ep.conn.WriteToUDP(p.Encode(), peer)

	return err
}

// DecodeErrCount returns the number of dropped malformed datagrams.
func (ep *UDPEndpoint) DecodeErrCount() uint64 {
	return ep.decodeErrCount.Load()
}

// Close closes the socket and waits for the read loop to exit.
func (ep *UDPEndpoint) Close() error {
	var err error
	ep.closeOnce.Do(func() {
		close(ep.done)
		err = ep.conn.Close()
		ep.wg.Wait()
	})

	return err
}

func (ep *UDPEndpoint) readLoop(read datagramReader) {
	defer ep.wg.Done()
	defer close(ep.inbound)

	buf := make([]byte, udpReadBufferSize)
	failures := 0
	for {
		n, from, err := read(buf)
		if err != nil {
			select {
			case <-ep.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}

			failures++
			if failures >= udpMaxReadFailures {
				ep.logger.Error("udp read keeps failing, closing inbound", "failures", failures, "error", err)
				return
			}
			ep.logger.Warn("udp read failed", "failures", failures, "error", err)

			select {
			case <-time.After(time.Duration(failures) * udpReadRetryDelay):
			case <-ep.done:
				return
			}

			continue
		}
		failures = 0

		p, err := packet.Decode(buf[:n])
		if err != nil {
			ep.decodeErrCount.Add(1)
			ep.logger.Warn("dropping malformed datagram", "from", from, "size", n, "error", err)

			continue
		}

		if !ep.fixedPeer {
			ep.peer.Store(from)
		}

		select {
		case ep.inbound <- p:
		case <-ep.done:
			return
		}
	}
}
