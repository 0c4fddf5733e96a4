// Package memnet is an in-process datagram network for exercising the protocol
// without sockets.
//
// Like UDP it is connectionless and lossy under pressure: each endpoint has a
// bounded receive buffer and datagrams that do not fit, or that are addressed to
// an unknown endpoint, are silently dropped. Datagrams travel as encoded bytes so
// the packet codec is exercised on every hop.
package memnet

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-gbn/packet"
)

// DefaultBufferSize is the receive buffer of an endpoint, in datagrams.
const DefaultBufferSize = 1024

var (
	// ErrAddrInUse is returned when an address is already bound on the network.
	ErrAddrInUse = errors.New("memnet: address already in use")

	// ErrNoPeer is returned by Send before the endpoint knows where to send.
	ErrNoPeer = errors.New("memnet: no peer address")

	// ErrClosed is returned by Send on a closed endpoint.
	ErrClosed = errors.New("memnet: endpoint closed")
)

// Network is a set of endpoints addressed by name.
type Network struct {
	endpoints  *xsync.MapOf[string, *Endpoint]
	bufferSize int
}

// NewNetwork creates an empty network. bufferSize <= 0 selects DefaultBufferSize.
func NewNetwork(bufferSize int) *Network {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Network{
		endpoints:  xsync.NewMapOf[string, *Endpoint](),
		bufferSize: bufferSize,
	}
}

// Listen binds addr. The endpoint replies to whichever endpoint sent to it last.
func (n *Network) Listen(addr string) (*Endpoint, error) {
	return n.bind(addr, "")
}

// Dial binds local and directs every Send to remote.
func (n *Network) Dial(local, remote string) (*Endpoint, error) {
	return n.bind(local, remote)
}

func (n *Network) bind(addr, remote string) (*Endpoint, error) {
	ep := &Endpoint{
		network:   n,
		addr:      addr,
		fixedPeer: remote != "",
		inbound:   make(chan packet.Packet, n.bufferSize),
	}
	if ep.fixedPeer {
		ep.peer.Store(&remote)
	}

	if _, loaded := n.endpoints.LoadOrStore(addr, ep); loaded {
		return nil, fmt.Errorf("%w: %s", ErrAddrInUse, addr)
	}

	return ep, nil
}

// Len returns the number of bound endpoints.
func (n *Network) Len() int {
	return n.endpoints.Size()
}

// Endpoint is one bound address on a Network.
type Endpoint struct {
	network   *Network
	addr      string
	peer      atomic.Pointer[string]
	fixedPeer bool

	mu      sync.RWMutex
	closed  bool
	inbound chan packet.Packet

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Addr returns the bound address.
func (e *Endpoint) Addr() string { return e.addr }

// Inbound delivers decoded packets; it is closed by Close.
func (e *Endpoint) Inbound() <-chan packet.Packet { return e.inbound }

// Send encodes p and delivers it to the peer. Delivery failures are silent.
func (e *Endpoint) Send(p packet.Packet) error {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	peer := e.peer.Load()
	if peer == nil {
		return ErrNoPeer
	}
	e.sent.Add(1)

	dst, ok := e.network.endpoints.Load(*peer)
	if !ok {
		return nil
	}
	dst.deliver(e.addr, p.Encode())

	return nil
}

func (e *Endpoint) deliver(from string, data []byte) {
	p, err := packet.Decode(data)
	if err != nil {
		e.dropped.Add(1)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return
	}
	if !e.fixedPeer {
		e.peer.Store(&from)
	}

	select {
	case e.inbound <- p:
	default:
		e.dropped.Add(1)
	}
}

// Inject delivers raw bytes to the endpoint as if sent by from. Tests use it to
// feed malformed datagrams.
func (e *Endpoint) Inject(from string, data []byte) {
	e.deliver(from, data)
}

// Sent returns the number of datagrams this endpoint transmitted.
func (e *Endpoint) Sent() uint64 { return e.sent.Load() }

// Dropped returns the number of datagrams this endpoint discarded on receive.
func (e *Endpoint) Dropped() uint64 { return e.dropped.Load() }

// Close unbinds the endpoint and closes its inbound channel.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	close(e.inbound)
	e.network.endpoints.Delete(e.addr)

	return nil
}
