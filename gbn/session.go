package gbn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-gbn/logger"
	"github.com/arloliu/go-gbn/packet"
)

// Endpoint is the datagram transport a session runs on.
//
// Send must not block on the peer; like UDP it may lose datagrams. Inbound
// delivers decoded packets and is closed when the endpoint closes.
type Endpoint interface {
	Send(p packet.Packet) error
	Inbound() <-chan packet.Packet
	Close() error
}

// SessionParams are the negotiated session parameters.
type SessionParams struct {
	WindowSize int
	TotalUnits int
}

// Validate checks both parameters are within [1, packet.MaxParam].
func (p SessionParams) Validate() error {
	if p.WindowSize < 1 || p.WindowSize > packet.MaxParam {
		return fmt.Errorf("%w: window size %d out of range [1, %d]", ErrInvalidParams, p.WindowSize, packet.MaxParam)
	}
	if p.TotalUnits < 1 || p.TotalUnits > packet.MaxParam {
		return fmt.Errorf("%w: total units %d out of range [1, %d]", ErrInvalidParams, p.TotalUnits, packet.MaxParam)
	}

	return nil
}

// session holds what both roles share: the endpoint, configuration and state machine.
type session struct {
	ep      Endpoint
	cfg     *Config
	logger  logger.Logger
	metrics *SessionMetrics
	sm      *stateMachine
}

func newSession(role Role, ep Endpoint, cfg *Config) session {
	if cfg == nil {
		cfg, _ = NewConfig() // defaults never fail validation
	}
	l := cfg.logger.With("role", role.String())

	return session{
		ep:      ep,
		cfg:     cfg,
		logger:  l,
		metrics: cfg.metrics,
		sm:      newStateMachine(role, l, cfg.metrics, cfg.stateHandlers...),
	}
}

// State returns the current session state. It is safe to call from any goroutine.
func (ss *session) State() State {
	return ss.sm.State()
}

// Metrics returns the session metrics.
func (ss *session) Metrics() *SessionMetrics {
	return ss.metrics
}

func (ss *session) send(p packet.Packet) error {
	if err := ss.ep.Send(p); err != nil {
		return fmt.Errorf("gbn: send %s: %w", p.Flag, err)
	}
	ss.metrics.incPacketSendCount()

	return nil
}

// recv blocks for the next inbound packet.
func (ss *session) recv(ctx context.Context) (packet.Packet, error) {
	select {
	case <-ctx.Done():
		return packet.Packet{}, ctx.Err()
	case p, ok := <-ss.ep.Inbound():
		if !ok {
			return packet.Packet{}, ErrEndpointClosed
		}
		ss.metrics.incPacketRecvCount()

		return p, nil
	}
}
