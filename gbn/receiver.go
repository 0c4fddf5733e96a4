package gbn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-gbn/packet"
)

// ReceiverResult summarizes a completed receiver session.
type ReceiverResult struct {
	// CurAck is the highest contiguous sequence number accepted.
	CurAck int
	// Delivered is the number of units accepted in order.
	Delivered int
	// Received counts every packet seen during transfer, ignored ones and RST included.
	Received int
	// Payloads holds the accepted payload bytes in sequence order.
	Payloads []byte

	Verdict Verdict
}

// Receiver is the client role: it opens the session, announces the parameters
// and accepts units strictly in order.
//
// A Receiver runs one session and is NOT goroutine-safe, except for State and Metrics.
type Receiver struct {
	session

	params          SessionParams
	expectedActions int

	ownSeq  int32
	peerSeq int32

	curAck    int
	delivered int
	received  int
	payloads  []byte
}

// NewReceiver creates a Receiver on ep that requests params from the sender.
//
// expectedActions is the length of the fault script of the receiver's own test
// case; it decides the verdict when the session ends by RST. A nil cfg selects
// the defaults.
func NewReceiver(ep Endpoint, params SessionParams, expectedActions int, cfg *Config) (*Receiver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if expectedActions < 0 {
		return nil, fmt.Errorf("%w: expected actions %d is negative", ErrInvalidConfig, expectedActions)
	}

	return &Receiver{
		session:         newSession(RoleReceiver, ep, cfg),
		params:          params,
		expectedActions: expectedActions,
		payloads:        make([]byte, 0, params.TotalUnits),
	}, nil
}

// Run opens the session, sends the parameters and receives until every unit is
// delivered or the sender closes with RST.
func (r *Receiver) Run(ctx context.Context) (*ReceiverResult, error) {
	if err := r.initiateHandshake(ctx); err != nil {
		return nil, fmt.Errorf("gbn: handshake: %w", err)
	}

	if err := r.sendParams(); err != nil {
		return nil, fmt.Errorf("gbn: parameter exchange: %w", err)
	}

	verdict, err := r.transfer(ctx)
	if err != nil {
		return nil, fmt.Errorf("gbn: transfer: %w", err)
	}

	r.logger.Info(verdict.String(), "reason", verdict.Reason, "received", r.received)

	return &ReceiverResult{
		CurAck:    r.curAck,
		Delivered: r.delivered,
		Received:  r.received,
		Payloads:  r.payloads,
		Verdict:   verdict,
	}, nil
}

// transfer accepts the unit numbered CurAck+1 and nothing else. Each accepted
// unit is answered with a cumulative ACK; gaps are never reported.
func (r *Receiver) transfer(ctx context.Context) (Verdict, error) {
	r.metrics.setCurAck(r.curAck)

	for {
		r.logger.Debug("waiting for packet", "seq", r.curAck+1)

		p, err := r.recv(ctx)
		if err != nil {
			return Verdict{}, err
		}
		r.received++

		switch {
		case p.Flag == packet.RST:
			r.logger.Info("received RST, ending transmission", "seq", p.Seq, "ack", p.Ack)
			if _, err := r.sm.fire(evRST); err != nil {
				return Verdict{}, err
			}

			return receiverVerdictOnRST(r.received, r.expectedActions, r.delivered, r.params.TotalUnits), nil

		case p.Flag != packet.ACK:
			r.metrics.incUnexpectedCount()
			r.logger.Warn("unexpected packet during transfer, ignoring", "flag", p.Flag, "seq", p.Seq)

		case int(p.Seq) == r.curAck+1:
			if err := r.accept(p); err != nil {
				return Verdict{}, err
			}

			if r.delivered == r.params.TotalUnits {
				if _, err := r.sm.fire(evDone); err != nil {
					return Verdict{}, err
				}

				return receiverVerdictDelivered(r.delivered), nil
			}

		default:
			r.metrics.incUnexpectedCount()
			r.logger.Debug("unexpected packet, ignoring", "seq", p.Seq, "ack", p.Ack, "expected", r.curAck+1)
		}
	}
}

func (r *Receiver) accept(p packet.Packet) error {
	r.curAck++
	r.delivered++
	r.payloads = append(r.payloads, p.Payload)
	r.metrics.incDeliveredCount()
	r.metrics.setCurAck(r.curAck)
	r.logger.Debug("accepted packet", "seq", p.Seq, "payload", string(p.Payload))

	r.ownSeq++
	return r.send(packet.NewACK(r.ownSeq, int32(r.curAck))) //nolint:gosec // curAck <= packet.MaxParam
}

// CurAck returns the highest contiguous sequence number accepted so far. It must
// only be called from the goroutine running Run, or after Run returned.
func (r *Receiver) CurAck() int {
	return r.curAck
}
