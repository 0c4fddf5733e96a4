package gbn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-gbn/packet"
)

// acceptHandshake runs the sender side of the handshake.
//
// Every SYN is answered with SYN-ACK and the wait repeats, so a lost SYN-ACK is
// recovered by the receiver's next SYN. An ACK completes the handshake. There is
// no timeout; only ctx ends the wait.
func (s *Sender) acceptHandshake(ctx context.Context) error {
	if _, err := s.sm.fire(evStart); err != nil {
		return err
	}

	for s.sm.State() == StateAwaitSyn {
		p, err := s.recv(ctx)
		if err != nil {
			return err
		}

		act, err := s.sm.fire(classify(p))
		if err != nil {
			return err
		}

		switch act { //nolint:exhaustive
		case actSendSYNACK:
			s.logger.Info("received SYN packet")
			if err := s.send(packet.NewSYNACK(senderSeq)); err != nil {
				return err
			}
			s.logger.Info("sent SYN-ACK packet", "seq", senderSeq)

		case actIgnore:
			s.metrics.incUnexpectedCount()
			s.logger.Warn("unexpected packet during handshake, ignoring", "flag", p.Flag, "seq", p.Seq, "ack", p.Ack)
		}
	}

	s.logger.Info("received ACK packet, handshake complete")

	return nil
}

// readParams reads the window size and the unit count, in that order, from the
// next two packets. Neither is acknowledged.
func (s *Sender) readParams(ctx context.Context) (SessionParams, error) {
	window, err := s.recv(ctx)
	if err != nil {
		return SessionParams{}, err
	}
	s.logger.Info("received window size", "N", window.Payload)

	total, err := s.recv(ctx)
	if err != nil {
		return SessionParams{}, err
	}
	s.logger.Info("received total packet count", "S", total.Payload)

	params := SessionParams{WindowSize: int(window.Payload), TotalUnits: int(total.Payload)}
	if err := params.Validate(); err != nil {
		return SessionParams{}, err
	}

	if _, err := s.sm.fire(evParams); err != nil {
		return SessionParams{}, err
	}

	return params, nil
}

// initiateHandshake runs the receiver side of the handshake: SYN, wait for a
// SYN-ACK acknowledging 0 (anything else is ignored), then ACK.
func (r *Receiver) initiateHandshake(ctx context.Context) error {
	act, err := r.sm.fire(evStart)
	if err != nil {
		return err
	}
	if act == actSendSYN {
		if err := r.send(packet.NewSYN()); err != nil {
			return err
		}
		r.logger.Info("sent SYN packet")
	}

	for r.sm.State() == StateSynSent {
		p, err := r.recv(ctx)
		if err != nil {
			return err
		}

		act, err := r.sm.fire(classify(p))
		if err != nil {
			return err
		}

		switch act { //nolint:exhaustive
		case actSendACK:
			r.logger.Info("received SYN-ACK packet", "seq", p.Seq)
			r.ownSeq = 1
			r.peerSeq = p.Seq
			if err := r.send(packet.NewACK(r.ownSeq, r.peerSeq)); err != nil {
				return err
			}
			r.logger.Info("sent ACK packet, handshake complete", "seq", r.ownSeq, "ack", r.peerSeq)

		case actIgnore:
			r.metrics.incUnexpectedCount()
			r.logger.Warn("expected SYN-ACK packet, ignoring", "flag", p.Flag, "seq", p.Seq, "ack", p.Ack)
		}
	}

	return nil
}

// sendParams sends the window size and then the unit count.
func (r *Receiver) sendParams() error {
	r.ownSeq++
	if err := r.send(packet.NewParam(r.ownSeq, r.peerSeq, byte(r.params.WindowSize))); err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	r.logger.Info("sent window size", "N", r.params.WindowSize)

	r.ownSeq++
	if err := r.send(packet.NewParam(r.ownSeq, r.peerSeq, byte(r.params.TotalUnits))); err != nil {
		return fmt.Errorf("byte request: %w", err)
	}
	r.logger.Info("sent byte request", "S", r.params.TotalUnits)

	_, err := r.sm.fire(evParams)

	return err
}
