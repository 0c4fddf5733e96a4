package gbn

import (
	"context"
	"fmt"

	"github.com/arloliu/go-gbn/fault"
	"github.com/arloliu/go-gbn/packet"
)

const (
	// senderSeq is the sender's own sequence number. It is announced in SYN-ACK and
	// carried by RST; data units are numbered independently from 1.
	senderSeq int32 = 1

	// senderAck acknowledges the receiver's handshake ACK (seq 1) and its two
	// parameter packets (seq 2 and 3). It is carried by every data unit.
	senderAck int32 = 3
)

// WindowState is the sender's sliding window.
//
// Base <= NextSeq <= Base+WindowSize holds, except that a forced slide may leave
// NextSeq behind Base until the next timeout resets it.
type WindowState struct {
	// Base is the oldest unacknowledged sequence number.
	Base int
	// NextSeq is the next sequence number to transmit.
	NextSeq int
	// Retries is the number of consecutive timeouts for the current Base.
	Retries int
	// MaxRetries is the number of retries that forces Base forward.
	MaxRetries int
}

// SenderResult summarizes a completed sender session.
type SenderResult struct {
	Params SessionParams
	// Window is the final window; Window.Base is TotalUnits+1 on completion.
	Window WindowState
	// Acked is the highest cumulative acknowledgement received.
	Acked int

	Rounds       int
	Sent         int // data units handed to the endpoint, corrupted ones included
	Retransmits  int // data units sent with a sequence number sent before
	Timeouts     int // ACK waits that expired
	Suppressed   int // sends suppressed by scripted timeouts
	Corrupted    int // sends with a corrupted payload
	ForcedSlides int

	Verdict Verdict
}

// Sender is the server role: it streams data units through the sliding window.
//
// A Sender runs one session and is NOT goroutine-safe, except for State and Metrics.
type Sender struct {
	session

	injector *fault.Injector
	recorder fault.Recorder

	params      SessionParams
	win         WindowState
	highestSent int
	res         SenderResult
}

// NewSender creates a Sender on ep. A nil cfg selects the defaults.
func NewSender(ep Endpoint, cfg *Config) *Sender {
	ss := newSession(RoleSender, ep, cfg)

	return &Sender{
		session:  ss,
		injector: fault.NewInjector(ss.cfg.script),
		recorder: ss.cfg.recorder,
		win: WindowState{
			Base:       1,
			NextSeq:    1,
			MaxRetries: ss.cfg.maxRetries,
		},
	}
}

// Run accepts the handshake, reads the session parameters, transfers every unit
// and closes the session with RST.
func (s *Sender) Run(ctx context.Context) (*SenderResult, error) {
	if err := s.acceptHandshake(ctx); err != nil {
		return nil, fmt.Errorf("gbn: handshake: %w", err)
	}

	params, err := s.readParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("gbn: parameter exchange: %w", err)
	}
	s.params = params
	s.res.Params = params

	if err := s.transfer(ctx); err != nil {
		return nil, fmt.Errorf("gbn: transfer: %w", err)
	}

	if err := s.terminate(); err != nil {
		return nil, fmt.Errorf("gbn: close: %w", err)
	}

	s.res.Window = s.win
	s.res.Verdict = senderVerdict(s.win, s.res.Acked, s.params.TotalUnits, s.res.ForcedSlides)
	s.logger.Info("transfer finished",
		"base", s.win.Base,
		"acked", s.res.Acked,
		"rounds", s.res.Rounds,
		"retransmits", s.res.Retransmits,
		"forcedSlides", s.res.ForcedSlides,
	)

	return &s.res, nil
}

// transfer runs Go-Back-N rounds until the window base passes the last unit.
func (s *Sender) transfer(ctx context.Context) error {
	s.metrics.setWindowBase(s.win.Base)

	for s.win.Base <= s.params.TotalUnits {
		s.res.Rounds++

		if err := s.fillWindow(); err != nil {
			return err
		}

		if s.cfg.roundObserver != nil {
			s.cfg.roundObserver(s.win)
		}

		// a forced slide during the fill may already have passed the last unit
		if s.win.Base > s.params.TotalUnits {
			break
		}

		if err := s.awaitAck(ctx); err != nil {
			return err
		}
	}

	return nil
}

// fillWindow transmits units while the window has room, consulting the fault
// injector once per attempt. A scripted timeout ends the round early.
func (s *Sender) fillWindow() error {
	for s.win.NextSeq < s.win.Base+s.params.WindowSize && s.win.NextSeq <= s.params.TotalUnits {
		seq := s.win.NextSeq
		pkt := packet.NewData(int32(seq), senderAck) //nolint:gosec // seq <= packet.MaxParam

		switch s.injector.Next() {
		case fault.Timeout:
			s.res.Suppressed++
			s.metrics.incSuppressedCount()
			s.logger.Info("simulating timeout", "seq", seq)
			s.registerRetry()

			return nil

		case fault.Corrupt:
			if err := s.recorder.RecordCorrupted(pkt.Seq, pkt.Payload); err != nil {
				s.logger.Error("failed to record corrupted packet", "seq", seq, "error", err)
			}
			s.res.Corrupted++
			s.metrics.incCorruptCount()
			s.logger.Info("simulating corrupted packet", "seq", seq, "payload", string(pkt.Payload))

			if err := s.sendData(pkt.Corrupted()); err != nil {
				return err
			}

		default:
			if err := s.sendData(pkt); err != nil {
				return err
			}
		}

		s.win.NextSeq++
	}

	return nil
}

func (s *Sender) sendData(pkt packet.Packet) error {
	if err := s.send(pkt); err != nil {
		return err
	}

	seq := int(pkt.Seq)
	s.res.Sent++
	if seq <= s.highestSent {
		s.res.Retransmits++
		s.metrics.incRetransmitCount()
	} else {
		s.highestSent = seq
	}
	s.logger.Debug("sent packet", "seq", pkt.Seq, "ack", pkt.Ack)

	return nil
}

// awaitAck waits for one inbound packet, bounded by the ACK timeout.
// On timeout the window goes back to its base.
func (s *Sender) awaitAck(ctx context.Context) error {
	timer := s.cfg.clock.NewTimer(s.cfg.ackTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C():
		s.res.Timeouts++
		s.metrics.incTimeoutCount()
		s.logger.Warn("timeout waiting for ACK, resending from base", "base", s.win.Base)
		s.win.NextSeq = s.win.Base
		s.registerRetry()

	case p, ok := <-s.ep.Inbound():
		if !ok {
			return ErrEndpointClosed
		}
		s.metrics.incPacketRecvCount()
		s.handleAck(p)
	}

	return nil
}

// handleAck slides the window on a cumulative ACK at or above the base.
func (s *Sender) handleAck(p packet.Packet) {
	if p.Flag != packet.ACK {
		s.metrics.incUnexpectedCount()
		s.logger.Warn("unexpected packet during transfer, ignoring", "flag", p.Flag, "seq", p.Seq)

		return
	}

	ack := int(p.Ack)
	s.logger.Debug("received ACK", "ack", ack, "base", s.win.Base)

	if ack < s.win.Base {
		s.metrics.incStaleAckCount()
		s.logger.Debug("stale ACK, ignoring", "ack", ack, "base", s.win.Base)

		return
	}

	s.win.Base = ack + 1
	s.win.Retries = 0
	if ack > s.res.Acked {
		s.res.Acked = ack
	}
	s.metrics.setWindowBase(s.win.Base)
}

// registerRetry counts one retry for the current base and forces the window
// forward once MaxRetries is reached, abandoning the stalled unit.
func (s *Sender) registerRetry() {
	s.win.Retries++
	if s.win.Retries < s.win.MaxRetries {
		return
	}

	s.logger.Warn("max retries reached, sliding window forward", "base", s.win.Base)
	s.win.Base++
	s.win.Retries = 0
	s.res.ForcedSlides++
	s.metrics.incForcedSlideCount()
	s.metrics.setWindowBase(s.win.Base)
}

// Window returns the current window state. It must only be called from the
// goroutine running Run, or after Run returned.
func (s *Sender) Window() WindowState {
	return s.win
}
