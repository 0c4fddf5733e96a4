package gbn

import (
	"fmt"

	"github.com/arloliu/go-gbn/packet"
)

// Reasons a session ended, reported in Verdict.Reason.
const (
	ReasonAllDelivered = "all units delivered"
	ReasonRST          = "RST received"
	ReasonCompleted    = "window drained"
	ReasonForcedSlides = "window drained with forced slides"
)

// Verdict is the advisory pass/fail outcome of one role.
type Verdict struct {
	Passed    bool
	Reason    string
	Delivered int
	Requested int
}

// String renders the verdict the way the session reports it on the console.
func (v Verdict) String() string {
	if v.Passed {
		return fmt.Sprintf("Test passed! Delivered %d packets successfully.", v.Delivered)
	}

	return fmt.Sprintf("Test failed! Delivered %d out of %d packets.", v.Delivered, v.Requested)
}

// receiverVerdictOnRST decides the receiver outcome when the sender closes first.
//
// It passes when the number of packets seen, RST included, equals the number of
// scripted actions in the receiver's own test case. The count is a harness
// check, not a protocol property.
func receiverVerdictOnRST(received, expectedActions, delivered, requested int) Verdict {
	return Verdict{
		Passed:    received == expectedActions,
		Reason:    ReasonRST,
		Delivered: delivered,
		Requested: requested,
	}
}

func receiverVerdictDelivered(delivered int) Verdict {
	return Verdict{
		Passed:    true,
		Reason:    ReasonAllDelivered,
		Delivered: delivered,
		Requested: delivered,
	}
}

func senderVerdict(win WindowState, acked, requested, forcedSlides int) Verdict {
	reason := ReasonCompleted
	if forcedSlides > 0 {
		reason = ReasonForcedSlides
	}

	return Verdict{
		Passed:    win.Base > requested,
		Reason:    reason,
		Delivered: acked,
		Requested: requested,
	}
}

// terminate closes the sender's session with RST. Only the sender initiates close.
func (s *Sender) terminate() error {
	act, err := s.sm.fire(evDone)
	if err != nil {
		return err
	}

	if act == actSendRST {
		if err := s.send(packet.NewRST(senderSeq, senderAck)); err != nil {
			return err
		}
		s.logger.Info("sent RST packet, closing connection", "seq", senderSeq, "ack", senderAck)
	}

	return nil
}
