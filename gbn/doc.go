// Package gbn implements a Go-Back-N automatic repeat request (ARQ) session over
// an unreliable datagram transport.
//
// # Roles
//
// A session has two roles. The Sender (server) streams a fixed number of
// one-byte data units through a sliding window and retransmits the whole
// outstanding window when an acknowledgement does not arrive in time. The
// Receiver (client) opens the session, tells the sender the window size and unit
// count, accepts units strictly in order and answers each with a cumulative ACK.
//
// # Session phases
//
//  1. Handshake: the receiver sends SYN, the sender answers SYN-ACK (again for
//     every repeated SYN), the receiver completes with ACK.
//  2. Parameter exchange: the receiver sends two packets whose payloads carry the
//     window size and the unit count, in that order, unacknowledged.
//  3. Transfer: the sender fills the window, waits for one ACK with a bounded
//     timer (2s by default), goes back to the window base on timeout and
//     slides the window forcibly after MaxRetries consecutive timeouts.
//  4. Close: the sender sends RST. The receiver stops on RST or as soon as it has
//     delivered every unit, whichever comes first.
//
// # Fault injection
//
// The sender consumes a fault.Script, one code per transmission attempt, to
// simulate a lost transmission (the send is suppressed and counted as a retry)
// or a corrupted one (the payload is replaced, the original is recorded to a
// fault.Recorder, and the unit is still sent and treated as delivered).
package gbn
