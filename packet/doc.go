// Package packet implements the Go-Back-N wire message and its binary codec.
//
// Every protocol message, control or data, is a fixed 13-byte record:
//
//	[Seq int32][Ack int32][Flag int32][Payload byte]
//
// All integer fields are big-endian (network byte order), so the wire format
// does not depend on the host representation.
//
// # Flags
//
//   - SYN (1): receiver opens the handshake
//   - SYN_ACK (2): sender answers a SYN
//   - ACK (3): handshake completion, parameters, data units and cumulative ACKs
//   - RST (4): sender closes the session
package packet
