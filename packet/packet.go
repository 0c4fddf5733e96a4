package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the encoded length of a packet in bytes.
const Size = 13

// MaxParam is the largest window size or unit count; each travels in a single
// payload byte of a parameter packet.
const MaxParam = 255

// CorruptPayload replaces the payload of a unit whose transmission is scripted as corrupted.
const CorruptPayload byte = '?'

var (
	// ErrLength is returned by Decode when the datagram is not exactly Size bytes.
	ErrLength = errors.New("packet: invalid datagram length")

	// ErrInvalidFlag is returned by Decode when the flag field is not a known Flag.
	ErrInvalidFlag = errors.New("packet: invalid control flag")
)

// Flag is the control flag of a packet.
type Flag int32

// Control flags. The numeric values are part of the wire format.
const (
	SYN    Flag = 1
	SYNACK Flag = 2
	ACK    Flag = 3
	RST    Flag = 4
)

// IsValid reports whether f is one of the defined flags.
func (f Flag) IsValid() bool {
	return f >= SYN && f <= RST
}

// String returns the protocol name of the flag.
func (f Flag) String() string {
	switch f {
	case SYN:
		return "SYN"
	case SYNACK:
		return "SYN-ACK"
	case ACK:
		return "ACK"
	case RST:
		return "RST"
	default:
		return fmt.Sprintf("Flag(%d)", int32(f))
	}
}

// Packet is one protocol message. Packets are values; copy freely.
type Packet struct {
	Seq     int32
	Ack     int32
	Flag    Flag
	Payload byte
}

// NewSYN returns the receiver's connection request.
func NewSYN() Packet {
	return Packet{Seq: 0, Ack: 0, Flag: SYN}
}

// NewSYNACK returns the sender's answer to a SYN, carrying the sender's sequence number.
func NewSYNACK(seq int32) Packet {
	return Packet{Seq: seq, Ack: 0, Flag: SYNACK}
}

// NewACK returns an ACK packet with the given sequence and acknowledgement numbers.
func NewACK(seq, ack int32) Packet {
	return Packet{Seq: seq, Ack: ack, Flag: ACK}
}

// NewParam returns a parameter-exchange packet carrying value as its payload.
func NewParam(seq, ack int32, value byte) Packet {
	return Packet{Seq: seq, Ack: ack, Flag: ACK, Payload: value}
}

// NewData returns the data unit for seq, with its payload derived by DataPayload.
func NewData(seq, ack int32) Packet {
	return Packet{Seq: seq, Ack: ack, Flag: ACK, Payload: DataPayload(seq)}
}

// NewRST returns the session termination packet.
func NewRST(seq, ack int32) Packet {
	return Packet{Seq: seq, Ack: ack, Flag: RST}
}

// DataPayload returns the payload of data unit seq: 'A' for 1, 'B' for 2, ... wrapping after 'Z'.
func DataPayload(seq int32) byte {
	n := (seq - 1) % 26
	if n < 0 {
		n += 26
	}

	return byte('A' + n)
}

// Corrupted returns a copy of p with its payload replaced by CorruptPayload.
func (p Packet) Corrupted() Packet {
	p.Payload = CorruptPayload
	return p
}

// Encode serializes the packet to its 13-byte wire format.
func (p Packet) Encode() []byte {
	buf := make([]byte, Size)
	p.encodeTo(buf)

	return buf
}

// AppendEncode appends the wire format of p to dst and returns the extended slice.
func (p Packet) AppendEncode(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, Size)...)
	p.encodeTo(dst[n:])

	return dst
}

func (p Packet) encodeTo(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(p.Seq))   //nolint:gosec // two's complement on the wire
	binary.BigEndian.PutUint32(buf[4:8], uint32(p.Ack))   //nolint:gosec // two's complement on the wire
	binary.BigEndian.PutUint32(buf[8:12], uint32(p.Flag)) //nolint:gosec // validated on decode
	buf[12] = p.Payload
}

// Decode deserializes a packet from a datagram.
//
// Decode validates:
//   - the datagram is exactly Size bytes.
//   - the flag field is a known Flag.
func Decode(data []byte) (Packet, error) {
	if len(data) != Size {
		return Packet{}, fmt.Errorf("%w: got %d bytes, want %d", ErrLength, len(data), Size)
	}

	p := Packet{
		Seq:     int32(binary.BigEndian.Uint32(data[0:4])), //nolint:gosec // two's complement on the wire
		Ack:     int32(binary.BigEndian.Uint32(data[4:8])), //nolint:gosec // two's complement on the wire
		Flag:    Flag(binary.BigEndian.Uint32(data[8:12])), //nolint:gosec // range checked below
		Payload: data[12],
	}

	if !p.Flag.IsValid() {
		return Packet{}, fmt.Errorf("%w: %d", ErrInvalidFlag, int32(p.Flag))
	}

	return p, nil
}

// String returns a compact description used in logs.
func (p Packet) String() string {
	return fmt.Sprintf("%s seq=%d ack=%d payload=0x%02X", p.Flag, p.Seq, p.Ack, p.Payload)
}
