// Package codec implements the ILNP wire format: the 40-byte packet header,
// the 4-byte transport wrapper, the 4-byte control header, and the six
// control message bodies, each parsed and serialized as a tagged union.
package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// HeaderSize is the fixed size in bytes of an ILNP packet header.
const HeaderSize = 40

// DefaultHopLimit is used for originated data packets.
const DefaultHopLimit = 32

// NextHeaderNone is IANA protocol number 59 ("No Next Header"), used as the
// NextHeader value on every packet this stack emits, data or control alike:
// dispatch is keyed off the transport wrapper's type byte (codec.Wrapper),
// not this header field, so it never needs to vary.
const NextHeaderNone = 59

// currentVersion is the only ILNP version this codec accepts, per spec §3/§6.
const currentVersion = 6

// Header is the fixed ILNP packet header (spec §3/§6): version, traffic
// class and flow label packed into the first 32 bits, followed by payload
// length, next header, hop limit, and the (locator, identifier) pairs of
// source and destination.
type Header struct {
	Version      uint8
	TrafficClass uint8
	FlowLabel    uint32 // low 20 bits significant
	PayloadLen   uint16
	NextHeader   uint8
	HopLimit     uint8
	Src          domain.Address
	Dst          domain.Address
}

// Marshal serializes the header into a 40-byte big-endian buffer.
func (h Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	first := (uint32(h.Version) << 28) | (uint32(h.TrafficClass) << 20 & 0x0FF00000) | (h.FlowLabel & 0xFFFFF)
	binary.BigEndian.PutUint32(buf[0:4], first)
	binary.BigEndian.PutUint16(buf[4:6], h.PayloadLen)
	buf[6] = h.NextHeader
	buf[7] = h.HopLimit
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.Src.Loc))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.Src.ID))
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.Dst.Loc))
	binary.BigEndian.PutUint64(buf[32:40], uint64(h.Dst.ID))
	return buf
}

// ParseHeader parses a 40-byte buffer into a Header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", routingerr.ErrMalformedPacket, HeaderSize, len(b))
	}
	first := binary.BigEndian.Uint32(b[0:4])
	h := Header{
		Version:      uint8(first >> 28),
		TrafficClass: uint8((first >> 20) & 0xFF),
		FlowLabel:    first & 0xFFFFF,
		PayloadLen:   binary.BigEndian.Uint16(b[4:6]),
		NextHeader:   b[6],
		HopLimit:     b[7],
		Src: domain.Address{
			Loc: domain.Locator(binary.BigEndian.Uint64(b[8:16])),
			ID:  domain.ID(binary.BigEndian.Uint64(b[16:24])),
		},
		Dst: domain.Address{
			Loc: domain.Locator(binary.BigEndian.Uint64(b[24:32])),
			ID:  domain.ID(binary.BigEndian.Uint64(b[32:40])),
		},
	}
	if h.Version != currentVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", routingerr.ErrMalformedPacket, h.Version)
	}
	if int(h.PayloadLen) > len(b)-HeaderSize {
		return Header{}, fmt.Errorf("%w: declared payload length %d exceeds buffer", routingerr.ErrMalformedPacket, h.PayloadLen)
	}
	return h, nil
}

// DecrementHopLimit decrements the hop limit in place, saturating at 0.
func (h *Header) DecrementHopLimit() {
	if h.HopLimit > 0 {
		h.HopLimit--
	}
}

// Packet is a fully parsed ILNP packet: header plus the raw transport-layer
// payload (still wrapped, not yet decoded into a control message).
type Packet struct {
	Header  Header
	Payload []byte
}

// ParsePacket parses a full packet (header + payload) from a wire buffer.
func ParsePacket(b []byte) (Packet, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return Packet{}, err
	}
	payload := make([]byte, h.PayloadLen)
	copy(payload, b[HeaderSize:HeaderSize+int(h.PayloadLen)])
	return Packet{Header: h, Payload: payload}, nil
}

// Marshal serializes the full packet to wire bytes.
func (p Packet) Marshal() []byte {
	return append(p.Header.Marshal(), p.Payload...)
}
