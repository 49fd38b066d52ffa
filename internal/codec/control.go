package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/routingerr"
)

// ControlType tags which of the six control message bodies a ControlHeader
// introduces.
type ControlType uint8

const (
	ControlHello        ControlType = 1
	ControlLocatorRReq  ControlType = 2
	ControlLocatorRRep  ControlType = 3
	ControlLocatorRErr  ControlType = 4
	ControlLSDB         ControlType = 5
	ControlExpiredLinks ControlType = 6
)

// ControlHeaderSize is the fixed size of the control header.
const ControlHeaderSize = 4

// ControlHeader tags a control message body with its type and length,
// forming a tagged union together with the body bytes that follow it.
type ControlHeader struct {
	Type   ControlType
	Length uint16
}

func (h ControlHeader) Marshal() []byte {
	buf := make([]byte, ControlHeaderSize)
	buf[0] = uint8(h.Type)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], h.Length)
	return buf
}

func ParseControlHeader(b []byte) (ControlHeader, error) {
	if len(b) < ControlHeaderSize {
		return ControlHeader{}, fmt.Errorf("%w: control header needs %d bytes", routingerr.ErrMalformedPacket, ControlHeaderSize)
	}
	return ControlHeader{
		Type:   ControlType(b[0]),
		Length: binary.BigEndian.Uint16(b[2:4]),
	}, nil
}

// ControlBody is implemented by each of the six control message payloads.
type ControlBody interface {
	Marshal() []byte
	SizeBytes() int
}

// ControlMessage bundles a header with its decoded body.
type ControlMessage struct {
	Header ControlHeader
	Body   ControlBody
}

func (m ControlMessage) Marshal() []byte {
	return append(m.Header.Marshal(), m.Body.Marshal()...)
}

func (m ControlMessage) SizeBytes() int {
	return ControlHeaderSize + m.Body.SizeBytes()
}

// BuildControlMessage constructs a tagged ControlMessage from a body,
// filling in the header type/length from the body itself.
func BuildControlMessage(ctype ControlType, body ControlBody) ControlMessage {
	return ControlMessage{
		Header: ControlHeader{Type: ctype, Length: uint16(body.SizeBytes())},
		Body:   body,
	}
}

// ParseControlMessage decodes a tagged control message from b, dispatching
// on the header's control type.
func ParseControlMessage(b []byte) (ControlMessage, error) {
	header, err := ParseControlHeader(b)
	if err != nil {
		return ControlMessage{}, err
	}
	bodyBytes := b[ControlHeaderSize:]
	if int(header.Length) > len(bodyBytes) {
		return ControlMessage{}, fmt.Errorf("%w: control body declares %d bytes, have %d", routingerr.ErrMalformedPacket, header.Length, len(bodyBytes))
	}
	bodyBytes = bodyBytes[:header.Length]

	var body ControlBody
	switch header.Type {
	case ControlHello:
		body, err = ParseHello(bodyBytes)
	case ControlLocatorRReq:
		body, err = ParseLocatorRReq(bodyBytes)
	case ControlLocatorRRep:
		body, err = ParseLocatorRRep(bodyBytes)
	case ControlLocatorRErr:
		body, err = ParseLocatorRErr(bodyBytes)
	case ControlLSDB:
		body, err = ParseLSDB(bodyBytes)
	case ControlExpiredLinks:
		body, err = ParseExpiredLinks(bodyBytes)
	default:
		return ControlMessage{}, fmt.Errorf("%w: unknown control type %d", routingerr.ErrMalformedPacket, header.Type)
	}
	if err != nil {
		return ControlMessage{}, err
	}
	return ControlMessage{Header: header, Body: body}, nil
}
