package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/routingerr"
)

// TransportType distinguishes what an ILNP packet's payload carries.
type TransportType uint8

const (
	TransportData            TransportType = 0
	TransportControlLocal    TransportType = 1
	TransportControlExternal TransportType = 2
)

// WrapperSize is the fixed size of the transport wrapper header.
const WrapperSize = 4

// Wrapper tags a packet payload as opaque data, locally-scoped control
// traffic (HELLO/LSDB/EXPIRED_LINKS, never forwarded past the zone), or
// externally-routable control traffic (LOCATOR_RREQ/RREP/RERR, forwarded
// hop by hop across zones).
type Wrapper struct {
	Type   TransportType
	Length uint16
	Body   []byte
}

// Marshal serializes the wrapper and its body.
func (w Wrapper) Marshal() []byte {
	buf := make([]byte, WrapperSize+len(w.Body))
	buf[0] = uint8(w.Type)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], w.Length)
	copy(buf[WrapperSize:], w.Body)
	return buf
}

// ParseWrapper parses a transport wrapper and its trailing body from b.
func ParseWrapper(b []byte) (Wrapper, error) {
	if len(b) < WrapperSize {
		return Wrapper{}, fmt.Errorf("%w: transport wrapper needs %d bytes", routingerr.ErrMalformedPacket, WrapperSize)
	}
	w := Wrapper{
		Type:   TransportType(b[0]),
		Length: binary.BigEndian.Uint16(b[2:4]),
	}
	if int(w.Length) > len(b)-WrapperSize {
		return Wrapper{}, fmt.Errorf("%w: wrapper declares %d byte body, buffer has %d", routingerr.ErrMalformedPacket, w.Length, len(b)-WrapperSize)
	}
	w.Body = b[WrapperSize : WrapperSize+int(w.Length)]
	return w, nil
}

// IsControl reports whether the wrapper carries a control-plane message.
func (w Wrapper) IsControl() bool {
	return w.Type == TransportControlLocal || w.Type == TransportControlExternal
}

// BuildDataWrapper wraps opaque application payload.
func BuildDataWrapper(data []byte) Wrapper {
	return Wrapper{Type: TransportData, Length: uint16(len(data)), Body: data}
}

// BuildLocalControlWrapper wraps a locally-scoped control message body.
func BuildLocalControlWrapper(body []byte) Wrapper {
	return Wrapper{Type: TransportControlLocal, Length: uint16(len(body)), Body: body}
}

// BuildExternalControlWrapper wraps an externally-routable control message body.
func BuildExternalControlWrapper(body []byte) Wrapper {
	return Wrapper{Type: TransportControlExternal, Length: uint16(len(body)), Body: body}
}
