// Package wire assembles outgoing ILNP packets from a control message body,
// shared by the control plane and the reactive discovery handler so neither
// duplicates the header/wrapper marshalling.
package wire

import (
	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
)

// WrapControl builds the transport wrapper for a control message body.
// Local-only messages (HELLO, LSDB, EXPIRED_LINKS) never cross a zone
// boundary; external messages (LOCATOR_RREQ/RREP/RERR) are forwarded hop by
// hop across zones.
func WrapControl(ctype codec.ControlType, body codec.ControlBody, external bool) codec.Wrapper {
	msg := codec.BuildControlMessage(ctype, body)
	bytes := msg.Marshal()
	if external {
		return codec.BuildExternalControlWrapper(bytes)
	}
	return codec.BuildLocalControlWrapper(bytes)
}

// BuildPacket assembles a full ILNP packet ready to marshal onto the wire.
func BuildPacket(src, dst domain.Address, hopLimit uint8, w codec.Wrapper) codec.Packet {
	payload := w.Marshal()
	header := codec.Header{
		Version:    6,
		NextHeader: codec.NextHeaderNone,
		HopLimit:   hopLimit,
		PayloadLen: uint16(len(payload)),
		Src:        src,
		Dst:        dst,
	}
	return codec.Packet{Header: header, Payload: payload}
}
