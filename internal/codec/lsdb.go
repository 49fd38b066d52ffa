package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// InternalLink describes one intra-zone link between two nodes and their
// current lambda values, as carried in an LSDB flood.
type InternalLink struct {
	A       domain.ID
	ALambda uint32
	B       domain.ID
	BLambda uint32
}

const internalLinkSize = 8 + 4 + 8 + 4

func (l InternalLink) marshal() []byte {
	buf := make([]byte, internalLinkSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(l.A))
	binary.BigEndian.PutUint32(buf[8:12], l.ALambda)
	binary.BigEndian.PutUint64(buf[12:20], uint64(l.B))
	binary.BigEndian.PutUint32(buf[20:24], l.BLambda)
	return buf
}

func parseInternalLink(b []byte) InternalLink {
	return InternalLink{
		A:       domain.ID(binary.BigEndian.Uint64(b[0:8])),
		ALambda: binary.BigEndian.Uint32(b[8:12]),
		B:       domain.ID(binary.BigEndian.Uint64(b[12:20])),
		BLambda: binary.BigEndian.Uint32(b[20:24]),
	}
}

// ExternalLink describes a one-hop-out bridge from a border node in this
// zone to a node in a neighbouring locator.
type ExternalLink struct {
	BorderNode   domain.ID
	Locator      domain.Locator
	BridgeNode   domain.ID
	BridgeLambda uint32
}

const externalLinkSize = 8 + 8 + 8 + 4

func (l ExternalLink) marshal() []byte {
	buf := make([]byte, externalLinkSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(l.BorderNode))
	binary.BigEndian.PutUint64(buf[8:16], uint64(l.Locator))
	binary.BigEndian.PutUint64(buf[16:24], uint64(l.BridgeNode))
	binary.BigEndian.PutUint32(buf[24:28], l.BridgeLambda)
	return buf
}

func parseExternalLink(b []byte) ExternalLink {
	return ExternalLink{
		BorderNode:   domain.ID(binary.BigEndian.Uint64(b[0:8])),
		Locator:      domain.Locator(binary.BigEndian.Uint64(b[8:16])),
		BridgeNode:   domain.ID(binary.BigEndian.Uint64(b[16:24])),
		BridgeLambda: binary.BigEndian.Uint32(b[24:28]),
	}
}

// LSDB is a link-state database flood: the sender's view of its zone's
// internal topology plus its one-hop-out external connectivity, tagged
// with a monotonic sequence number.
type LSDB struct {
	SeqNumber     uint16
	InternalLinks []InternalLink
	ExternalLinks []ExternalLink
}

const lsdbFixedSize = 4 // seq(2) + numInternal(1) + numExternal(1)

func (m LSDB) Marshal() []byte {
	buf := make([]byte, lsdbFixedSize)
	binary.BigEndian.PutUint16(buf[0:2], m.SeqNumber)
	buf[2] = uint8(len(m.InternalLinks))
	buf[3] = uint8(len(m.ExternalLinks))
	for _, l := range m.InternalLinks {
		buf = append(buf, l.marshal()...)
	}
	for _, l := range m.ExternalLinks {
		buf = append(buf, l.marshal()...)
	}
	return buf
}

func (m LSDB) SizeBytes() int {
	return lsdbFixedSize + len(m.InternalLinks)*internalLinkSize + len(m.ExternalLinks)*externalLinkSize
}

func ParseLSDB(b []byte) (LSDB, error) {
	if len(b) < lsdbFixedSize {
		return LSDB{}, fmt.Errorf("%w: LSDB needs %d byte fixed part", routingerr.ErrMalformedPacket, lsdbFixedSize)
	}
	seq := binary.BigEndian.Uint16(b[0:2])
	numInternal := int(b[2])
	numExternal := int(b[3])

	offset := lsdbFixedSize
	need := offset + numInternal*internalLinkSize + numExternal*externalLinkSize
	if len(b) < need {
		return LSDB{}, fmt.Errorf("%w: LSDB declares more links than buffer holds", routingerr.ErrMalformedPacket)
	}

	internal := make([]InternalLink, numInternal)
	for i := 0; i < numInternal; i++ {
		internal[i] = parseInternalLink(b[offset : offset+internalLinkSize])
		offset += internalLinkSize
	}
	external := make([]ExternalLink, numExternal)
	for i := 0; i < numExternal; i++ {
		external[i] = parseExternalLink(b[offset : offset+externalLinkSize])
		offset += externalLinkSize
	}

	return LSDB{SeqNumber: seq, InternalLinks: internal, ExternalLinks: external}, nil
}
