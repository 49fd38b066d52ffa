package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// LocatorRRep is the reply to a LocatorRReq: which identifier the reply
// resolves (since the reply packet's own addressing carries only the
// replying node and the original requester, never the target id) plus the
// accumulated route list back toward the requester.
type LocatorRRep struct {
	OriginalDestinationID domain.ID
	RouteList             LocatorHopList
}

func (r LocatorRRep) Marshal() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(r.OriginalDestinationID))
	return append(buf, r.RouteList.Marshal()...)
}

func (r LocatorRRep) SizeBytes() int { return 8 + r.RouteList.SizeBytes() }

func ParseLocatorRRep(b []byte) (LocatorRRep, error) {
	if len(b) < 8 {
		return LocatorRRep{}, fmt.Errorf("%w: LOCATOR_RREP needs 8 byte fixed part", routingerr.ErrMalformedPacket)
	}
	list, err := ParseLocatorHopList(b[8:])
	if err != nil {
		return LocatorRRep{}, err
	}
	return LocatorRRep{
		OriginalDestinationID: domain.ID(binary.BigEndian.Uint64(b[:8])),
		RouteList:             list,
	}, nil
}
