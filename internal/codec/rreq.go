package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/routingerr"
)

const allowCachedRepliesBit = 0x80

// LocatorRReq is a reactive route-discovery request: who can reach
// RequestID's destination locator, optionally allowing any node along the
// way to answer from its own cached path rather than forcing a round trip
// to the destination.
type LocatorRReq struct {
	RequestID           uint16
	AllowCachedReplies  bool
	RouteList           LocatorHopList
}

func (r LocatorRReq) Marshal() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], r.RequestID)
	if r.AllowCachedReplies {
		buf[2] = allowCachedRepliesBit
	}
	return append(buf, r.RouteList.Marshal()...)
}

func (r LocatorRReq) SizeBytes() int { return 4 + r.RouteList.SizeBytes() }

func ParseLocatorRReq(b []byte) (LocatorRReq, error) {
	if len(b) < 4 {
		return LocatorRReq{}, fmt.Errorf("%w: LOCATOR_RREQ needs 4 byte fixed part", routingerr.ErrMalformedPacket)
	}
	list, err := ParseLocatorHopList(b[4:])
	if err != nil {
		return LocatorRReq{}, err
	}
	return LocatorRReq{
		RequestID:          binary.BigEndian.Uint16(b[0:2]),
		AllowCachedReplies: b[2]&allowCachedRepliesBit != 0,
		RouteList:          list,
	}, nil
}
