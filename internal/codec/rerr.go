package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// LocatorRErr informs nodes along a path that a locator is no longer
// reachable from the origin locator, so cached external routes through it
// can be invalidated ahead of the next keepalive-driven expiry.
type LocatorRErr struct {
	LostLocator domain.Locator
}

func (e LocatorRErr) Marshal() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(e.LostLocator))
	return buf
}

func (e LocatorRErr) SizeBytes() int { return 8 }

func ParseLocatorRErr(b []byte) (LocatorRErr, error) {
	if len(b) < 8 {
		return LocatorRErr{}, fmt.Errorf("%w: LOCATOR_RERR needs 8 bytes", routingerr.ErrMalformedPacket)
	}
	return LocatorRErr{LostLocator: domain.Locator(binary.BigEndian.Uint64(b[:8]))}, nil
}
