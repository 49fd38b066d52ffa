package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// ExpiredLinks announces that this node's links to the listed neighbour
// identifiers have aged out, so peers can drop stale graph entries.
type ExpiredLinks struct {
	LostIDs []domain.ID
}

func (e ExpiredLinks) Marshal() []byte {
	buf := make([]byte, len(e.LostIDs)*8)
	for i, id := range e.LostIDs {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(id))
	}
	return buf
}

func (e ExpiredLinks) SizeBytes() int { return len(e.LostIDs) * 8 }

func ParseExpiredLinks(b []byte) (ExpiredLinks, error) {
	if len(b)%8 != 0 {
		return ExpiredLinks{}, fmt.Errorf("%w: EXPIRED_LINKS not a multiple of 8 bytes", routingerr.ErrMalformedPacket)
	}
	n := len(b) / 8
	ids := make([]domain.ID, n)
	for i := 0; i < n; i++ {
		ids[i] = domain.ID(binary.BigEndian.Uint64(b[i*8 : i*8+8]))
	}
	return ExpiredLinks{LostIDs: ids}, nil
}
