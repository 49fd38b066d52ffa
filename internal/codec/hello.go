package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/routingerr"
)

// Hello carries the sender's current lambda (energy-aware link metric) to
// its link-local neighbours.
type Hello struct {
	Lambda uint32
}

func (h Hello) Marshal() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, h.Lambda)
	return buf
}

func (h Hello) SizeBytes() int { return 4 }

func ParseHello(b []byte) (Hello, error) {
	if len(b) < 4 {
		return Hello{}, fmt.Errorf("%w: HELLO needs 4 bytes", routingerr.ErrMalformedPacket)
	}
	return Hello{Lambda: binary.BigEndian.Uint32(b[:4])}, nil
}
