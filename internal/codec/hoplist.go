package codec

import (
	"encoding/binary"
	"fmt"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// LocatorHopList is an ordered list of locators visited (or to be visited)
// by a reactive route discovery message. Used as the trailing route list in
// both LOCATOR_RREQ and LOCATOR_RREP.
type LocatorHopList struct {
	Locators []domain.Locator
}

func (l LocatorHopList) Marshal() []byte {
	buf := make([]byte, len(l.Locators)*8)
	for i, loc := range l.Locators {
		binary.BigEndian.PutUint64(buf[i*8:i*8+8], uint64(loc))
	}
	return buf
}

func (l LocatorHopList) SizeBytes() int { return len(l.Locators) * 8 }

// ParseLocatorHopList parses a buffer that is an exact multiple of 8 bytes
// into a list of locators.
func ParseLocatorHopList(b []byte) (LocatorHopList, error) {
	if len(b)%8 != 0 {
		return LocatorHopList{}, fmt.Errorf("%w: locator hop list not a multiple of 8 bytes", routingerr.ErrMalformedPacket)
	}
	n := len(b) / 8
	locs := make([]domain.Locator, n)
	for i := 0; i < n; i++ {
		locs[i] = domain.Locator(binary.BigEndian.Uint64(b[i*8 : i*8+8]))
	}
	return LocatorHopList{Locators: locs}, nil
}

// Append returns a copy of the list with loc appended.
func (l LocatorHopList) Append(loc domain.Locator) LocatorHopList {
	out := make([]domain.Locator, len(l.Locators)+1)
	copy(out, l.Locators)
	out[len(l.Locators)] = loc
	return LocatorHopList{Locators: out}
}

// SetLast overwrites the final entry of the list with loc, in the backing
// array it shares with the caller's copy; an empty list is left unchanged.
func (l LocatorHopList) SetLast(loc domain.Locator) {
	if len(l.Locators) > 0 {
		l.Locators[len(l.Locators)-1] = loc
	}
}

// Contains reports whether loc already appears in the list.
func (l LocatorHopList) Contains(loc domain.Locator) bool {
	for _, v := range l.Locators {
		if v == loc {
			return true
		}
	}
	return false
}

// Clone returns a deep copy, so callers mutating via SetLast don't alias a
// shared backing array across concurrently-built fan-out copies.
func (l LocatorHopList) Clone() LocatorHopList {
	out := make([]domain.Locator, len(l.Locators))
	copy(out, l.Locators)
	return LocatorHopList{Locators: out}
}
