// Package seqgen implements a bounded wraparound sequence counter shared by
// LSDB flood sequence numbers and route-discovery request ids, grounded on
// the original source's sensor.network.router.util.BoundedSequenceGenerator.
package seqgen

import "sync"

// Bounded generates successive values in [0, max], wrapping back to 0 once
// max is exceeded.
type Bounded struct {
	mu      sync.Mutex
	max     uint16
	current uint16
	started bool
}

// New creates a generator that wraps at max (inclusive).
func New(max uint16) *Bounded {
	return &Bounded{max: max}
}

// Next returns the next value in the sequence.
func (b *Bounded) Next() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		b.started = true
		return b.current
	}
	if b.current >= b.max {
		b.current = 0
	} else {
		b.current++
	}
	return b.current
}

// SetToLastSeen moves the generator to v, the last value observed from the
// network, so the next locally originated value is the one after v
// (wrapping at max). v replaces the current value even if it is lower.
func (b *Bounded) SetToLastSeen(v uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = v
	b.started = true
}
