// Package battery models the node's bounded send/receive energy budget,
// grounded on the original source's sensor.battery.Battery.
package battery

import "sync"

// Budget is a simple bounded counter: every Decrement spends one unit of
// the initial allowance. Once exhausted, the link interface treats further
// sends and receives as a fatal I/O condition (spec §7 EnergyExhausted).
type Budget struct {
	mu           sync.Mutex
	initial      uint64
	remaining    uint64
}

// New creates a Budget with the given initial allowance.
func New(initial uint64) *Budget {
	return &Budget{initial: initial, remaining: initial}
}

// Remaining returns the number of budget units left.
func (b *Budget) Remaining() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Percentage returns the fraction of the original budget remaining, in
// [0,1], used as the battery_fraction input to the lambda metric.
func (b *Budget) Percentage() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initial == 0 {
		return 0
	}
	return float64(b.remaining) / float64(b.initial)
}

// Decrement spends one unit of budget and reports whether any remained
// beforehand. Once it returns false, every subsequent call also returns
// false - the budget never goes negative.
func (b *Budget) Decrement() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	return true
}

// Exhausted reports whether the budget has been fully spent.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining == 0
}
