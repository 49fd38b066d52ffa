package discovery

import (
	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
)

// maxRetries bounds how many times a request is retried before the waiting
// packets for it are dropped.
const maxRetries = 3

// ageUntilRetry is how many maintenance ticks pass before an outstanding
// request is considered due for a retry.
const ageUntilRetry = 3

// Record tracks one outstanding route request for a destination
// identifier: how many times it has been retried, how long ago the last
// attempt was, and the packets buffered waiting for a reply.
type Record struct {
	NumAttempts          int
	LastRequestID        uint16
	TimeSinceLastAttempt int
	WaitingPackets       []codec.Packet
}

func (r *Record) recordRetry(newRequestID uint16) {
	r.NumAttempts++
	r.LastRequestID = newRequestID
	r.TimeSinceLastAttempt = 0
}

// CurrentRequests tracks, per destination identifier, the single
// outstanding route request and the packets queued behind it.
type CurrentRequests struct {
	records map[domain.ID]*Record
}

// NewCurrentRequests returns an empty request table.
func NewCurrentRequests() *CurrentRequests {
	return &CurrentRequests{records: make(map[domain.ID]*Record)}
}

// Contains reports whether a request for destinationID is already pending.
func (c *CurrentRequests) Contains(destinationID domain.ID) bool {
	_, ok := c.records[destinationID]
	return ok
}

// AddNewRequest begins tracking a fresh request.
func (c *CurrentRequests) AddNewRequest(destinationID domain.ID, requestID uint16) {
	c.records[destinationID] = &Record{LastRequestID: requestID}
}

// Get returns the record for destinationID, if any.
func (c *CurrentRequests) Get(destinationID domain.ID) (*Record, bool) {
	r, ok := c.records[destinationID]
	return r, ok
}

// AddPacketToDestinationBuffer queues pkt behind the pending request for
// its destination.
func (c *CurrentRequests) AddPacketToDestinationBuffer(pkt codec.Packet) {
	r, ok := c.records[pkt.Header.Dst.ID]
	if !ok {
		return
	}
	r.WaitingPackets = append(r.WaitingPackets, pkt)
}

// RecordRetriedRequest bumps the retry count for destinationID.
func (c *CurrentRequests) RecordRetriedRequest(destinationID domain.ID, newRequestID uint16) {
	if r, ok := c.records[destinationID]; ok {
		r.recordRetry(newRequestID)
	}
}

// AgeRecords increments time-since-last-attempt for every outstanding request.
func (c *CurrentRequests) AgeRecords() {
	for _, r := range c.records {
		r.TimeSinceLastAttempt++
	}
}

// DestinationsOlderThan returns the destination ids whose requests have
// aged past age maintenance ticks since their last attempt.
func (c *CurrentRequests) DestinationsOlderThan(age int) []domain.ID {
	var out []domain.ID
	for dest, r := range c.records {
		if r.TimeSinceLastAttempt > age {
			out = append(out, dest)
		}
	}
	return out
}

// Remove drops the request record for destinationID.
func (c *CurrentRequests) Remove(destinationID domain.ID) {
	delete(c.records, destinationID)
}
