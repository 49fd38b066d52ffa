package resultlog

import (
	"strconv"
	"time"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/logger"
)

// Monitor implements the Recorder collaborator every traffic-originating
// component (control.Plane, discovery.Handler, router.Router) depends on:
// it logs each sent or forwarded packet to a shared CSV results file,
// grounded on Monitor.record_sent_packet/save in the original source's
// sensor.packetmonitor.
type Monitor struct {
	w      *Writer
	nodeID domain.ID
	lgr    logger.Logger
}

// NewMonitor opens (or creates) the results CSV at path.
func NewMonitor(path string, nodeID domain.ID, lgr logger.Logger) (*Monitor, error) {
	w, err := NewWriter(path, []string{"node_id", "sent_at_time", "packet_type", "forwarded"})
	if err != nil {
		return nil, err
	}
	return &Monitor{w: w, nodeID: nodeID, lgr: lgr}, nil
}

// RecordSentPacket appends one row describing a sent or forwarded packet.
// Write failures are logged and otherwise swallowed - a full disk must
// never take down the routing loop that called this.
func (m *Monitor) RecordSentPacket(isControl, isForwarded bool) {
	packetType := "data"
	if isControl {
		packetType = "control"
	}
	err := m.w.WriteRow(
		m.nodeID.String(),
		strconv.FormatInt(time.Now().UTC().UnixNano(), 10),
		packetType,
		strconv.FormatBool(isForwarded),
	)
	if err != nil {
		m.lgr.Warn("failed to record sent packet", logger.F("error", err.Error()))
	}
}

// Close closes the underlying file.
func (m *Monitor) Close() error { return m.w.Close() }
