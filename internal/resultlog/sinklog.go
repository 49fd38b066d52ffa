package resultlog

import (
	"strconv"
	"time"

	"ilnpnode/internal/sensing"
)

// SinkLog records every sensor reading the sink node receives, grounded on
// SinkLog.save in the original source.
type SinkLog struct {
	w *Writer
}

// NewSinkLog opens (or creates) the sink's CSV log at path.
func NewSinkLog(path string) (*SinkLog, error) {
	w, err := NewWriter(path, []string{"origin_id", "temperature", "humidity", "pressure", "luminosity", "received_at"})
	if err != nil {
		return nil, err
	}
	return &SinkLog{w: w}, nil
}

// Record appends one received reading to the log.
func (s *SinkLog) Record(reading sensing.Reading) error {
	return s.w.WriteRow(
		reading.OriginID.String(),
		strconv.FormatFloat(float64(reading.Temperature), 'f', 2, 32),
		strconv.FormatUint(uint64(reading.Humidity), 10),
		strconv.FormatUint(uint64(reading.Pressure), 10),
		strconv.FormatUint(uint64(reading.Luminosity), 10),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// Close closes the underlying file.
func (s *SinkLog) Close() error { return s.w.Close() }
