package sensing

import (
	"context"
	"time"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/logger"
)

// Sender is the narrow collaborator a Sensor needs from the router to
// originate a reading.
type Sender interface {
	Send(data []byte, destID domain.ID) error
}

// Sensor periodically takes a reading and sends it to the configured sink,
// grounded on the original source's Sensor.run_as_sensor loop.
type Sensor struct {
	gen      Generator
	sender   Sender
	sinkID   domain.ID
	interval time.Duration
	lgr      logger.Logger
}

// NewSensor constructs a Sensor sending readings to sinkID every interval.
func NewSensor(gen Generator, sender Sender, sinkID domain.ID, interval time.Duration, lgr logger.Logger) *Sensor {
	return &Sensor{gen: gen, sender: sender, sinkID: sinkID, interval: interval, lgr: lgr}
}

// Run blocks, sending one reading per interval, until ctx is cancelled or
// a send fails (mirroring the original's "terminate on first send error").
func (s *Sensor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reading := s.gen.Next()
			if err := s.sender.Send(reading.Marshal(), s.sinkID); err != nil {
				s.lgr.Warn("terminating sensor loop after send failure", logger.F("error", err.Error()))
				return
			}
			s.lgr.Debug("sent reading", logger.F("temperature", reading.Temperature), logger.F("humidity", reading.Humidity))
		}
	}
}
