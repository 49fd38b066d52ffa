// Package sensing implements the mock sensor-reading generator that drives
// a node's periodic Send calls, grounded on the original source's
// sensor.datagenerator.MockDataGenerator and SensorReading.
package sensing

import (
	"encoding/binary"
	"fmt"
	"math"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/routingerr"
)

// ReadingSize is the fixed wire size of a Reading: origin_id (8) +
// temperature (4, float32) + humidity (1) + pressure (2) + luminosity (1),
// matching the original's "!QfBHB" struct format.
const ReadingSize = 8 + 4 + 1 + 2 + 1

// Reading is one synthetic environmental sample, originated by a node and
// carried as the payload of an ILNP data packet.
type Reading struct {
	OriginID    domain.ID
	Temperature float32
	Humidity    uint8
	Pressure    uint16
	Luminosity  uint8
}

// Marshal serializes a Reading into its fixed-size wire form.
func (r Reading) Marshal() []byte {
	buf := make([]byte, ReadingSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(r.OriginID))
	binary.BigEndian.PutUint32(buf[8:12], math.Float32bits(r.Temperature))
	buf[12] = r.Humidity
	binary.BigEndian.PutUint16(buf[13:15], r.Pressure)
	buf[15] = r.Luminosity
	return buf
}

// ParseReading parses a wire-form Reading.
func ParseReading(b []byte) (Reading, error) {
	if len(b) < ReadingSize {
		return Reading{}, fmt.Errorf("%w: sensor reading needs %d bytes, got %d", routingerr.ErrMalformedPacket, ReadingSize, len(b))
	}
	return Reading{
		OriginID:    domain.ID(binary.BigEndian.Uint64(b[0:8])),
		Temperature: math.Float32frombits(binary.BigEndian.Uint32(b[8:12])),
		Humidity:    b[12],
		Pressure:    binary.BigEndian.Uint16(b[13:15]),
		Luminosity:  b[15],
	}, nil
}
