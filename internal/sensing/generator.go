package sensing

import (
	"math/rand"

	"ilnpnode/internal/domain"
)

// Generator produces the next Reading for a node, evolving smoothly from
// the last one instead of sampling independently each time.
type Generator interface {
	Next() Reading
}

// MockGenerator evolves a Reading by a small random walk each call,
// clamped to plausible ranges, grounded on MockDataGenerator's
// generate_temperature/humidity/presssure/luminosity.
type MockGenerator struct {
	last Reading
	rng  *rand.Rand
}

// NewMockGenerator seeds a generator for originID starting from the
// original's baseline reading (0°C in Kelvin, 50% humidity, 900hPa,
// luminosity 2).
func NewMockGenerator(originID domain.ID, rng *rand.Rand) *MockGenerator {
	return &MockGenerator{
		last: Reading{
			OriginID:    originID,
			Temperature: 273.15,
			Humidity:    50,
			Pressure:    900,
			Luminosity:  2,
		},
		rng: rng,
	}
}

// Next evolves and returns the next reading, also becoming the new
// baseline for the following call.
func (g *MockGenerator) Next() Reading {
	g.last = Reading{
		OriginID:    g.last.OriginID,
		Temperature: g.nextTemperature(),
		Humidity:    g.nextHumidity(),
		Pressure:    g.nextPressure(),
		Luminosity:  g.nextLuminosity(),
	}
	return g.last
}

func (g *MockGenerator) nextTemperature() float32 {
	val := g.last.Temperature + float32(g.rng.Float64()*2-1)
	if val < 0 {
		return 0
	}
	return val
}

func (g *MockGenerator) nextHumidity() uint8 {
	delta := g.rng.Intn(11) - 5 // [-5, 5]
	val := int(g.last.Humidity) + delta
	return clampUint8(val, 0, 100)
}

func (g *MockGenerator) nextPressure() uint16 {
	delta := g.rng.Intn(11) - 5
	val := int(g.last.Pressure) + delta
	if val < 0 {
		return 0
	}
	return uint16(val)
}

func (g *MockGenerator) nextLuminosity() uint8 {
	delta := g.rng.Intn(3) - 1 // [-1, 1]
	val := int(g.last.Luminosity) + delta
	return clampUint8(val, 0, 12)
}

func clampUint8(val, lo, hi int) uint8 {
	if val < lo {
		return uint8(lo)
	}
	if val > hi {
		return uint8(hi)
	}
	return uint8(val)
}
