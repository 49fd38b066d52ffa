package routingerr

import (
	"errors"
	"testing"

	"ilnpnode/internal/domain"
)

func TestUnknownNextHopErrorUnwrapsToSentinel(t *testing.T) {
	err := &UnknownNextHopError{NextHop: domain.ID(9)}
	if !errors.Is(err, ErrUnknownNextHop) {
		t.Fatalf("expected UnknownNextHopError to unwrap to ErrUnknownNextHop")
	}
}

func TestUnknownNextHopErrorMessageIncludesNextHop(t *testing.T) {
	err := &UnknownNextHopError{NextHop: domain.ID(9)}
	if got := err.Error(); got == "" {
		t.Fatalf("expected a non-empty error message")
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrMalformedPacket,
		ErrUnknownNextHop,
		ErrEnergyExhausted,
		ErrHostSendOnClosed,
		ErrRequestRetryExhausted,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			if errors.Is(a, b) {
				t.Fatalf("expected sentinel %v and %v to be distinct", a, b)
			}
		}
	}
}
