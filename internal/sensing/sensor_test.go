package sensing

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/logger"
)

type fakeSender struct {
	mu   sync.Mutex
	sent int
}

func (f *fakeSender) Send(data []byte, destID domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent++
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func TestSensorSendsOnEachTick(t *testing.T) {
	gen := NewMockGenerator(domain.ID(1), rand.New(rand.NewSource(1)))
	sender := &fakeSender{}
	s := NewSensor(gen, sender, domain.ID(99), 5*time.Millisecond, &logger.NopLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if sender.count() == 0 {
		t.Fatalf("expected at least one reading to be sent")
	}
}
