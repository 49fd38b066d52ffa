package control

import (
	"context"
	"net"
	"time"

	"testing"

	"ilnpnode/internal/battery"
	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/forwarding"
	"ilnpnode/internal/logger"
)

type fakeLink struct {
	broadcasts [][]byte
	sent       []struct {
		bytes   []byte
		nextHop domain.ID
	}
}

func (f *fakeLink) Send(b []byte, nextHop domain.ID) error {
	f.sent = append(f.sent, struct {
		bytes   []byte
		nextHop domain.ID
	}{append([]byte(nil), b...), nextHop})
	return nil
}
func (f *fakeLink) Broadcast(b []byte) error {
	f.broadcasts = append(f.broadcasts, append([]byte(nil), b...))
	return nil
}
func (f *fakeLink) Receive(timeout time.Duration) ([]byte, net.Addr, error) { return nil, nil, nil }
func (f *fakeLink) Register(id domain.ID, addr *net.UDPAddr)                {}
func (f *fakeLink) Close() error                                            { return nil }

type fakeRecorder struct{ count int }

func (f *fakeRecorder) RecordSentPacket(isControl, isForwarded bool) { f.count++ }

func newTestPlane() (*Plane, *fakeLink) {
	lnk := &fakeLink{}
	table := forwarding.New()
	budget := battery.New(100)
	p := New(domain.Address{Loc: 1, ID: 1}, budget, lnk, table, &fakeRecorder{}, &logger.NopLogger{}, time.Second)
	return p, lnk
}

func TestCalcMyLambdaFullBatteryIsMax(t *testing.T) {
	p, _ := newTestPlane()
	if got := p.calcMyLambda(); got != maxLambda {
		t.Fatalf("expected full battery to yield max lambda, got %d", got)
	}
}

func TestCalcMyLambdaZeroBatteryIsZero(t *testing.T) {
	lnk := &fakeLink{}
	table := forwarding.New()
	budget := battery.New(0)
	p := New(domain.Address{Loc: 1, ID: 1}, budget, lnk, table, &fakeRecorder{}, &logger.NopLogger{}, time.Second)
	if got := p.calcMyLambda(); got != 0 {
		t.Fatalf("expected zero battery to yield zero lambda, got %d", got)
	}
}

func TestHandleHelloFromMyLocatorAddsInternalLink(t *testing.T) {
	p, lnk := newTestPlane()
	pkt := codec.Packet{Header: codec.Header{Src: domain.Address{Loc: 1, ID: 2}}}
	msg := codec.BuildControlMessage(codec.ControlHello, codec.Hello{Lambda: 500})

	p.HandleControlPacket(context.Background(), pkt, msg)

	if !p.graph.ContainsInternalLink(domain.ID(1), domain.ID(2)) {
		t.Fatalf("expected internal link to node 2 to be recorded")
	}
	if len(lnk.broadcasts) == 0 {
		t.Fatalf("expected an LSDB broadcast after learning a new neighbour")
	}
	if !p.neighbour.Contains(domain.ID(2)) {
		t.Fatalf("expected neighbour 2 to be tracked")
	}
}

func TestHandleHelloFromOtherLocatorAddsExternalLink(t *testing.T) {
	p, _ := newTestPlane()
	pkt := codec.Packet{Header: codec.Header{Src: domain.Address{Loc: 9, ID: 2}}}
	msg := codec.BuildControlMessage(codec.ControlHello, codec.Hello{Lambda: 500})

	p.HandleControlPacket(context.Background(), pkt, msg)

	if !p.graph.ContainsExternalLink(domain.ID(1), domain.Locator(9), domain.ID(2)) {
		t.Fatalf("expected external link via locator 9 to be recorded")
	}
}

func TestHandleControlPacketIgnoresSelfOriginated(t *testing.T) {
	p, lnk := newTestPlane()
	pkt := codec.Packet{Header: codec.Header{Src: domain.Address{Loc: 1, ID: 1}}}
	msg := codec.BuildControlMessage(codec.ControlHello, codec.Hello{Lambda: 1})

	p.HandleControlPacket(context.Background(), pkt, msg)

	if len(lnk.broadcasts) != 0 {
		t.Fatalf("expected self-originated packets to be ignored entirely")
	}
}

func TestHandleLocatorRErrClearsMatchingExternalRoute(t *testing.T) {
	p, _ := newTestPlane()
	p.table.AddExternalEntry(domain.Locator(42), domain.ID(9))

	pkt := codec.Packet{Header: codec.Header{Src: domain.Address{Loc: 9, ID: 9}}}
	msg := codec.BuildControlMessage(codec.ControlLocatorRErr, codec.LocatorRErr{LostLocator: 42})
	p.HandleControlPacket(context.Background(), pkt, msg)

	if _, ok := p.table.NextHopForLocator(domain.Locator(42)); ok {
		t.Fatalf("expected stale external route to be cleared")
	}
	if !p.updateAvailable {
		t.Fatalf("expected an early recompute to be scheduled")
	}
}

func TestNeighbourLinksExpiry(t *testing.T) {
	n := NewNeighbourLinks()
	n.Add(domain.ID(1))
	for i := 0; i < maxAgeOfLinkSecs/keepaliveIntervalSecs; i++ {
		n.Age()
	}
	expired := n.PopExpired()
	if len(expired) != 1 || expired[0] != domain.ID(1) {
		t.Fatalf("expected neighbour 1 to expire, got %v", expired)
	}
	if n.Contains(domain.ID(1)) {
		t.Fatalf("expected expired neighbour to no longer be tracked")
	}
}
