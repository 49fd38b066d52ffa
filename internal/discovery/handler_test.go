package discovery

import (
	"context"
	"net"
	"time"

	"testing"

	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
	"ilnpnode/internal/forwarding"
	"ilnpnode/internal/logger"
)

type sentPacket struct {
	bytes   []byte
	nextHop domain.ID
}

type fakeLink struct {
	sent []sentPacket
}

func (f *fakeLink) Send(b []byte, nextHop domain.ID) error {
	f.sent = append(f.sent, sentPacket{bytes: append([]byte(nil), b...), nextHop: nextHop})
	return nil
}
func (f *fakeLink) Broadcast(b []byte) error { return nil }
func (f *fakeLink) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	return nil, nil, nil
}
func (f *fakeLink) Register(id domain.ID, addr *net.UDPAddr) {}
func (f *fakeLink) Close() error                             { return nil }

type fakeRecorder struct{ count int }

func (f *fakeRecorder) RecordSentPacket(isControl, isForwarded bool) { f.count++ }

func TestFindRouteDiscardsWithNoNeighbours(t *testing.T) {
	table := forwarding.New()
	lnk := &fakeLink{}
	h := New(domain.Address{Loc: 1, ID: 1}, table, lnk, &fakeRecorder{}, &logger.NopLogger{})

	pkt := codec.Packet{Header: codec.Header{Dst: domain.Address{ID: 99}}}
	h.FindRoute(pkt)

	if len(lnk.sent) != 0 {
		t.Fatalf("expected nothing sent without known external neighbours")
	}
}

func TestFindRouteFansOutAcrossKnownLocators(t *testing.T) {
	table := forwarding.New()
	table.AddExternalEntry(domain.Locator(10), domain.ID(2))
	table.AddExternalEntry(domain.Locator(20), domain.ID(3))
	lnk := &fakeLink{}
	rec := &fakeRecorder{}
	h := New(domain.Address{Loc: 1, ID: 1}, table, lnk, rec, &logger.NopLogger{})

	pkt := codec.Packet{Header: codec.Header{Dst: domain.Address{ID: 99}}}
	h.FindRoute(pkt)

	if len(lnk.sent) != 2 {
		t.Fatalf("expected one request per known external locator, got %d", len(lnk.sent))
	}
	if !h.requests.Contains(domain.ID(99)) {
		t.Fatalf("expected a pending request record for destination 99")
	}
}

func TestHandleLocatorRReqRepliesWhenTargetIsMe(t *testing.T) {
	table := forwarding.New()
	table.AddExternalEntry(domain.Locator(5), domain.ID(7))
	lnk := &fakeLink{}
	h := New(domain.Address{Loc: 1, ID: 1}, table, lnk, &fakeRecorder{}, &logger.NopLogger{})

	pkt := codec.Packet{Header: codec.Header{
		Src: domain.Address{Loc: 5, ID: 50},
		Dst: domain.Address{ID: 1},
	}}
	req := codec.LocatorRReq{RequestID: 1, RouteList: codec.LocatorHopList{Locators: []domain.Locator{5}}}

	h.HandleLocatorRReq(context.Background(), pkt, req)

	if len(lnk.sent) != 1 {
		t.Fatalf("expected exactly one reply to be sent, got %d", len(lnk.sent))
	}
	if lnk.sent[0].nextHop != domain.ID(7) {
		t.Fatalf("expected reply routed via next hop 7, got %v", lnk.sent[0].nextHop)
	}
}

func TestHandleLocatorRReqDiscardsDuplicates(t *testing.T) {
	table := forwarding.New()
	lnk := &fakeLink{}
	h := New(domain.Address{Loc: 1, ID: 1}, table, lnk, &fakeRecorder{}, &logger.NopLogger{})
	h.recent.Add(domain.ID(50), 1)

	pkt := codec.Packet{Header: codec.Header{
		Src: domain.Address{Loc: 5, ID: 50},
		Dst: domain.Address{ID: 2},
	}}
	req := codec.LocatorRReq{RequestID: 1, RouteList: codec.LocatorHopList{Locators: []domain.Locator{5}}}
	h.HandleLocatorRReq(context.Background(), pkt, req)

	if len(lnk.sent) != 0 {
		t.Fatalf("expected duplicate request to be discarded silently")
	}
}

func TestHandleLocatorRRepForMeCachesPathAndFlushesWaitingPackets(t *testing.T) {
	table := forwarding.New()
	table.AddExternalEntry(domain.Locator(10), domain.ID(3))
	lnk := &fakeLink{}
	h := New(domain.Address{Loc: 1, ID: 1}, table, lnk, &fakeRecorder{}, &logger.NopLogger{})

	h.requests.AddNewRequest(domain.ID(99), 7)
	waiting := codec.Packet{Header: codec.Header{Dst: domain.Address{ID: 99}}}
	h.requests.AddPacketToDestinationBuffer(waiting)

	rep := codec.LocatorRRep{
		OriginalDestinationID: 99,
		RouteList:             codec.LocatorHopList{Locators: []domain.Locator{10, 20}},
	}
	pkt := codec.Packet{Header: codec.Header{Dst: domain.Address{ID: 1}}}
	h.HandleLocatorRRep(pkt, rep)

	if len(lnk.sent) != 1 {
		t.Fatalf("expected the buffered packet to be flushed, got %d sends", len(lnk.sent))
	}
	if h.requests.Contains(domain.ID(99)) {
		t.Fatalf("expected request record to be cleared once resolved")
	}
	loc, ok := table.GetLocatorForID(domain.ID(99))
	if !ok || loc != domain.Locator(20) {
		t.Fatalf("expected destination locator cached as 20, got %v ok=%v", loc, ok)
	}
}
