package router

import (
	"context"
	"net"
	"testing"
	"time"

	"ilnpnode/internal/battery"
	"ilnpnode/internal/codec"
	"ilnpnode/internal/control"
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
	incoming chan []byte
	closed   bool
}

func newFakeLink() *fakeLink {
	return &fakeLink{incoming: make(chan []byte, 16)}
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

func (f *fakeLink) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	select {
	case b := <-f.incoming:
		return b, nil, nil
	case <-time.After(timeout):
		return nil, nil, nil
	}
}

func (f *fakeLink) Register(id domain.ID, addr *net.UDPAddr) {}

func (f *fakeLink) Close() error {
	f.closed = true
	return nil
}

type fakeRecorder struct{ count int }

func (f *fakeRecorder) RecordSentPacket(isControl, isForwarded bool) { f.count++ }

func newTestRouter(t *testing.T) (*Router, *fakeLink, *forwarding.Table) {
	t.Helper()
	lnk := newFakeLink()
	table := forwarding.New()
	budget := battery.New(100)
	myAddr := domain.Address{Loc: 1, ID: 1}
	plane := control.New(myAddr, budget, lnk, table, &fakeRecorder{}, &logger.NopLogger{}, time.Hour)
	r := New(myAddr, lnk, table, plane, &fakeRecorder{}, &logger.NopLogger{})
	return r, lnk, table
}

func buildDataPacket(src, dst domain.Address, body []byte) codec.Packet {
	w := codec.BuildDataWrapper(body)
	payload := w.Marshal()
	header := codec.Header{
		Version:    6,
		NextHeader: codec.NextHeaderNone,
		HopLimit:   codec.DefaultHopLimit,
		PayloadLen: uint16(len(payload)),
		Src:        src,
		Dst:        dst,
	}
	return codec.Packet{Header: header, Payload: payload}
}

func TestRouterDeliversPacketAddressedToMe(t *testing.T) {
	r, lnk, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	pkt := buildDataPacket(domain.Address{Loc: 1, ID: 2}, domain.Address{Loc: 1, ID: 1}, []byte("hello"))
	lnk.incoming <- pkt.Marshal()

	data, srcID, err := r.ReceiveFrom(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected payload hello, got %q", data)
	}
	if srcID != domain.ID(2) {
		t.Fatalf("expected source id 2, got %v", srcID)
	}
}

func TestRouterForwardsUsingKnownNextHop(t *testing.T) {
	r, lnk, table := newTestRouter(t)
	table.RecordLocatorForID(domain.ID(7), domain.Locator(1))
	table.AddInternalEntry(domain.ID(7), domain.ID(7))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	pkt := buildDataPacket(domain.Address{Loc: 1, ID: 2}, domain.Address{Loc: 1, ID: 7}, []byte("relay"))
	lnk.incoming <- pkt.Marshal()

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("expected packet to be forwarded to next hop 7")
		default:
		}
		if len(lnk.sent) > 0 {
			if lnk.sent[0].nextHop != domain.ID(7) {
				t.Fatalf("expected forward to id 7, got %v", lnk.sent[0].nextHop)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRouterSendQueuesOntoSameProcessingPathAsReceive(t *testing.T) {
	r, lnk, table := newTestRouter(t)
	table.RecordLocatorForID(domain.ID(3), domain.Locator(1))
	table.AddInternalEntry(domain.ID(3), domain.ID(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)

	if err := r.Send([]byte("outbound"), domain.ID(3)); err != nil {
		t.Fatalf("unexpected error from Send: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("expected host-sent packet to be forwarded to next hop 3")
		default:
		}
		if len(lnk.sent) > 0 {
			if lnk.sent[0].nextHop != domain.ID(3) {
				t.Fatalf("expected forward to id 3, got %v", lnk.sent[0].nextHop)
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRouterSendAfterCloseFails(t *testing.T) {
	r, _, _ := newTestRouter(t)
	if err := r.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := r.Send([]byte("x"), domain.ID(1)); err == nil {
		t.Fatalf("expected send on closed router to fail")
	}
}
