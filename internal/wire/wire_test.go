package wire

import (
	"testing"

	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
)

func TestWrapControlLocalUsesLocalWrapperType(t *testing.T) {
	w := WrapControl(codec.ControlHello, codec.Hello{Lambda: 7}, false)
	if w.Type != codec.TransportControlLocal {
		t.Fatalf("expected local control wrapper type, got %v", w.Type)
	}
}

func TestWrapControlExternalUsesExternalWrapperType(t *testing.T) {
	req := codec.LocatorRReq{RequestID: 3, RouteList: codec.LocatorHopList{Locators: []domain.Locator{1}}}
	w := WrapControl(codec.ControlLocatorRReq, req, true)
	if w.Type != codec.TransportControlExternal {
		t.Fatalf("expected external control wrapper type, got %v", w.Type)
	}
}

func TestBuildPacketRoundTripsThroughParsePacket(t *testing.T) {
	src := domain.Address{Loc: 1, ID: 10}
	dst := domain.Address{Loc: 2, ID: 20}
	w := WrapControl(codec.ControlHello, codec.Hello{Lambda: 42}, false)

	pkt := BuildPacket(src, dst, codec.DefaultHopLimit, w)

	parsed, err := codec.ParsePacket(pkt.Marshal())
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if parsed.Header.Src != src || parsed.Header.Dst != dst {
		t.Fatalf("expected src/dst to round-trip, got src=%v dst=%v", parsed.Header.Src, parsed.Header.Dst)
	}
	if parsed.Header.HopLimit != codec.DefaultHopLimit {
		t.Fatalf("expected hop limit %d, got %d", codec.DefaultHopLimit, parsed.Header.HopLimit)
	}
	if int(parsed.Header.PayloadLen) != len(pkt.Payload) {
		t.Fatalf("expected payload length %d, got %d", len(pkt.Payload), parsed.Header.PayloadLen)
	}
}
