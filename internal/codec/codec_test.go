package codec

import (
	"testing"

	"ilnpnode/internal/domain"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Version:      6,
		TrafficClass: 0x2A,
		FlowLabel:    0x1ABCD,
		PayloadLen:   12,
		NextHeader:   59,
		HopLimit:     32,
		Src:          domain.Address{Loc: 0x10, ID: 0x1},
		Dst:          domain.Address{Loc: 0x20, ID: 0x2},
	}
	buf := h.Marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(buf))
	}
	parsed, err := ParseHeader(append(buf, make([]byte, 12)...))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if parsed != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, h)
	}
}

func TestParseHeaderRejectsShortBuffer(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestParseHeaderRejectsOverlongPayload(t *testing.T) {
	h := Header{Version: 6, PayloadLen: 9000}
	buf := h.Marshal()
	if _, err := ParseHeader(buf); err == nil {
		t.Fatalf("expected error for payload length exceeding buffer")
	}
}

func TestParseHeaderRejectsWrongVersion(t *testing.T) {
	h := Header{Version: 4, PayloadLen: 0}
	buf := h.Marshal()
	if _, err := ParseHeader(buf); err == nil {
		t.Fatalf("expected error for unsupported version")
	}
}

func TestDecrementHopLimitSaturatesAtZero(t *testing.T) {
	h := Header{HopLimit: 0}
	h.DecrementHopLimit()
	if h.HopLimit != 0 {
		t.Fatalf("expected hop limit to saturate at 0, got %d", h.HopLimit)
	}
}

func TestWrapperRoundTrip(t *testing.T) {
	w := BuildLocalControlWrapper([]byte{1, 2, 3, 4})
	buf := w.Marshal()
	parsed, err := ParseWrapper(buf)
	if err != nil {
		t.Fatalf("ParseWrapper: %v", err)
	}
	if parsed.Type != TransportControlLocal || !parsed.IsControl() {
		t.Fatalf("expected local control wrapper, got %+v", parsed)
	}
	if string(parsed.Body) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected body: %v", parsed.Body)
	}
}

func TestLocatorHopListAppendAndSetLast(t *testing.T) {
	list := LocatorHopList{}
	list = list.Append(domain.Locator(1))
	list = list.Append(domain.Locator(2))
	list.SetLast(domain.Locator(99))
	if list.Locators[1] != domain.Locator(99) {
		t.Fatalf("SetLast did not overwrite final entry: %v", list.Locators)
	}
	if !list.Contains(domain.Locator(1)) || list.Contains(domain.Locator(2)) {
		t.Fatalf("Contains behaved unexpectedly: %v", list.Locators)
	}
}

func TestControlMessageRoundTripHello(t *testing.T) {
	msg := BuildControlMessage(ControlHello, Hello{Lambda: 123456})
	buf := msg.Marshal()
	parsed, err := ParseControlMessage(buf)
	if err != nil {
		t.Fatalf("ParseControlMessage: %v", err)
	}
	hello, ok := parsed.Body.(Hello)
	if !ok || hello.Lambda != 123456 {
		t.Fatalf("unexpected parsed body: %+v", parsed.Body)
	}
}

func TestControlMessageRoundTripLSDB(t *testing.T) {
	lsdb := LSDB{
		SeqNumber:     7,
		InternalLinks: []InternalLink{{A: 1, ALambda: 10, B: 2, BLambda: 20}},
		ExternalLinks: []ExternalLink{{BorderNode: 1, Locator: 0x99, BridgeNode: 3, BridgeLambda: 30}},
	}
	msg := BuildControlMessage(ControlLSDB, lsdb)
	parsed, err := ParseControlMessage(msg.Marshal())
	if err != nil {
		t.Fatalf("ParseControlMessage: %v", err)
	}
	got, ok := parsed.Body.(LSDB)
	if !ok {
		t.Fatalf("expected LSDB body, got %T", parsed.Body)
	}
	if got.SeqNumber != 7 || len(got.InternalLinks) != 1 || len(got.ExternalLinks) != 1 {
		t.Fatalf("unexpected parsed LSDB: %+v", got)
	}
	if got.InternalLinks[0] != lsdb.InternalLinks[0] {
		t.Fatalf("internal link mismatch: %+v", got.InternalLinks[0])
	}
}

func TestParseControlMessageRejectsUnknownType(t *testing.T) {
	header := ControlHeader{Type: 99, Length: 0}
	if _, err := ParseControlMessage(header.Marshal()); err == nil {
		t.Fatalf("expected error for unknown control type")
	}
}
