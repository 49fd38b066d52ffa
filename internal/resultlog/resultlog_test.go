package resultlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ilnpnode/internal/domain"
	"ilnpnode/internal/logger"
	"ilnpnode/internal/sensing"
)

func TestWriterWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")

	w, err := NewWriter(path, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.WriteRow("1", "2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w2, err := NewWriter(path, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error reopening: %v", err)
	}
	if err := w2.WriteRow("3", "4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %v", len(lines), lines)
	}
	if lines[0] != "a,b" {
		t.Fatalf("expected single header row, got %q", lines[0])
	}
}

func TestSinkLogRecordsReading(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sink.csv")

	s, err := NewSinkLog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()

	reading := sensing.Reading{OriginID: domain.ID(1), Temperature: 20, Humidity: 50, Pressure: 900, Luminosity: 5}
	if err := s.Record(reading); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), reading.OriginID.String()) {
		t.Fatalf("expected origin id in output, got %q", data)
	}
}

func TestMonitorRecordsSentPacket(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")

	m, err := NewMonitor(path, domain.ID(7), &logger.NopLogger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Close()

	m.RecordSentPacket(true, false)
	m.RecordSentPacket(false, true)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "control") || !strings.Contains(out, "data") {
		t.Fatalf("expected both control and data rows, got %q", out)
	}
}
