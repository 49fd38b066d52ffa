// Package resultlog implements the CSV result writers an operator inspects
// after a run: the sink's received-reading log and the per-node sent-packet
// log, grounded on the original source's sensor.datagenerator.SinkLog and
// sensor.packetmonitor.Monitor, following the teacher's internal/client/
// tester/writer.CSVWriter incremental-append style.
package resultlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

// Writer appends rows to a CSV file, writing the header once on first
// creation. A syscall.Flock guards the file across OS processes - this
// repo, like the original, may run one process per simulated node writing
// into a file shared with others (the sink process and every sensor
// process sharing one results file), so an in-process mutex alone (the
// teacher's CSVWriter) is not enough; this mirrors the original's
// fcntl.flock use in packetmonitor.py/datagenerator.py directly.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	csv    *csv.Writer
	closed bool
}

// NewWriter opens (or creates) path for append, writing header if the file
// is currently empty.
func NewWriter(path string, header []string) (*Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory %q: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open csv file: %w", err)
	}

	w := &Writer{file: file, csv: csv.NewWriter(file)}
	if err := w.withLock(func() error {
		info, statErr := file.Stat()
		if statErr != nil {
			return statErr
		}
		if info.Size() == 0 {
			if err := w.csv.Write(header); err != nil {
				return err
			}
			w.csv.Flush()
			return w.csv.Error()
		}
		return nil
	}); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) withLock(fn func() error) error {
	if err := syscall.Flock(int(w.file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("cannot lock csv file: %w", err)
	}
	defer syscall.Flock(int(w.file.Fd()), syscall.LOCK_UN)
	return fn()
}

// WriteRow appends one row, flushing immediately so a crash never loses a
// fully-written row.
func (w *Writer) WriteRow(fields ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("write on closed result writer")
	}
	return w.withLock(func() error {
		if err := w.csv.Write(fields); err != nil {
			return fmt.Errorf("csv write error: %w", err)
		}
		w.csv.Flush()
		return w.csv.Error()
	})
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}
