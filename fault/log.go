package fault

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultLogPath is the file the CLI sender records corrupted transmissions to.
const DefaultLogPath = "corrupted_packets.log"

// Recorder receives one record per corrupted transmission.
type Recorder interface {
	RecordCorrupted(seq int32, original byte) error
}

// Log writes corrupted-packet records, one line each, flushing after every record:
//
//	Corrupted packet: seq=<n>, payload=<original char>
type Log struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	count  int
}

var _ Recorder = (*Log)(nil)

// NewLog creates a Log writing to w. If w is an io.Closer, Close closes it.
func NewLog(w io.Writer) *Log {
	l := &Log{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		l.closer = c
	}

	return l
}

// OpenLog creates (or truncates) the log file at path.
func OpenLog(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // log file path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("fault: open log %q: %w", path, err)
	}

	return NewLog(f), nil
}

// RecordCorrupted appends one record and flushes it.
func (l *Log) RecordCorrupted(seq int32, original byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := fmt.Fprintf(l.w, "Corrupted packet: seq=%d, payload=%c\n", seq, original); err != nil {
		return err
	}
	l.count++

	return l.w.Flush()
}

// Count returns the number of records written.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Close flushes pending data and closes the underlying writer when it is closable.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.w.Flush()
	if l.closer != nil {
		if cerr := l.closer.Close(); err == nil {
			err = cerr
		}
		l.closer = nil
	}

	return err
}

// Discard is a Recorder that drops every record.
var Discard Recorder = discard{}

type discard struct{}

func (discard) RecordCorrupted(int32, byte) error { return nil }
