package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CaptureFileMode is the permission of new capture files. Captures hold
// payloads and session keys, so they get the same owner-only access as
// the local socket files.
const CaptureFileMode os.FileMode = 0o600

// FileLogger appends events to a capture file. It is safe for concurrent
// use; a server's loop goroutine and client goroutines may share one.
type FileLogger struct {
	path string

	mu      sync.Mutex
	file    *os.File
	enc     *cbor.Encoder
	written int
	dropped int
}

// NewFileLogger opens path for appending, creating it with
// CaptureFileMode when missing.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, CaptureFileMode)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		path: path,
		file: f,
		enc:  NewEncoder(f),
	}, nil
}

// Path returns the capture file path.
func (l *FileLogger) Path() string { return l.path }

// Log appends the event. Events that fail to encode or write are counted
// in Dropped instead of disturbing the transport. Calls after Close are
// ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	if err := l.enc.Encode(event); err != nil {
		l.dropped++
		return
	}
	l.written++
}

// Written returns the number of events appended.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Dropped returns the number of events lost to encode or write errors.
func (l *FileLogger) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close closes the file. Further calls are no-ops.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var _ Logger = (*FileLogger)(nil)
