package log

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends meter events to an .ilog capture file. A mutex
// serializes writers, so one FileLogger can serve every device in a
// process.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder // nil once closed
}

// NewFileLogger opens path for appending, creating it with mode 0644 when
// absent. An existing capture grows rather than being truncated.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, encoder: NewEncoder(f)}, nil
}

// Log appends the event to the capture. Capture is best effort: write
// errors are dropped, and events logged after Close are ignored.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.encoder == nil {
		return
	}
	_ = l.encoder.Encode(event)
}

// Close closes the capture file. Idempotent.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.encoder == nil {
		return nil
	}
	l.encoder = nil
	return l.file.Close()
}

var _ Logger = (*FileLogger)(nil)
