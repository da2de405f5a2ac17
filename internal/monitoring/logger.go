// Package monitoring holds the process-wide diagnostic loggers used by the
// pose pipeline and its inputs.
package monitoring

import (
	"io"
	"log"
	"sync"
)

// Logf is the ops logger for lifecycle events, warnings and report captures.
// It defaults to log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters configures the optional verbose streams. A nil writer disables
// that stream.
type LogWriters struct {
	// Diag receives periodic statistics and tuning context.
	Diag io.Writer
	// Trace receives one line per processed frame.
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters installs the verbose streams.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[pose] ", log.LstdFlags|log.Lmicroseconds)
}

// Diagf logs to the diag stream if configured.
func Diagf(format string, v ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, v...)
	}
}

// Tracef logs to the trace stream if configured.
func Tracef(format string, v ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, v...)
	}
}
