package trace

import (
	"sync"

	"github.com/google/uuid"
)

// Logger receives board events. Implementations must be safe for concurrent
// use: events are produced both from the foreground and interrupt contexts.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// MultiLogger fans events out to several loggers in order.
type MultiLogger struct {
	mu      sync.RWMutex
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger. Nil loggers are skipped.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		m.Add(l)
	}
	return m
}

// Add appends a logger to the fan-out list.
func (m *MultiLogger) Add(l Logger) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.loggers = append(m.loggers, l)
	m.mu.Unlock()
}

// Log forwards the event to every registered logger.
func (m *MultiLogger) Log(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// NewSession returns a fresh session identifier.
func NewSession() string {
	return uuid.NewString()
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = (*MultiLogger)(nil)
)
