package store

import "time"

// LogEvent describes a processed action or an evaluated query for logging.
type LogEvent struct {
	ActionType string
	State      any
	Engine     string
	Expr       string
	Duration   time.Duration
	Err        error
}

// Logger records store events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}
