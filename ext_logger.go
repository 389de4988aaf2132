package store

import "time"

// LoggerExtension logs every processed action together with the state it
// produced. It observes published snapshots rather than wrapping reducers so
// one action yields one log event regardless of how many slices exist.
type LoggerExtension struct {
	logger Logger
}

// NewLoggerExtension constructs a logging extension. A nil logger falls back
// to the package noop.
func NewLoggerExtension(logger Logger) *LoggerExtension {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LoggerExtension{logger: logger}
}

// Kind implements Extension.
func (e *LoggerExtension) Kind() ExtensionKind {
	return ExtensionKindLogging
}

// Init implements Extension. The logging extension contributes no
// meta-reducer.
func (e *LoggerExtension) Init() MetaReducer {
	return nil
}

// Observe implements Observer.
func (e *LoggerExtension) Observe(state any, action Action) {
	e.logger.Log(LogEvent{
		ActionType: action.Type,
		State:      state,
	})
}

// TimingMetaReducer returns a meta-reducer that logs the duration of every
// slice reduction through logger. Kept separate from LoggerExtension so
// callers wanting per-slice timings can add it via AddMetaReducers.
func TimingMetaReducer(logger Logger) MetaReducer {
	if logger == nil {
		logger = noopLogger{}
	}
	return func(next Reducer) Reducer {
		return func(state any, action Action) any {
			start := time.Now()
			result := next(state, action)
			logger.Log(LogEvent{
				ActionType: action.Type,
				State:      result,
				Duration:   time.Since(start),
			})
			return result
		}
	}
}
