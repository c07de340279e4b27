package log

// MultiLogger sends every event to several loggers in order, typically a
// FileLogger capture plus a SlogAdapter on the console.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger over loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log sends the event to all loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Combine merges loggers into one. Nil loggers and NoopLogger are
// dropped and nested MultiLoggers are flattened. It returns nil when
// nothing is left, so callers can keep their "logger != nil" checks.
func Combine(loggers ...Logger) Logger {
	var out []Logger
	for _, l := range loggers {
		switch v := l.(type) {
		case nil, NoopLogger:
		case *MultiLogger:
			if v != nil {
				out = append(out, v.loggers...)
			}
		default:
			out = append(out, l)
		}
	}

	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return NewMultiLogger(out...)
	}
}

var _ Logger = (*MultiLogger)(nil)
