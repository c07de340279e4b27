package log

// Logger receives protocol capture events.
//
// Sockets, framers and the handshake call Log on the goroutine doing the
// I/O, which for a server is the poll loop. Implementations must return
// quickly and must not call back into the transport.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
