package log

import "testing"

func TestCombine(t *testing.T) {
	var a, b recordingLogger

	if got := Combine(); got != nil {
		t.Errorf("Combine(): got %T, want nil", got)
	}
	if got := Combine(nil, NoopLogger{}); got != nil {
		t.Errorf("Combine(nil, noop): got %T, want nil", got)
	}
	if got := Combine(nil, &a); got != Logger(&a) {
		t.Errorf("Combine(nil, a): got %T, want the single logger", got)
	}

	combined := Combine(&a, NewMultiLogger(&b, NoopLogger{}))
	m, ok := combined.(*MultiLogger)
	if !ok {
		t.Fatalf("Combine(a, multi): got %T, want *MultiLogger", combined)
	}
	if len(m.loggers) != 3 {
		t.Errorf("nested MultiLogger not flattened: %d loggers", len(m.loggers))
	}

	combined.Log(Event{ConnectionID: "x"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("got %d and %d events, want 1 each", len(a.events), len(b.events))
	}
}

func TestLoggerFunc(t *testing.T) {
	var got []string
	l := LoggerFunc(func(ev Event) { got = append(got, ev.ConnectionID) })
	Combine(l, nil).Log(Event{ConnectionID: "c-1"})

	if len(got) != 1 || got[0] != "c-1" {
		t.Errorf("LoggerFunc: got %v", got)
	}
}
