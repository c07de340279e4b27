package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, ev Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(ev)

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTransport,
		Category:     CategoryMessage,
		RemoteAddr:   "local:/tmp/scim-panel-socket",
		Frame:        &FrameEvent{Size: 256, Data: []byte{0x01, 0x02}},
	})

	if entry["conn_id"] != "conn-123" {
		t.Errorf("conn_id: got %v, want %q", entry["conn_id"], "conn-123")
	}
	if entry["direction"] != "IN" {
		t.Errorf("direction: got %v, want %q", entry["direction"], "IN")
	}
	if entry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v, want %q", entry["layer"], "TRANSPORT")
	}
	if entry["frame_size"] != float64(256) {
		t.Errorf("frame_size: got %v, want %v", entry["frame_size"], 256)
	}
	if entry["remote_addr"] != "local:/tmp/scim-panel-socket" {
		t.Errorf("remote_addr: got %v", entry["remote_addr"])
	}
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	entry := logOne(t, Event{
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerCodec,
		Category:     CategoryMessage,
		PeerType:     "FrontEnd",
		Message:      &MessageEvent{Commands: []uint32{2, 5}, ValueCount: 2, Summary: "REPLY OK"},
	})

	if entry["values"] != float64(2) {
		t.Errorf("values: got %v, want 2", entry["values"])
	}
	if entry["summary"] != "REPLY OK" {
		t.Errorf("summary: got %v", entry["summary"])
	}
	if entry["peer_type"] != "FrontEnd" {
		t.Errorf("peer_type: got %v", entry["peer_type"])
	}
}

func TestSlogAdapterLogsStateAndError(t *testing.T) {
	entry := logOne(t, Event{
		Layer:       LayerSession,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityServer, NewState: "RUNNING", Reason: "started"},
	})
	if entry["entity"] != "SERVER" || entry["new_state"] != "RUNNING" || entry["reason"] != "started" {
		t.Errorf("state attrs: got %v", entry)
	}

	code := 3
	entry = logOne(t, Event{
		Layer:    LayerTransport,
		Category: CategoryError,
		Error:    &ErrorEventData{Layer: LayerTransport, Message: "bad magic", Code: &code, Context: "read", Reason: "magic"},
	})
	if entry["error_msg"] != "bad magic" || entry["error_code"] != float64(3) || entry["error_reason"] != "magic" {
		t.Errorf("error attrs: got %v", entry)
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b recordingLogger
	m := NewMultiLogger(&a, NoopLogger{}, &b)
	m.Log(Event{ConnectionID: "x"})
	m.Log(Event{ConnectionID: "y"})

	if len(a.events) != 2 || len(b.events) != 2 {
		t.Fatalf("fan out: got %d and %d events, want 2 each", len(a.events), len(b.events))
	}
	if a.events[1].ConnectionID != "y" {
		t.Errorf("order not preserved: %+v", a.events)
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(ev Event) { r.events = append(r.events, ev) }

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerCodec.String(), "CODEC"},
		{LayerSession.String(), "SESSION"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryError.String(), "ERROR"},
		{Category(1).String(), "UNKNOWN"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
