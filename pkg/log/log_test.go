package log

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

// mockLogger records events for testing
type mockLogger struct {
	events []Event
}

func (m *mockLogger) Log(event Event) {
	m.events = append(m.events, event)
}

func TestEncodeDecodeEvent(t *testing.T) {
	event := Event{
		Timestamp: time.Now().UTC(),
		Type:      EventRegistersRead,
		Adapter:   AdapterModbus,
		Target:    "10.0.0.5:10001",
		Model:     "IE38",
		Serial:    "IS123456",
		Registers: &RegisterReadEvent{
			Table:    TableInput,
			Start:    100,
			Count:    91,
			Duration: 12 * time.Millisecond,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Type != EventRegistersRead {
		t.Errorf("type = %v, want %v", decoded.Type, EventRegistersRead)
	}
	if decoded.Serial != "IS123456" {
		t.Errorf("serial = %q, want %q", decoded.Serial, "IS123456")
	}
	if decoded.Registers == nil {
		t.Fatal("registers payload lost in roundtrip")
	}
	if decoded.Registers.Start != 100 || decoded.Registers.Count != 91 {
		t.Errorf("register read = %+v", decoded.Registers)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("timestamp = %v, want %v", decoded.Timestamp, event.Timestamp)
	}
}

func TestMultiLoggerCallsAll(t *testing.T) {
	mock1 := &mockLogger{}
	mock2 := &mockLogger{}

	multi := NewMultiLogger(mock1, mock2)

	multi.Log(Event{
		Timestamp: time.Now(),
		Type:      EventConnectionOpened,
		Adapter:   AdapterModbus,
		Target:    "/dev/ttyUSB0",
	})

	for i, mock := range []*mockLogger{mock1, mock2} {
		if len(mock.events) != 1 {
			t.Errorf("logger %d: got %d events, want 1", i, len(mock.events))
			continue
		}
		if mock.events[0].Target != "/dev/ttyUSB0" {
			t.Errorf("logger %d: target = %q", i, mock.events[0].Target)
		}
	}
}

func TestMultiLoggerEmptyList(t *testing.T) {
	multi := NewMultiLogger()

	// Should not panic with empty logger list
	multi.Log(Event{Timestamp: time.Now(), Type: EventUpdateStarted})
}

func TestFileLoggerRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meters.ilog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	events := []Event{
		{Timestamp: time.Now().UTC(), Type: EventUpdateStarted, Adapter: AdapterREST, Serial: "A"},
		{Timestamp: time.Now().UTC(), Type: EventRESTCall, Adapter: AdapterREST, Serial: "A",
			REST: &RESTCallEvent{Method: "GET", Path: "/api/v1/measurements", Status: 200}},
		{Timestamp: time.Now().UTC(), Type: EventUpdateCompleted, Adapter: AdapterREST, Serial: "B",
			Update: &UpdateEvent{Categories: []string{"measurements", "counters"}}},
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Log after close is silently ignored
	fl.Log(Event{Type: EventUpdateFailed})

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var read []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, e)
	}

	if len(read) != len(events) {
		t.Fatalf("read %d events, want %d", len(read), len(events))
	}
	if read[1].REST == nil || read[1].REST.Path != "/api/v1/measurements" {
		t.Errorf("REST payload lost: %+v", read[1])
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meters.ilog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	fl.Log(Event{Timestamp: time.Now().UTC(), Type: EventRegistersRead, Serial: "A"})
	fl.Log(Event{Timestamp: time.Now().UTC(), Type: EventRegistersRead, Serial: "B"})
	fl.Log(Event{Timestamp: time.Now().UTC(), Type: EventUpdateCompleted, Serial: "A"})
	fl.Close()

	wantType := EventRegistersRead
	r, err := NewFilteredReader(path, Filter{Type: &wantType, Serial: "A"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	e, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if e.Serial != "A" || e.Type != EventRegistersRead {
		t.Errorf("unexpected event: %+v", e)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected EOF after single match, got %v", err)
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	adapter := NewSlogAdapter(logger)
	adapter.Log(Event{
		Timestamp: time.Now(),
		Type:      EventRegistersRead,
		Adapter:   AdapterModbus,
		Serial:    "IS42",
		Registers: &RegisterReadEvent{Table: TableHolding, Start: 421, Count: 16},
	})

	out := buf.String()
	for _, want := range []string{"REGISTERS_READ", "MODBUS", "IS42", "HOLDING", "421"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(Event{Type: EventDeviceDiscovered}) // must not panic
}
