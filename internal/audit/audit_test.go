package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, name := range []string{"a", "b", "c"} {
		d.Emit(context.Background(), Event{EventType: name})
	}
	d.Close()

	for _, want := range []string{"a", "b", "c"} {
		select {
		case got := <-sink.Events():
			if got.EventType != want {
				t.Fatalf("expected %q, got %q", want, got.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "x"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped events")
	}
	close(sink.release)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	MultiSink{NewJSONWriterSink(&buf), nil, NoOpSink{}}.Emit(context.Background(), Event{
		ID:        "id-1",
		EventType: "replay_detected",
		SessionID: "sid",
	})

	line := strings.TrimSpace(buf.String())
	var got map[string]any
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if got["event_type"] != "replay_detected" || got["session_id"] != "sid" {
		t.Fatalf("unexpected payload %v", got)
	}
	if _, ok := got["subject_id"]; ok {
		t.Fatal("empty subject must be omitted")
	}
}

func TestDispatcherStampsEvents(t *testing.T) {
	sink := NewChannelSink(1)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()

	got := <-sink.Events()
	if got.ID == "" || got.Timestamp.IsZero() {
		t.Fatalf("expected stamped event, got %+v", got)
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("boom") }

func TestDispatcherSurvivesPanickingSink(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, panicSink{})
	d.Emit(context.Background(), Event{EventType: "a"})
	d.Emit(context.Background(), Event{EventType: "b"})
	d.Close()
}
