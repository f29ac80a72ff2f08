package events

import (
	"fmt"
	"testing"
)

type testEvent struct {
	kind string
}

func (e testEvent) EventType() string { return e.kind }

func TestRecorderKeepsMostRecent(t *testing.T) {
	recorder := NewRecorder(3)
	for i := 0; i < 5; i++ {
		recorder.Emit(testEvent{kind: fmt.Sprintf("evt-%d", i)})
	}
	if got := recorder.Seen(); got != 5 {
		t.Fatalf("seen %d, want 5", got)
	}
	recent := recorder.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("recent length %d, want 3", len(recent))
	}
	for i, evt := range recent {
		want := fmt.Sprintf("evt-%d", i+2)
		if evt.EventType() != want {
			t.Fatalf("recent[%d] = %s, want %s", i, evt.EventType(), want)
		}
	}
	recent = recorder.Recent(1)
	if len(recent) != 1 || recent[0].EventType() != "evt-4" {
		t.Fatalf("unexpected single recent event")
	}
}

func TestRecorderNilSafety(t *testing.T) {
	var recorder *Recorder
	recorder.Emit(testEvent{kind: "noop"})
	if recorder.Recent(1) != nil {
		t.Fatal("nil recorder should return no events")
	}
	if recorder.Seen() != 0 {
		t.Fatal("nil recorder should report zero seen")
	}
}

func TestMultiplexerFansOut(t *testing.T) {
	a := NewRecorder(8)
	b := NewRecorder(8)
	mux := NewMultiplexer(a, nil, b)
	mux.Emit(testEvent{kind: "fanout"})
	if a.Seen() != 1 || b.Seen() != 1 {
		t.Fatalf("fan-out missed a sink: a=%d b=%d", a.Seen(), b.Seen())
	}

	c := NewRecorder(8)
	mux.Attach(c)
	mux.Emit(testEvent{kind: "late"})
	if c.Seen() != 1 {
		t.Fatalf("late sink missed the event: %d", c.Seen())
	}
}
