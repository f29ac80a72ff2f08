package events

import "sync"

// Recorder retains the most recent events in memory so that pull-based
// consumers (RPC queries, tests) can observe what the engine emitted without
// subscribing before the fact.
type Recorder struct {
	mu     sync.Mutex
	buf    []Event
	limit  int
	cursor uint64
}

// NewRecorder builds a recorder that keeps at most limit events. A limit of
// zero or below falls back to 1024.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1024
	}
	return &Recorder{limit: limit}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, evt)
	r.cursor++
	if len(r.buf) > r.limit {
		r.buf = r.buf[len(r.buf)-r.limit:]
	}
}

// Recent returns up to n of the most recent events, oldest first.
func (r *Recorder) Recent(n int) []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]Event, n)
	copy(out, r.buf[len(r.buf)-n:])
	return out
}

// Seen reports the total number of events observed, including evicted ones.
func (r *Recorder) Seen() uint64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

// Multiplexer fans a single emit out to several downstream emitters.
type Multiplexer struct {
	mu    sync.RWMutex
	sinks []Emitter
}

// NewMultiplexer builds a multiplexer over the supplied sinks. Nil sinks are
// skipped.
func NewMultiplexer(sinks ...Emitter) *Multiplexer {
	m := &Multiplexer{}
	for _, sink := range sinks {
		m.Attach(sink)
	}
	return m
}

// Attach registers an additional downstream emitter.
func (m *Multiplexer) Attach(sink Emitter) {
	if m == nil || sink == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Emit implements the Emitter interface.
func (m *Multiplexer) Emit(evt Event) {
	if m == nil || evt == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sink := range m.sinks {
		sink.Emit(evt)
	}
}
