package trace

import (
	"io"
	"sync"
	"time"
)

// RingTracer keeps the last N events in memory. The watch loop dumps its
// tail when a reload fails; tests read it via Snapshot.
type RingTracer struct {
	mu     sync.RWMutex
	events []Event // grows to cap, then slot n%cap is overwritten
	n      int     // events ever stored
	level  Level
	start  time.Time
}

// NewRingTracer creates a ring holding up to capacity events (4096 if <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, 0, capacity), level: level, start: time.Now()}
}

// Emit stores a copy of ev, evicting the oldest event when full.
func (t *RingTracer) Emit(ev *Event) {
	if !accepts(t.level, ev) {
		return
	}
	stored := *ev
	t.mu.Lock()
	defer t.mu.Unlock()
	stored.Seq = NextSeq()
	if len(t.events) < cap(t.events) {
		t.events = append(t.events, stored)
	} else {
		t.events[t.n%cap(t.events)] = stored
	}
	t.n++
}

// Snapshot returns a copy of the stored events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.events) < cap(t.events) {
		return append([]Event(nil), t.events...)
	}
	oldest := t.n % cap(t.events)
	return append(append(make([]Event, 0, len(t.events)), t.events[oldest:]...), t.events[:oldest]...)
}

// Dump writes all events to the provided writer in the specified format.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	return t.DumpTail(w, format, 0)
}

// DumpTail writes the last n events, or all of them when n <= 0.
func (t *RingTracer) DumpTail(w io.Writer, format Format, n int) error {
	events := t.Snapshot()
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}

	for i := range events {
		data := FormatEvent(&events[i], format, t.start)
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}

// The ring lives in memory: Flush and Close have nothing to release.
func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
