package trace

import (
	"sync/atomic"
	"time"
)

var (
	globalSeq   atomic.Uint64
	globalSpans atomic.Uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 { return globalSeq.Add(1) }

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 { return globalSpans.Add(1) }

// stamp builds an event with a fresh ID; sinks assign Seq on Emit.
func stamp(kind Kind, scope Scope, name, detail string, parent uint64) Event {
	return Event{
		Time:     time.Now(),
		Kind:     kind,
		Scope:    scope,
		SpanID:   NextSpanID(),
		ParentID: parent,
		Name:     name,
		Detail:   detail,
	}
}

func wants(t Tracer, scope Scope) bool {
	return t != nil && t.Enabled() && t.Level().ShouldEmit(scope)
}

// Span is an open interval: Begin emits its start, End its finish. A Span
// from a tracer that filters its scope is inert, so callers never check.
type Span struct {
	tracer Tracer
	begin  Event
	extra  map[string]string
}

// Begin opens a span under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if !wants(t, scope) {
		return &Span{}
	}
	s := &Span{tracer: t, begin: stamp(KindSpanBegin, scope, name, "", parent)}
	ev := s.begin
	t.Emit(&ev)
	return s
}

// End emits the closing event with detail and returns the span's duration.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.tracer == nil {
		return 0
	}
	ev := s.begin
	ev.Time = time.Now()
	ev.Kind = KindSpanEnd
	ev.Detail = detail
	ev.Extra = s.extra
	s.tracer.Emit(&ev)
	return ev.Time.Sub(s.begin.Time)
}

// WithExtra attaches key=value to the closing event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.tracer == nil {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 2)
	}
	s.extra[key] = value
	return s
}

// ID is the span's identifier, 0 for an inert span.
func (s *Span) ID() uint64 {
	if s == nil || s.tracer == nil {
		return 0
	}
	return s.begin.SpanID
}

// Point emits an instant event, e.g. "trigger ignored" or "sentinel missing".
func Point(t Tracer, scope Scope, name, detail string, parent uint64) {
	if !wants(t, scope) {
		return
	}
	ev := stamp(KindPoint, scope, name, detail, parent)
	t.Emit(&ev)
}

// Error emits a failure event. Unlike spans and points it is kept at LevelError.
func Error(t Tracer, scope Scope, name string, err error, parent uint64) {
	if t == nil || !t.Enabled() || err == nil {
		return
	}
	ev := stamp(KindError, scope, name, err.Error(), parent)
	t.Emit(&ev)
}
