package trace

import "errors"

type nopTracer struct{}

func (nopTracer) Emit(*Event)   {}
func (nopTracer) Flush() error  { return nil }
func (nopTracer) Close() error  { return nil }
func (nopTracer) Level() Level  { return LevelOff }
func (nopTracer) Enabled() bool { return false }

// Nop discards everything. FromContext returns it when no tracer is attached.
var Nop Tracer = nopTracer{}

// Tee sends every event to several tracers, e.g. a file stream plus the
// in-memory ring the watch loop dumps after a failed reload.
type Tee struct {
	tracers []Tracer
	level   Level
}

// NewTee combines tracers under one level.
func NewTee(level Level, tracers ...Tracer) *Tee {
	return &Tee{tracers: tracers, level: level}
}

// Emit hands each tracer its own copy; they stamp Seq themselves.
func (t *Tee) Emit(ev *Event) {
	for _, tr := range t.tracers {
		cp := *ev
		tr.Emit(&cp)
	}
}

func (t *Tee) Flush() error {
	errs := make([]error, 0, len(t.tracers))
	for _, tr := range t.tracers {
		errs = append(errs, tr.Flush())
	}
	return errors.Join(errs...)
}

func (t *Tee) Close() error {
	errs := make([]error, 0, len(t.tracers))
	for _, tr := range t.tracers {
		errs = append(errs, tr.Close())
	}
	return errors.Join(errs...)
}

func (t *Tee) Level() Level  { return t.level }
func (t *Tee) Enabled() bool { return t.level > LevelOff }
