// Package reload runs the hot-reload cycle: take a fragment from the editor or
// the file, write the assembled document through to disk, compile, and either
// swap in the new program or publish diagnostics while the old one keeps
// running.
//
// The Coordinator is single-threaded. The editor drives it from its update
// loop and the watch command from its polling loop.
package reload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"shaderlab/internal/diag"
	"shaderlab/internal/observ"
	"shaderlab/internal/render"
	"shaderlab/internal/shader"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
)

// Options wires a Coordinator to its collaborators. Template, Adapter and
// Store are required; the rest default to no-ops.
type Options struct {
	Template  *template.Template
	Adapter   *shader.Adapter
	Store     Store
	Editor    Editor
	Detector  ChangeDetector
	Publisher diag.Publisher
	Playback  PlaybackResetter

	// DefaultFragment replaces a missing or empty user region; the
	// template's own default when empty.
	DefaultFragment template.Fragment
	LineMode        LineMode
	// Uniforms are resolved after every link; render.UniformNames when nil.
	Uniforms       []string
	MaxDiagnostics int

	Tracer trace.Tracer
	Timer  *observ.Timer
}

// Coordinator owns the active program and the vertex stage it is linked with.
type Coordinator struct {
	opts Options

	state      State
	pending    bool
	vertex     shader.ShaderID
	active     *ActiveProgram
	generation uint64
	started    bool
}

// New validates opts and returns an idle coordinator. Call Start before Tick.
func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.Template == nil:
		return nil, errors.New("reload: template is required")
	case opts.Adapter == nil:
		return nil, errors.New("reload: shader adapter is required")
	case opts.Store == nil:
		return nil, errors.New("reload: document store is required")
	}
	if opts.Editor == nil {
		opts.Editor = &MemoryEditor{}
	}
	if opts.Publisher == nil {
		opts.Publisher = diag.Nop{}
	}
	if opts.DefaultFragment == "" {
		opts.DefaultFragment = opts.Template.DefaultFragment()
	}
	if opts.Uniforms == nil {
		opts.Uniforms = render.UniformNames
	}
	return &Coordinator{opts: opts}, nil
}

// State returns the current state; Idle between cycles.
func (c *Coordinator) State() State { return c.state }

// Active returns the program to draw with, nil until the first successful link.
func (c *Coordinator) Active() *ActiveProgram { return c.active }

// Start compiles the fixed vertex stage and performs the initial load. A
// vertex stage that does not compile is fatal; a broken fragment is not.
func (c *Coordinator) Start(ctx context.Context) (Outcome, error) {
	if c.started {
		return Outcome{}, errors.New("reload: already started")
	}
	t := c.tracer(ctx)
	span := trace.Begin(t, trace.ScopeStage, "compile:vertex", trace.CurrentSpan(ctx))
	res := c.opts.Adapter.Compile(shader.StageVertex, c.opts.Template.VertexSource())
	if !res.OK() {
		span.End("failed")
		err := fmt.Errorf("vertex stage: %w", res.Err())
		trace.Error(t, trace.ScopeStage, "compile:vertex", err, span.ID())
		return Outcome{Trigger: TriggerStartup, State: StateFailed, Failure: FailCompile, Log: res.Log, Err: err}, err
	}
	span.End("ok")
	c.vertex = res.Handle
	c.started = true
	return c.Reload(ctx, TriggerStartup)
}

// RequestCompile asks the next Tick to compile the editor contents.
func (c *Coordinator) RequestCompile() {
	if c.state == StateCompiling {
		trace.Point(c.opts.Tracer, trace.ScopeReload, "trigger ignored", "user request while compiling", 0)
		return
	}
	c.pending = true
}

// Tick checks for an external change, then for a pending user request, and
// runs at most one reload. ran is false when there was nothing to do.
func (c *Coordinator) Tick(ctx context.Context) (out Outcome, ran bool, err error) {
	if !c.started {
		return Outcome{}, false, errors.New("reload: Tick before Start")
	}
	if c.state == StateCompiling {
		trace.Point(c.tracer(ctx), trace.ScopeReload, "trigger ignored", "tick while compiling", trace.CurrentSpan(ctx))
		return Outcome{}, false, nil
	}
	switch {
	case c.opts.Detector != nil && c.opts.Detector.Changed():
		out, err = c.Reload(ctx, TriggerExternal)
		return out, true, err
	case c.pending:
		c.pending = false
		out, err = c.Reload(ctx, TriggerUser)
		return out, true, err
	}
	return Outcome{}, false, nil
}

// Save writes the editor contents to disk without compiling.
func (c *Coordinator) Save(ctx context.Context) error {
	doc := c.opts.Template.Assemble(c.opts.Editor.Text())
	if err := c.opts.Store.Save(doc); err != nil {
		trace.Error(c.tracer(ctx), trace.ScopeReload, "save", err, trace.CurrentSpan(ctx))
		return err
	}
	c.syncDetector()
	return nil
}

// Reload runs one full cycle for trigger.
func (c *Coordinator) Reload(ctx context.Context, trigger Trigger) (Outcome, error) {
	out := Outcome{Trigger: trigger, Generation: c.generation}
	if !c.started {
		out.State, out.Failure, out.Err = StateFailed, FailIO, errors.New("reload: not started")
		return out, out.Err
	}
	if c.state == StateCompiling {
		trace.Point(c.tracer(ctx), trace.ScopeReload, "trigger ignored", trigger.String(), trace.CurrentSpan(ctx))
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		out.State, out.Failure, out.Err = StateFailed, FailIO, err
		return out, err
	}

	t := c.tracer(ctx)
	span := trace.Begin(t, trace.ScopeReload, "reload:"+trigger.String(), trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	c.opts.Timer.Reset()

	c.state = StateCompiling
	defer func() { c.state = StateIdle }()

	out = c.cycle(ctx, trigger, out)

	span.WithExtra("state", out.State.String()).
		WithExtra("generation", strconv.FormatUint(out.Generation, 10))
	if out.Failure != FailNone {
		span.WithExtra("failure", out.Failure.String())
	}
	span.End(fmt.Sprintf("%d diagnostics", out.Diagnostics.Len()))
	if out.Err != nil {
		trace.Error(t, trace.ScopeReload, "reload:"+trigger.String(), out.Err, span.ID())
	}
	if out.Failure == FailIO {
		return out, out.Err
	}
	return out, nil
}

func (c *Coordinator) cycle(ctx context.Context, trigger Trigger, out Outcome) Outcome {
	fail := func(kind Failure, err error) Outcome {
		out.State, out.Failure, out.Err = StateFailed, kind, err
		return out
	}

	// 1. fragment
	idx := c.opts.Timer.Begin("load")
	frag, src, err := c.fragmentFor(ctx, trigger)
	c.opts.Timer.End(idx, trigger.String())
	if err != nil {
		return fail(FailIO, err)
	}
	out.Fallback = src != regionFromEditor && src != regionFromDisk
	out.Unsaved = src == regionForeign

	// 2. write-through; a document without sentinels is not ours to replace
	idx = c.opts.Timer.Begin("assemble")
	doc := c.opts.Template.Assemble(frag)
	if !out.Unsaved {
		err = c.opts.Store.Save(doc)
	}
	c.opts.Timer.End(idx, "")
	if err != nil {
		return fail(FailIO, err)
	}
	c.syncDetector()

	// 3. compile
	idx = c.opts.Timer.Begin("compile")
	stage := trace.Begin(c.tracer(ctx), trace.ScopeStage, "compile:fragment", trace.CurrentSpan(ctx))
	res := c.opts.Adapter.Compile(shader.StageFragment, string(doc))
	stage.End(strconv.FormatBool(res.OK()))
	c.opts.Timer.End(idx, "")
	if !res.OK() {
		out.Log = res.Log
		out.Diagnostics, out.Dropped = c.publish(ctx, res.Log, frag)
		return fail(FailCompile, res.Err())
	}

	// 4. link
	c.opts.Publisher.Clear()
	idx = c.opts.Timer.Begin("link")
	stage = trace.Begin(c.tracer(ctx), trace.ScopeStage, "link", trace.CurrentSpan(ctx))
	link := c.opts.Adapter.Link(c.vertex, res.Handle)
	c.opts.Adapter.ReleaseShader(res.Handle)
	stage.End(strconv.FormatBool(link.OK()))
	c.opts.Timer.End(idx, "")
	if !link.OK() {
		out.Log = link.Log
		out.Diagnostics, out.Dropped = c.publish(ctx, link.Log, frag)
		return fail(FailLink, link.Err())
	}

	// 5. swap
	c.generation++
	next := &ActiveProgram{
		Program:    link.Program,
		Uniforms:   c.opts.Adapter.Uniforms(link.Program, c.opts.Uniforms),
		Generation: c.generation,
	}
	if c.active != nil {
		c.opts.Adapter.ReleaseProgram(c.active.Program)
	}
	c.active = next
	if trigger != TriggerUser && c.opts.Playback != nil {
		c.opts.Playback.Reset()
	}
	out.State, out.Generation = StateLinked, c.generation
	return out
}

// regionSource tells where the compiled fragment came from.
type regionSource uint8

const (
	regionFromEditor regionSource = iota
	regionFromDisk
	// regionDefault: the file is missing, empty or has an empty region.
	regionDefault
	// regionForeign: the file has content but no sentinel region. The default
	// is compiled and the file is left untouched.
	regionForeign
)

// fragmentFor returns the fragment to compile and where it came from.
func (c *Coordinator) fragmentFor(ctx context.Context, trigger Trigger) (template.Fragment, regionSource, error) {
	if trigger == TriggerUser {
		return c.opts.Editor.Text(), regionFromEditor, nil
	}

	doc, err := c.opts.Store.Load()
	if err != nil && !(trigger == TriggerStartup && errors.Is(err, fs.ErrNotExist)) {
		return "", regionFromDisk, err
	}
	frag, ok := template.ExtractRegion(doc)
	src := regionFromDisk
	switch {
	case !ok && strings.TrimSpace(string(doc)) != "":
		trace.Point(c.tracer(ctx), trace.ScopeReload, "sentinel missing", "using default fragment, document kept", trace.CurrentSpan(ctx))
		frag, src = c.opts.DefaultFragment, regionForeign
	case !ok:
		trace.Point(c.tracer(ctx), trace.ScopeReload, "sentinel missing", "using default fragment", trace.CurrentSpan(ctx))
		frag, src = c.opts.DefaultFragment, regionDefault
	case strings.TrimSpace(string(frag)) == "":
		trace.Point(c.tracer(ctx), trace.ScopeReload, "empty region", "using default fragment", trace.CurrentSpan(ctx))
		frag, src = c.opts.DefaultFragment, regionDefault
	}
	c.opts.Editor.SetText(frag)
	return frag, src, nil
}

// publish maps log onto the fragment and hands it to the publisher.
func (c *Coordinator) publish(ctx context.Context, log string, frag template.Fragment) (diag.Set, int) {
	set, dropped := MapDiagnostics(log, c.opts.Template, frag, c.opts.LineMode, c.opts.MaxDiagnostics)

	t := c.tracer(ctx)
	if t.Level().ShouldEmit(trace.ScopeEvent) {
		for _, e := range set.Entries() {
			trace.Point(t, trace.ScopeEvent, "diagnostic", e.Message, trace.CurrentSpan(ctx))
		}
	}
	c.opts.Publisher.Publish(set)
	return set, dropped
}

// MapDiagnostics turns a failure log into the set that gets published: parsed,
// rebased onto frag in fragment mode and cut to limit entries (0 keeps all).
// A log without any line-addressed entry yields its first line on line 0, so a
// failure is never silent.
func MapDiagnostics(log string, tpl *template.Template, frag template.Fragment, mode LineMode, limit int) (diag.Set, int) {
	set := diag.Parse(log)
	if mode == LineModeFragment {
		set = set.Rebase(tpl.PreludeLines(), template.LineCount(frag))
	}
	if set.Len() == 0 {
		if first := firstLine(log); first != "" {
			set = diag.Set{0: {Line: 0, Message: first, Severity: diag.SevError}}
		}
	}
	return set.Limit(limit)
}

func (c *Coordinator) syncDetector() {
	if c.opts.Detector != nil {
		c.opts.Detector.Sync()
	}
}

func (c *Coordinator) tracer(ctx context.Context) trace.Tracer {
	if c.opts.Tracer != nil {
		return c.opts.Tracer
	}
	return trace.FromContext(ctx)
}

// Close releases the active program and the vertex stage.
func (c *Coordinator) Close() {
	if c.active != nil {
		c.opts.Adapter.ReleaseProgram(c.active.Program)
		c.active = nil
	}
	c.opts.Adapter.ReleaseShader(c.vertex)
	c.vertex = 0
	c.started = false
}

func firstLine(log string) string {
	for _, line := range strings.Split(log, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
