package reload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"shaderlab/internal/diag"
	"shaderlab/internal/observ"
	"shaderlab/internal/render"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/shadertest"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
)

type fakeDetector struct {
	changed bool
	syncs   int
}

func (d *fakeDetector) Changed() bool { return d.changed }
func (d *fakeDetector) Sync()         { d.changed = false; d.syncs++ }

type rig struct {
	tpl      *template.Template
	backend  *shadertest.Backend
	store    FileStore
	editor   *MemoryEditor
	detector *fakeDetector
	pub      *diag.Recorder
	playback *render.Playback
	coord    *Coordinator
}

func newRig(t *testing.T, initial string) *rig {
	t.Helper()
	r := &rig{
		tpl:      template.MustFor(template.DialectGLSL),
		backend:  shadertest.New(),
		store:    FileStore{Path: filepath.Join(t.TempDir(), "shader.glsl")},
		editor:   &MemoryEditor{},
		detector: &fakeDetector{},
		pub:      &diag.Recorder{},
		playback: &render.Playback{},
	}
	if initial != "" {
		require.NoError(t, os.WriteFile(r.store.Path, []byte(initial), 0o644))
	}
	coord, err := New(Options{
		Template:  r.tpl,
		Adapter:   shader.NewAdapter(r.backend),
		Store:     r.store,
		Editor:    r.editor,
		Detector:  r.detector,
		Publisher: r.pub,
		Playback:  r.playback,
		Timer:     observ.NewTimer(),
	})
	require.NoError(t, err)
	r.coord = coord
	return r
}

func (r *rig) writeFragment(t *testing.T, f string) {
	t.Helper()
	require.NoError(t, os.WriteFile(r.store.Path, []byte(r.tpl.Assemble(template.Fragment(f))), 0o644))
	r.detector.changed = true
}

func (r *rig) onDisk(t *testing.T) template.Document {
	t.Helper()
	doc, err := r.store.Load()
	require.NoError(t, err)
	return doc
}

var glsl = template.MustFor(template.DialectGLSL)

const goodFragment = "vec3 userColor(vec2 uv) {\n    return vec3(uv, 0.5);\n}"

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	_, err = New(Options{Template: template.MustFor(template.DialectGLSL)})
	require.Error(t, err)
}

func TestStartMissingFileUsesDefault(t *testing.T) {
	r := newRig(t, "")
	out, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.True(t, out.OK())
	require.True(t, out.Fallback)
	require.Equal(t, TriggerStartup, out.Trigger)
	require.Equal(t, uint64(1), out.Generation)

	require.Equal(t, r.tpl.DefaultFragment(), r.editor.Text())
	require.Equal(t, r.tpl.Assemble(r.tpl.DefaultFragment()), r.onDisk(t))
	require.NotNil(t, r.coord.Active())
	require.Equal(t, StateIdle, r.coord.State())
	require.Equal(t, 1, r.detector.syncs)
}

func TestStartWithoutSentinelsKeepsDocument(t *testing.T) {
	const handWritten = "#version 460 core\n// my hand-written shader\nout vec4 c;\nvoid main() { c = vec4(1); }\n"
	r := newRig(t, handWritten)
	out, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.True(t, out.OK())
	require.True(t, out.Fallback)
	require.True(t, out.Unsaved)
	require.Equal(t, r.tpl.DefaultFragment(), r.editor.Text())

	raw, err := os.ReadFile(r.store.Path)
	require.NoError(t, err)
	require.Equal(t, handWritten, string(raw))
	require.Equal(t, 1, r.detector.syncs)
}

func TestExternalEditRemovingSentinelsKeepsDocument(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	const handWritten = "#version 460 core\n// my hand-written shader\nvoid main() {}\n"
	require.NoError(t, os.WriteFile(r.store.Path, []byte(handWritten), 0o644))
	r.detector.changed = true
	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, out.OK())
	require.True(t, out.Unsaved)
	require.False(t, r.detector.changed)

	raw, err := os.ReadFile(r.store.Path)
	require.NoError(t, err)
	require.Equal(t, handWritten, string(raw))

	// an explicit save is the user's decision to take the file over
	require.NoError(t, r.coord.Save(ctx))
	_, ok := template.ExtractRegion(r.onDisk(t))
	require.True(t, ok)
}

func TestStartEmptyRegionFallsBack(t *testing.T) {
	r := newRig(t, string(glsl.Assemble("   \n")))
	out, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.True(t, out.Fallback)
	require.Equal(t, r.tpl.DefaultFragment(), r.editor.Text())
}

func TestStartVertexFailureIsFatal(t *testing.T) {
	r := newRig(t, "")
	r.backend.Compile = shadertest.FailWith("ERROR: 0:1: vertex broken\n")
	_, err := r.coord.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "vertex stage")
	require.Nil(t, r.coord.Active())
	require.NoError(t, r.backend.CheckNoLeaks(nil, nil))
}

func TestExternalCompileErrorKeepsPreviousProgram(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)
	before := r.coord.Active()

	r.writeFragment(t, "vec3 userColor(vec2 uv) {\n#error nope\n    return vec3(0);\n}")
	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, out.OK())
	require.Equal(t, FailCompile, out.Failure)
	require.Equal(t, TriggerExternal, out.Trigger)

	require.Same(t, before, r.coord.Active())
	require.True(t, r.backend.IsLive(before.Program))

	// the #error sits on the second fragment line
	require.Equal(t, []int{2}, r.pub.Last.Lines())
	msg, _ := r.pub.Last.Message(2)
	require.Contains(t, msg, "nope")
	require.Equal(t, out.Diagnostics.Lines(), r.pub.Last.Lines())
	require.Contains(t, out.Log, "compilation errors")
	require.Equal(t, StateIdle, r.coord.State())
}

func TestSuccessClearsDiagnostics(t *testing.T) {
	r := newRig(t, string(glsl.Assemble("#error first")))
	ctx := context.Background()
	out, err := r.coord.Start(ctx)
	require.NoError(t, err)
	require.False(t, out.OK())
	require.Nil(t, r.coord.Active())
	require.Equal(t, 1, r.pub.Last.Len())

	r.editor.SetText(goodFragment)
	r.coord.RequestCompile()
	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, out.OK())
	require.Nil(t, r.pub.Last)
	require.Equal(t, 1, r.pub.Clears)
}

func TestUserTriggerWritesThrough(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)
	syncs := r.detector.syncs

	edited := template.Fragment("vec3 userColor(vec2 uv) {\n    return vec3(1.0);\n}")
	r.editor.SetText(edited)
	r.playback.Active, r.playback.Time = true, 3

	r.coord.RequestCompile()
	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, out.OK())
	require.Equal(t, uint64(2), out.Generation)
	require.Equal(t, r.tpl.Assemble(edited), r.onDisk(t))
	require.Equal(t, syncs+1, r.detector.syncs)
	// a user compile does not rewind the clock
	require.True(t, r.playback.Active)
	require.Equal(t, 3.0, r.playback.Time)

	_, ran, err = r.coord.Tick(ctx)
	require.NoError(t, err)
	require.False(t, ran)
}

func TestUserTriggerCompileErrorStillWritesThrough(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	broken := template.Fragment("#error typo")
	r.editor.SetText(broken)
	r.coord.RequestCompile()
	out, _, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, FailCompile, out.Failure)
	require.Equal(t, r.tpl.Assemble(broken), r.onDisk(t))
	require.Equal(t, []int{1}, r.pub.Last.Lines())
}

func TestExternalResetsPlayback(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	r.playback.Active, r.playback.Time = true, 12
	r.writeFragment(t, "vec3 userColor(vec2 uv) { return vec3(0.0); }")
	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.True(t, out.OK())
	require.False(t, r.playback.Active)
	require.Zero(t, r.playback.Time)
	require.Equal(t, template.Fragment("vec3 userColor(vec2 uv) { return vec3(0.0); }"), r.editor.Text())
	require.False(t, r.detector.changed)
}

func TestExternalTakesPrecedenceOverUser(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	r.coord.RequestCompile()
	r.writeFragment(t, goodFragment)

	out, ran, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, TriggerExternal, out.Trigger)

	out, ran, err = r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ran)
	require.Equal(t, TriggerUser, out.Trigger)
}

func TestLinkFailurePublishesDiagnostics(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)
	before := r.coord.Active()

	r.backend.Link = func(string, string) (bool, string) {
		return false, "error: linking failed without a line\n"
	}
	r.coord.RequestCompile()
	out, _, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, FailLink, out.Failure)
	require.Same(t, before, r.coord.Active())
	// no line-addressed entries, so the first log line lands on line 0
	require.Equal(t, []int{0}, r.pub.Last.Lines())
	msg, _ := r.pub.Last.Message(0)
	require.Equal(t, "error: linking failed without a line", msg)
}

func TestBoilerplateErrorsMapToLineZero(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	r.backend.Compile = func(stage shader.Stage, src string) (bool, string) {
		if stage == shader.StageVertex {
			return true, ""
		}
		return false, "ERROR: 0:1: '' : version mismatch\n"
	}
	out, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, FailCompile, out.Failure)
	require.Equal(t, []int{0}, r.pub.Last.Lines())
}

func TestRawLineMode(t *testing.T) {
	r := newRig(t, string(glsl.Assemble("#error raw")))
	r.coord.opts.LineMode = LineModeRaw
	_, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{r.tpl.PreludeLines() + 1}, r.pub.Last.Lines())
}

func TestMaxDiagnostics(t *testing.T) {
	r := newRig(t, string(glsl.Assemble("a\nb\nc")))
	r.coord.opts.MaxDiagnostics = 2
	r.backend.Compile = func(stage shader.Stage, src string) (bool, string) {
		if stage == shader.StageVertex {
			return true, ""
		}
		p := r.tpl.PreludeLines()
		var b strings.Builder
		for i := 1; i <= 3; i++ {
			fmt.Fprintf(&b, "ERROR: 0:%d: bad\n", p+i)
		}
		return false, b.String()
	}
	out, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.Dropped)
	require.Equal(t, []int{1, 2}, r.pub.Last.Lines())
}

type failingStore struct {
	FileStore
	saveErr error
}

func (s failingStore) Save(template.Document) error { return s.saveErr }

func TestSaveErrorKeepsProgram(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)
	before := r.coord.Active()
	compiles := r.backend.Compiles

	diskFull := errors.New("disk full")
	r.coord.opts.Store = failingStore{FileStore: r.store, saveErr: diskFull}
	r.coord.RequestCompile()
	out, ran, err := r.coord.Tick(ctx)
	require.True(t, ran)
	require.ErrorIs(t, err, diskFull)
	require.Equal(t, FailIO, out.Failure)
	require.Same(t, before, r.coord.Active())
	require.Equal(t, compiles, r.backend.Compiles)
}

func TestSaveWithoutCompile(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)
	compiles := r.backend.Compiles

	r.editor.SetText("#error not compiled yet")
	require.NoError(t, r.coord.Save(ctx))
	require.Equal(t, r.tpl.Assemble("#error not compiled yet"), r.onDisk(t))
	require.Equal(t, compiles, r.backend.Compiles)
	require.False(t, r.detector.changed)
}

func TestTriggerWhileCompilingIsIgnored(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	ring := trace.NewRingTracer(64, trace.LevelDebug)
	r.coord.opts.Tracer = ring
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	var nested Outcome
	var ran bool
	r.backend.Compile = func(shader.Stage, string) (bool, string) {
		// re-entrant triggers arrive while the cycle is in flight
		r.coord.RequestCompile()
		nested, ran, _ = r.coord.Tick(ctx)
		return true, ""
	}
	r.coord.RequestCompile()
	out, _, err := r.coord.Tick(ctx)
	require.NoError(t, err)
	require.True(t, out.OK())
	require.False(t, ran)
	require.Equal(t, Outcome{}, nested)

	_, ran, err = r.coord.Tick(ctx)
	require.NoError(t, err)
	require.False(t, ran, "request made while compiling must not be queued")

	var ignored int
	for _, ev := range ring.Snapshot() {
		if ev.Name == "trigger ignored" {
			ignored++
		}
	}
	require.Equal(t, 2, ignored)
}

func TestUniformCache(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	_, err := r.coord.Start(context.Background())
	require.NoError(t, err)
	active := r.coord.Active()
	for _, name := range render.UniformNames {
		_, ok := active.Location(name)
		require.True(t, ok, name)
	}
	_, ok := active.Location("iMissing")
	require.False(t, ok)
}

func TestNoLeaksAcrossReloads(t *testing.T) {
	r := newRig(t, string(glsl.Assemble(goodFragment)))
	ctx := context.Background()
	_, err := r.coord.Start(ctx)
	require.NoError(t, err)

	for i, frag := range []string{goodFragment, "#error x", goodFragment, goodFragment} {
		r.editor.SetText(template.Fragment(frag))
		r.coord.RequestCompile()
		_, ran, err := r.coord.Tick(ctx)
		require.NoError(t, err, "cycle %d", i)
		require.True(t, ran)
	}
	require.Equal(t, uint64(4), r.coord.Active().Generation)
	require.Equal(t, 1, r.backend.LivePrograms())
	require.Equal(t, 1, r.backend.LiveShaders())

	r.coord.Close()
	require.NoError(t, r.backend.CheckNoLeaks(nil, nil))
	require.Nil(t, r.coord.Active())
}

func TestTickBeforeStart(t *testing.T) {
	r := newRig(t, "")
	_, _, err := r.coord.Tick(context.Background())
	require.Error(t, err)
}
