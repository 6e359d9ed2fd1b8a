package checkpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"shaderlab/internal/cache"
	"shaderlab/internal/reload"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/shadertest"
	"shaderlab/internal/template"
)

var glsl = template.MustFor(template.DialectGLSL)

func writeDoc(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type factory struct {
	created  atomic.Int32
	fail     error
}

func (f *factory) new(context.Context) (shader.Backend, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created.Add(1)
	return shadertest.New(), nil
}

func TestListShaderFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "b.glsl", "")
	writeDoc(t, dir, "a.frag", "")
	writeDoc(t, dir, "sub/c.glsl", "")
	writeDoc(t, dir, "d.wgsl", "")
	writeDoc(t, dir, ".git/e.glsl", "")
	writeDoc(t, dir, "notes.txt", "")

	files, err := ListShaderFiles(dir, template.DialectGLSL)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range files {
		got = append(got, DisplayPath(f, dir))
	}
	want := "a.frag b.glsl sub/c.glsl"
	if strings.Join(got, " ") != want {
		t.Fatalf("files = %v, want %s", got, want)
	}

	single, err := ListShaderFiles(files[0], template.DialectWGSL)
	if err != nil || len(single) != 1 {
		t.Fatalf("a file argument is returned as is: %v %v", single, err)
	}
}

func TestRunMixedResults(t *testing.T) {
	dir := t.TempDir()
	good := writeDoc(t, dir, "good.glsl", string(glsl.Assemble("vec3 userColor(vec2 uv) { return vec3(uv, 0.0); }")))
	// extra header lines move the region down in the file
	bad := writeDoc(t, dir, "bad.glsl", "// my notes\n"+string(glsl.Assemble("vec3 userColor(vec2 uv) {\n#error broken\n}")))
	plain := writeDoc(t, dir, "plain.glsl", "void main() {}\n")
	missing := filepath.Join(dir, "missing.glsl")

	var f factory
	var sink Collector
	report, err := Run(context.Background(), &Request{
		Files:      []string{good, bad, plain, missing},
		BaseDir:    dir,
		Template:   glsl,
		NewBackend: f.new,
		Jobs:       2,
		Progress:   &sink,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 4 {
		t.Fatalf("results = %d", len(report.Results))
	}
	r := report.Results

	if !r[0].OK() || r[0].DisplayPath != "good.glsl" || r[0].Diagnostics.Len() != 0 {
		t.Errorf("good: %+v", r[0])
	}

	if r[1].Failure != reload.FailCompile {
		t.Fatalf("bad: failure = %v", r[1].Failure)
	}
	if lines := r[1].Diagnostics.Lines(); len(lines) != 1 || lines[0] != 2 {
		t.Errorf("bad: lines = %v, want [2]", lines)
	}
	// fragment line 2 is file line 1 (notes) + prelude + 2
	if got, want := r[1].FileOffset, 1+glsl.PreludeLines(); got != want {
		t.Errorf("bad: file offset = %d, want %d", got, want)
	}
	if !strings.Contains(r[1].Log, "broken") {
		t.Errorf("bad: log = %q", r[1].Log)
	}

	if !r[2].OK() || !r[2].Fallback || r[2].Fragment != glsl.DefaultFragment() {
		t.Errorf("plain: %+v", r[2])
	}

	if r[3].Failure != reload.FailIO || !errors.Is(r[3].Err, os.ErrNotExist) {
		t.Errorf("missing: failure = %v err = %v", r[3].Failure, r[3].Err)
	}

	if report.Failed() != 2 {
		t.Errorf("Failed() = %d", report.Failed())
	}
	if f.created.Load() != 3 {
		t.Errorf("backends created = %d, want one per readable document", f.created.Load())
	}
	if _, ok := report.Timings[StageCompile]; !ok {
		t.Errorf("timings missing compile")
	}
	if _, ok := report.Timings[StageLoad]; !ok {
		t.Errorf("timings missing load")
	}

	var queued, errs int
	for _, ev := range sink.Events() {
		switch ev.Status {
		case StatusQueued:
			queued++
		case StatusError:
			errs++
		}
	}
	if queued != 4 || errs != 2 {
		t.Errorf("queued = %d errors = %d", queued, errs)
	}

	// the documents are never rewritten
	data, err := os.ReadFile(plain)
	if err != nil || string(data) != "void main() {}\n" {
		t.Errorf("plain.glsl modified: %q", data)
	}
}

func TestRunRawLineMode(t *testing.T) {
	dir := t.TempDir()
	bad := writeDoc(t, dir, "bad.glsl", string(glsl.Assemble("#error raw")))
	var f factory
	report, err := Run(context.Background(), &Request{
		Files:      []string{bad},
		Template:   glsl,
		NewBackend: f.new,
		LineMode:   reload.LineModeRaw,
	})
	if err != nil {
		t.Fatal(err)
	}
	res := report.Results[0]
	want := glsl.PreludeLines() + 1
	if lines := res.Diagnostics.Lines(); len(lines) != 1 || lines[0] != want {
		t.Fatalf("lines = %v, want [%d]", lines, want)
	}
	if res.FileOffset != 0 || !strings.Contains(res.Lines[want-1], "#error raw") {
		t.Fatalf("raw lines should index the assembled document")
	}
}

func TestRunUsesCache(t *testing.T) {
	dir := t.TempDir()
	bad := writeDoc(t, dir, "bad.glsl", string(glsl.Assemble("#error cached")))
	c, err := cache.OpenDir(filepath.Join(dir, ".cache"))
	if err != nil {
		t.Fatal(err)
	}
	var f factory
	req := func() *Request {
		return &Request{
			Files:       []string{bad},
			Template:    glsl,
			NewBackend:  f.new,
			BackendName: "shadertest",
			Cache:       c,
		}
	}

	first, err := Run(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	second, err := Run(context.Background(), req())
	if err != nil {
		t.Fatal(err)
	}
	if f.created.Load() != 1 {
		t.Fatalf("backends created = %d, second run should hit the cache", f.created.Load())
	}
	a, b := first.Results[0], second.Results[0]
	if !b.Cached || a.Cached {
		t.Fatalf("cached flags: first %v second %v", a.Cached, b.Cached)
	}
	if b.Failure != reload.FailCompile || b.Diagnostics.Len() != 1 || b.Diagnostics[1].Message != a.Diagnostics[1].Message {
		t.Fatalf("cached result differs: %+v vs %+v", b, a)
	}
}

func TestRunBackendError(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "x.glsl", string(glsl.Assemble("vec3 userColor(vec2 uv) { return vec3(0); }")))
	f := factory{fail: errors.New("glslangValidator not found")}
	report, err := Run(context.Background(), &Request{Files: []string{doc}, Template: glsl, NewBackend: f.new})
	if err != nil {
		t.Fatal(err)
	}
	if r := report.Results[0]; r.Failure != reload.FailIO || r.Err == nil {
		t.Fatalf("result = %+v", r)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var f factory
	_, err := Run(ctx, &Request{Files: []string{"a.glsl"}, Template: glsl, NewBackend: f.new})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRejectsIncompleteRequest(t *testing.T) {
	if _, err := Run(context.Background(), nil); err == nil {
		t.Fatal("nil request accepted")
	}
	if _, err := Run(context.Background(), &Request{}); err == nil {
		t.Fatal("request without template accepted")
	}
}
