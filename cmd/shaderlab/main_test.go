package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"shaderlab/internal/checkpipeline"
	"shaderlab/internal/config"
	"shaderlab/internal/diag"
	"shaderlab/internal/reload"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/shadertest"
	"shaderlab/internal/template"
	"shaderlab/internal/watch"
)

const userFragment = "vec3 userColor(vec2 uv) {\n    return vec3(uv, 0.5);\n}"

// execute runs the root command with args and restores every flag afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--color", "off"))
	t.Cleanup(resetFlags)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags() {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}
}

func writeDefaultConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	if err := config.Write(path, config.Default()); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestInitCreatesConfigAndShader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo")
	out, err := execute(t, "init", dir)
	if err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	if !strings.Contains(out, "created "+filepath.Join(dir, config.FileName)) {
		t.Errorf("output = %q", out)
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if want := filepath.Join(dir, "shader.glsl"); cfg.Shader.Path != want {
		t.Errorf("shader path = %q, want %q", cfg.Shader.Path, want)
	}
	data, err := os.ReadFile(cfg.Shader.Path)
	if err != nil {
		t.Fatalf("read shader: %v", err)
	}
	glsl := template.MustFor(template.DialectGLSL)
	if got := template.Extract(template.Document(data)); got != glsl.DefaultFragment() {
		t.Errorf("starter region = %q", got)
	}

	if _, err := execute(t, "init", dir); err == nil || !strings.Contains(err.Error(), "already initialized") {
		t.Fatalf("second init: %v", err)
	}
}

func TestInitWGSLSelectsNaga(t *testing.T) {
	dir := t.TempDir()
	if out, err := execute(t, "init", dir, "--dialect", "wgsl", "--quiet"); err != nil {
		t.Fatalf("init: %v\n%s", err, out)
	}
	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Compiler.Backend != config.BackendNaga || cfg.Dialect() != template.DialectWGSL {
		t.Errorf("config = %+v", cfg.Compiler)
	}
	if _, err := os.Stat(filepath.Join(dir, "shader.wgsl")); err != nil {
		t.Errorf("shader.wgsl: %v", err)
	}
}

func TestExtractAndAssemble(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeDefaultConfig(t, dir)
	glsl := template.MustFor(template.DialectGLSL)

	doc := filepath.Join(dir, "plasma.glsl")
	if err := os.WriteFile(doc, []byte(glsl.Assemble(userFragment)), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "extract", "--config", cfgPath, doc)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if out != userFragment+"\n" {
		t.Errorf("extract = %q", out)
	}

	frag := filepath.Join(dir, "frag.glsl")
	if err := os.WriteFile(frag, []byte(userFragment+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	assembled := filepath.Join(dir, "out.glsl")
	if _, err := execute(t, "assemble", "--config", cfgPath, "--quiet", frag, "-o", assembled); err != nil {
		t.Fatalf("assemble: %v", err)
	}
	data, err := os.ReadFile(assembled)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(glsl.Assemble(userFragment)) {
		t.Errorf("assembled document differs:\n%s", data)
	}
}

func TestExtractWithoutRegion(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeDefaultConfig(t, dir)
	doc := filepath.Join(dir, "plain.glsl")
	if err := os.WriteFile(doc, []byte("void main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "extract", "--config", cfgPath, doc); err == nil || !strings.Contains(err.Error(), "no user region") {
		t.Fatalf("expected missing region error, got %v", err)
	}
	out, err := execute(t, "extract", "--config", cfgPath, "--default", doc)
	if err != nil {
		t.Fatalf("extract --default: %v", err)
	}
	if want := string(template.MustFor(template.DialectGLSL).DefaultFragment()) + "\n"; out != want {
		t.Errorf("extract --default = %q", out)
	}
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if payload.Tool != "shaderlab" || payload.Version != "0.3.0-dev" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.GitCommit != "" {
		t.Errorf("commit shown without --full: %+v", payload)
	}
}

func TestUnknownColorMode(t *testing.T) {
	rootCmd.SetArgs([]string{"version", "--color", "sometimes"})
	rootCmd.SetOut(&bytes.Buffer{})
	t.Cleanup(resetFlags)
	if err := rootCmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid --color") {
		t.Fatalf("expected color error, got %v", err)
	}
}

func failedReport(glsl *template.Template) checkpipeline.Report {
	return checkpipeline.Report{Results: []checkpipeline.Result{
		{
			DisplayPath: "ok.glsl",
			Lines:       strings.Split(userFragment, "\n"),
			FileOffset:  glsl.PreludeLines(),
		},
		{
			DisplayPath: "bad.glsl",
			Lines:       strings.Split(userFragment, "\n"),
			FileOffset:  glsl.PreludeLines(),
			Failure:     reload.FailCompile,
			Diagnostics: diag.Set{2: {Line: 2, Message: "'x' : undeclared identifier", Severity: diag.SevError}},
		},
	}}
}

func TestRenderReportShort(t *testing.T) {
	glsl := template.MustFor(template.DialectGLSL)
	var out bytes.Buffer
	if err := renderReport(&out, failedReport(glsl), glsl.Dialect(), checkOptions{format: "short"}); err != nil {
		t.Fatal(err)
	}
	want := "bad.glsl:" + strconv.Itoa(glsl.PreludeLines()+2) + ": 'x' : undeclared identifier\n"
	if out.String() != want {
		t.Errorf("short = %q, want %q", out.String(), want)
	}
}

func TestRenderReportPretty(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	glsl := template.MustFor(template.DialectGLSL)
	var out bytes.Buffer
	if err := renderReport(&out, failedReport(glsl), glsl.Dialect(), checkOptions{format: "pretty", context: 0}); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if strings.Contains(text, "ok.glsl") {
		t.Errorf("clean documents should not be listed:\n%s", text)
	}
	if !strings.Contains(text, "return vec3(uv, 0.5);") {
		t.Errorf("missing source context:\n%s", text)
	}
	if !strings.Contains(text, "1 error, 0 warnings in 2 files (1 failed)") {
		t.Errorf("missing summary:\n%s", text)
	}
}

func TestRenderReportJSON(t *testing.T) {
	glsl := template.MustFor(template.DialectGLSL)
	var out bytes.Buffer
	if err := renderReport(&out, failedReport(glsl), glsl.Dialect(), checkOptions{format: "json"}); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Files []struct {
			Path        string `json:"path"`
			Status      string `json:"status"`
			Diagnostics []struct {
				Line     int `json:"line"`
				FileLine int `json:"file_line"`
			} `json:"diagnostics"`
		} `json:"files"`
		Errors int `json:"errors"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v\n%s", err, out.String())
	}
	if decoded.Errors != 1 || len(decoded.Files) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	bad := decoded.Files[1]
	if bad.Status != "compile" || bad.Diagnostics[0].Line != 2 || bad.Diagnostics[0].FileLine != glsl.PreludeLines()+2 {
		t.Errorf("bad.glsl = %+v", bad)
	}
}

func TestBackendFactory(t *testing.T) {
	cfg := config.Default()
	cfg.Compiler.Backend = config.BackendGL
	if _, err := backendFactory(cfg); !errors.Is(err, errNeedsWindow) {
		t.Fatalf("gl backend: %v", err)
	}

	cfg.Compiler.Backend = config.BackendNaga
	factory, err := backendFactory(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if name := shader.NameOf(b); name != "naga" {
		t.Errorf("backend = %q", name)
	}
}

func TestUIMode(t *testing.T) {
	if _, err := readUIMode("maybe"); err == nil {
		t.Error("expected error for unknown mode")
	}
	mode, err := readUIMode(" ON ")
	if err != nil || mode != uiModeOn {
		t.Fatalf("readUIMode = %v, %v", mode, err)
	}
	if shouldUseTUI(uiModeOff, 10) {
		t.Error("off must never use the TUI")
	}
	if !shouldUseTUI(uiModeOn, 1) {
		t.Error("on must always use the TUI")
	}
}

func TestWatchLoopReportsExternalChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live.glsl")
	glsl := template.MustFor(template.DialectGLSL)
	if err := os.WriteFile(path, []byte(glsl.Assemble(userFragment)), 0o644); err != nil {
		t.Fatal(err)
	}

	editor := &reload.MemoryEditor{}
	coord, err := reload.New(reload.Options{
		Template: glsl,
		Adapter:  shader.NewAdapter(shadertest.New()),
		Store:    reload.FileStore{Path: path},
		Editor:   editor,
		Detector: watch.NewPoller(path, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer coord.Close()
	if out, err := coord.Start(context.Background()); err != nil || !out.OK() {
		t.Fatalf("start: %+v, %v", out, err)
	}

	broken := "vec3 userColor(vec2 uv) {\n#error missing semicolon\n    return vec3(uv, 0.5);\n}"
	if err := os.WriteFile(path, []byte(glsl.Assemble(template.Fragment(broken))), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var got []reload.Outcome
	err = watchLoop(ctx, coord, 5*time.Millisecond, func(_ context.Context, out reload.Outcome) {
		got = append(got, out)
		cancel()
	})
	if err != nil {
		t.Fatalf("watchLoop: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("outcomes = %d", len(got))
	}
	out := got[0]
	if out.Trigger != reload.TriggerExternal || out.Failure != reload.FailCompile {
		t.Fatalf("outcome = %+v", out)
	}
	if _, ok := out.Diagnostics.Message(2); !ok {
		t.Errorf("expected a diagnostic on fragment line 2: %v", out.Diagnostics)
	}
	if coord.Active() == nil || coord.Active().Generation != 1 {
		t.Errorf("previous program should stay active: %+v", coord.Active())
	}

	p := &outcomePrinter{sess: &session{cfg: config.Default(), tpl: glsl}, editor: editor}
	in := p.input(out)
	if in.FileOffset != glsl.PreludeLines() || len(in.Lines) != 4 {
		t.Errorf("input offset/lines = %d/%d", in.FileOffset, len(in.Lines))
	}
}
