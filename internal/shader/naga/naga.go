// Package naga implements shader.Backend for WGSL documents using the pure Go
// naga compiler. No GPU or driver is needed, which makes it the backend of
// choice for headless checks.
//
// naga reports structured errors; they are rendered in glslang's
// "ERROR: 0:<line>: <message>" layout so diag.Parse handles every backend alike.
package naga

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/wgsl"

	"shaderlab/internal/shader"
)

// Options configures the backend.
type Options struct {
	// Validate runs ir.Validate after lowering; failures are reported at line 0.
	Validate bool
}

type stageObj struct {
	stage  shader.Stage
	src    string
	module *ir.Module
	log    string
}

type programObj struct {
	attached []shader.ShaderID
	linked   bool
	log      string
	uniforms map[string]shader.Location
}

// Backend compiles WGSL in-process.
type Backend struct {
	opts     Options
	next     uint32
	shaders  map[shader.ShaderID]*stageObj
	programs map[shader.ProgramID]*programObj
}

// New creates a backend.
func New(opts Options) *Backend {
	return &Backend{
		opts:     opts,
		shaders:  make(map[shader.ShaderID]*stageObj),
		programs: make(map[shader.ProgramID]*programObj),
	}
}

// Name implements shader.Named.
func (b *Backend) Name() string { return "naga" }

func (b *Backend) CreateShader(stage shader.Stage) (shader.ShaderID, error) {
	if irStage(stage) < 0 {
		return 0, fmt.Errorf("naga: unsupported stage %s", stage)
	}
	b.next++
	id := shader.ShaderID(b.next)
	b.shaders[id] = &stageObj{stage: stage}
	return id, nil
}

func (b *Backend) ShaderSource(id shader.ShaderID, src string) {
	if s, ok := b.shaders[id]; ok {
		s.src = src
		s.module = nil
	}
}

func (b *Backend) CompileShader(id shader.ShaderID) bool {
	s, ok := b.shaders[id]
	if !ok {
		return false
	}
	module, err := compileWGSL(s.src, b.opts.Validate)
	if err != nil {
		s.module, s.log = nil, renderLog(err)
		return false
	}
	if !hasEntryPoint(module, s.stage) {
		s.module, s.log = nil, fmt.Sprintf("ERROR: 0:0: no @%s entry point\n", s.stage)
		return false
	}
	s.module, s.log = module, ""
	return true
}

func (b *Backend) ShaderLog(id shader.ShaderID) string {
	if s, ok := b.shaders[id]; ok {
		return s.log
	}
	return ""
}

func (b *Backend) DeleteShader(id shader.ShaderID) { delete(b.shaders, id) }

func (b *Backend) CreateProgram() (shader.ProgramID, error) {
	b.next++
	id := shader.ProgramID(b.next)
	b.programs[id] = &programObj{}
	return id, nil
}

func (b *Backend) AttachShader(p shader.ProgramID, s shader.ShaderID) {
	if prog, ok := b.programs[p]; ok {
		prog.attached = append(prog.attached, s)
	}
}

func (b *Backend) DetachShader(p shader.ProgramID, s shader.ShaderID) {
	prog, ok := b.programs[p]
	if !ok {
		return
	}
	for i, id := range prog.attached {
		if id == s {
			prog.attached = append(prog.attached[:i], prog.attached[i+1:]...)
			return
		}
	}
}

// LinkProgram checks that one compiled vertex and one compiled fragment stage
// are attached, then collects their uniforms. Interface matching between the
// stages is left to the GPU API that eventually consumes the modules.
func (b *Backend) LinkProgram(p shader.ProgramID) bool {
	prog, ok := b.programs[p]
	if !ok {
		return false
	}
	prog.linked, prog.uniforms = false, nil

	var stages [3]*stageObj
	for _, id := range prog.attached {
		s, ok := b.shaders[id]
		if !ok || s.module == nil {
			prog.log = fmt.Sprintf("ERROR: Linking: shader %d is not compiled\n", id)
			return false
		}
		stages[s.stage] = s
	}
	for _, st := range []shader.Stage{shader.StageVertex, shader.StageFragment} {
		if stages[st] == nil {
			prog.log = fmt.Sprintf("ERROR: Linking: missing %s stage\n", st)
			return false
		}
	}

	uniforms := make(map[string]shader.Location)
	var next shader.Location
	for _, st := range []shader.Stage{shader.StageVertex, shader.StageFragment} {
		for _, gv := range stages[st].module.GlobalVariables {
			if gv.Space != ir.SpaceUniform || gv.Name == "" {
				continue
			}
			if _, dup := uniforms[gv.Name]; dup {
				continue
			}
			uniforms[gv.Name] = next
			next++
		}
	}
	prog.linked, prog.log, prog.uniforms = true, "", uniforms
	return true
}

func (b *Backend) ProgramLog(p shader.ProgramID) string {
	if prog, ok := b.programs[p]; ok {
		return prog.log
	}
	return ""
}

func (b *Backend) DeleteProgram(p shader.ProgramID) { delete(b.programs, p) }

func (b *Backend) UniformLocation(p shader.ProgramID, name string) shader.Location {
	prog, ok := b.programs[p]
	if !ok || !prog.linked {
		return shader.NoLocation
	}
	if loc, ok := prog.uniforms[name]; ok {
		return loc
	}
	return shader.NoLocation
}

// Translate renders a compiled stage as desktop GLSL 3.30.
func (b *Backend) Translate(id shader.ShaderID) (string, error) {
	s, ok := b.shaders[id]
	if !ok || s.module == nil {
		return "", fmt.Errorf("naga: shader %d is not compiled", id)
	}
	entry := ""
	for _, ep := range s.module.EntryPoints {
		if ep.Stage == irStageOf(s.stage) {
			entry = ep.Name
			break
		}
	}
	out, _, err := glsl.Compile(s.module, glsl.Options{
		LangVersion: glsl.Version330,
		EntryPoint:  entry,
	})
	if err != nil {
		return "", fmt.Errorf("naga: translate %s stage: %w", s.stage, err)
	}
	return out, nil
}

func compileWGSL(src string, validate bool) (*ir.Module, error) {
	tokens, err := wgsl.NewLexer(src).Tokenize()
	if err != nil {
		return nil, err
	}
	ast, err := wgsl.NewParser(tokens).Parse()
	if err != nil {
		return nil, err
	}
	module, err := wgsl.LowerWithSource(ast, src)
	if err != nil {
		return nil, err
	}
	if validate {
		verrs, err := ir.Validate(module)
		if err != nil {
			return nil, err
		}
		if len(verrs) > 0 {
			return nil, validationErrors(verrs)
		}
	}
	return module, nil
}

type validationErrors []ir.ValidationError

func (v validationErrors) Error() string {
	msgs := make([]string, len(v))
	for i := range v {
		msgs[i] = v[i].Error()
	}
	return strings.Join(msgs, "; ")
}

// renderLog converts naga errors into glslang-style log lines.
func renderLog(err error) string {
	var sb strings.Builder
	line := func(n int, msg string) {
		fmt.Fprintf(&sb, "ERROR: 0:%d: %s\n", n, msg)
	}

	var perr wgsl.ParseError
	var serrs *wgsl.SourceErrors
	var verrs validationErrors
	switch {
	case errors.As(err, &perr):
		line(perr.Token.Line, perr.Message)
	case errors.As(err, &serrs):
		for _, se := range *serrs {
			line(se.Span.Start.Line, se.Message)
		}
	case errors.As(err, &verrs):
		for i := range verrs {
			line(0, verrs[i].Error())
		}
	default:
		line(0, err.Error())
	}
	return sb.String()
}

func hasEntryPoint(m *ir.Module, stage shader.Stage) bool {
	want := irStageOf(stage)
	for _, ep := range m.EntryPoints {
		if ep.Stage == want {
			return true
		}
	}
	return false
}

func irStage(stage shader.Stage) int {
	switch stage {
	case shader.StageVertex, shader.StageFragment:
		return int(irStageOf(stage))
	}
	return -1
}

func irStageOf(stage shader.Stage) ir.ShaderStage {
	if stage == shader.StageVertex {
		return ir.StageVertex
	}
	return ir.StageFragment
}
