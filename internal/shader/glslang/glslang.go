// Package glslang implements shader.Backend on top of the Khronos reference
// compiler, glslangValidator, run as a subprocess.
//
// Stage compiles feed the source through stdin; linking writes both stages to
// a scratch directory and asks for reflection output, from which uniform
// locations are assigned in declaration order.
package glslang

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"shaderlab/internal/shader"
)

// DefaultBin is looked up in PATH when Options.Bin is empty.
const DefaultBin = "glslangValidator"

// Options configures the backend.
type Options struct {
	Bin     string        // compiler binary, DefaultBin when empty
	Timeout time.Duration // per invocation, 0 means 10s
}

type stageObj struct {
	stage    shader.Stage
	src      string
	compiled bool
	log      string
}

type programObj struct {
	attached []shader.ShaderID
	linked   bool
	log      string
	uniforms map[string]shader.Location
}

// Backend runs glslangValidator for every compile and link.
type Backend struct {
	bin     string
	timeout time.Duration
	ctx     context.Context

	next     uint32
	shaders  map[shader.ShaderID]*stageObj
	programs map[shader.ProgramID]*programObj
}

// New creates a backend. ctx bounds every subprocess it starts.
func New(ctx context.Context, opts Options) *Backend {
	if opts.Bin == "" {
		opts.Bin = DefaultBin
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Backend{
		bin:      opts.Bin,
		timeout:  opts.Timeout,
		ctx:      ctx,
		shaders:  make(map[shader.ShaderID]*stageObj),
		programs: make(map[shader.ProgramID]*programObj),
	}
}

// Name implements shader.Named.
func (b *Backend) Name() string { return "glslang" }

// Available reports whether the compiler binary can be found.
func (b *Backend) Available() error {
	if _, err := exec.LookPath(b.bin); err != nil {
		return fmt.Errorf("glslang: %w", err)
	}
	return nil
}

func (b *Backend) CreateShader(stage shader.Stage) (shader.ShaderID, error) {
	if stage.Ext() == "" {
		return 0, fmt.Errorf("glslang: unsupported stage %s", stage)
	}
	b.next++
	id := shader.ShaderID(b.next)
	b.shaders[id] = &stageObj{stage: stage}
	return id, nil
}

func (b *Backend) ShaderSource(id shader.ShaderID, src string) {
	if s, ok := b.shaders[id]; ok {
		s.src = src
	}
}

func (b *Backend) CompileShader(id shader.ShaderID) bool {
	s, ok := b.shaders[id]
	if !ok {
		return false
	}
	out, err := b.run(strings.NewReader(s.src), "--stdin", "-S", s.stage.Ext())
	s.compiled, s.log = err == nil, out
	if err != nil && !isExitError(err) {
		s.log = fmt.Sprintf("%sfailed to run %s: %v", out, b.bin, err)
	}
	return s.compiled
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

func (b *Backend) LinkProgram(p shader.ProgramID) bool {
	prog, ok := b.programs[p]
	if !ok {
		return false
	}
	prog.linked, prog.uniforms = false, nil

	dir, err := os.MkdirTemp("", "shaderlab-link-*")
	if err != nil {
		prog.log = fmt.Sprintf("glslang: %v", err)
		return false
	}
	defer os.RemoveAll(dir)

	args := []string{"-l", "-q"}
	for _, id := range prog.attached {
		s, ok := b.shaders[id]
		if !ok || !s.compiled {
			prog.log = fmt.Sprintf("ERROR: Linking: shader %d is not compiled", id)
			return false
		}
		path := filepath.Join(dir, "shader."+s.stage.Ext())
		if err := os.WriteFile(path, []byte(s.src), 0o600); err != nil {
			prog.log = fmt.Sprintf("glslang: %v", err)
			return false
		}
		args = append(args, path)
	}

	out, err := b.run(nil, args...)
	prog.log = out
	if err != nil {
		if !isExitError(err) {
			prog.log = fmt.Sprintf("%sfailed to run %s: %v", out, b.bin, err)
		}
		return false
	}
	prog.linked = true
	prog.uniforms = parseReflection(out)
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

// run executes the compiler and returns its combined output.
func (b *Backend) run(stdin *strings.Reader, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	// #nosec G204 -- the binary comes from configuration
	cmd := exec.CommandContext(ctx, b.bin, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if ctx.Err() != nil {
		return out.String(), fmt.Errorf("%s timed out after %s: %w", b.bin, b.timeout, ctx.Err())
	}
	return out.String(), err
}

func isExitError(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

// parseReflection reads the "Uniform reflection:" section of -q output:
//
//	Uniform reflection:
//	iTime: offset -1, type 1406, size 1, index -1, binding -1, stages 16
//
// Locations follow the listing order.
func parseReflection(out string) map[string]shader.Location {
	uniforms := make(map[string]shader.Location)
	in := false
	var next shader.Location
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "Uniform reflection:" {
			in = true
			continue
		}
		if !in {
			continue
		}
		if line == "" || strings.HasSuffix(line, "reflection:") {
			break
		}
		name, _, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			continue
		}
		// arrays are reported as "name[0]"
		name = strings.TrimSuffix(name, "[0]")
		if _, dup := uniforms[name]; dup {
			continue
		}
		uniforms[name] = next
		next++
	}
	return uniforms
}
