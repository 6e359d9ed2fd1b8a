// Package shadertest provides an in-memory shader.Backend for tests.
//
// The fake follows the GL object model closely enough to catch handle leaks:
// every create is counted and CheckNoLeaks reports anything still alive.
package shadertest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"shaderlab/internal/shader"
)

// CompileFunc decides the outcome of one compile.
type CompileFunc func(stage shader.Stage, src string) (ok bool, log string)

// LinkFunc decides the outcome of one link given the attached sources.
type LinkFunc func(vertexSrc, fragmentSrc string) (ok bool, log string)

type shaderObj struct {
	stage    shader.Stage
	src      string
	compiled bool
	log      string
}

type programObj struct {
	attached map[shader.ShaderID]struct{}
	linked   bool
	log      string
	uniforms map[string]shader.Location
}

// Backend is a scriptable fake driver. The zero value is not usable, call New.
type Backend struct {
	// Compile overrides the default rule (fail on "#error" lines).
	Compile CompileFunc
	// Link overrides the default rule (succeed when both stages compiled).
	Link LinkFunc
	// DropUnused mimics drivers that optimise away uniforms only mentioned in
	// their declaration.
	DropUnused bool
	// FailCreate makes CreateShader/CreateProgram return an error.
	FailCreate bool

	mu       sync.Mutex
	next     uint32
	shaders  map[shader.ShaderID]*shaderObj
	programs map[shader.ProgramID]*programObj

	Compiles int
	Links    int
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{
		shaders:  make(map[shader.ShaderID]*shaderObj),
		programs: make(map[shader.ProgramID]*programObj),
	}
}

// Name implements shader.Named.
func (b *Backend) Name() string { return "shadertest" }

func (b *Backend) nextID() uint32 {
	b.next++
	return b.next
}

func (b *Backend) CreateShader(stage shader.Stage) (shader.ShaderID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCreate {
		return 0, fmt.Errorf("shadertest: cannot create %s shader", stage)
	}
	id := shader.ShaderID(b.nextID())
	b.shaders[id] = &shaderObj{stage: stage}
	return id, nil
}

func (b *Backend) ShaderSource(id shader.ShaderID, src string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shaders[id]; ok {
		s.src = src
	}
}

func (b *Backend) CompileShader(id shader.ShaderID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.shaders[id]
	if !ok {
		return false
	}
	b.Compiles++
	rule := b.Compile
	if rule == nil {
		rule = DefaultCompile
	}
	s.compiled, s.log = rule(s.stage, s.src)
	return s.compiled
}

func (b *Backend) ShaderLog(id shader.ShaderID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shaders[id]; ok {
		return s.log
	}
	return ""
}

func (b *Backend) DeleteShader(id shader.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.shaders, id)
}

func (b *Backend) CreateProgram() (shader.ProgramID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailCreate {
		return 0, fmt.Errorf("shadertest: cannot create program")
	}
	id := shader.ProgramID(b.nextID())
	b.programs[id] = &programObj{attached: make(map[shader.ShaderID]struct{})}
	return id, nil
}

func (b *Backend) AttachShader(p shader.ProgramID, s shader.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prog, ok := b.programs[p]; ok {
		prog.attached[s] = struct{}{}
	}
}

func (b *Backend) DetachShader(p shader.ProgramID, s shader.ShaderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prog, ok := b.programs[p]; ok {
		delete(prog.attached, s)
	}
}

func (b *Backend) LinkProgram(p shader.ProgramID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prog, ok := b.programs[p]
	if !ok {
		return false
	}
	b.Links++

	var vertexSrc, fragmentSrc string
	for id := range prog.attached {
		s, ok := b.shaders[id]
		if !ok || !s.compiled {
			prog.linked, prog.log = false, fmt.Sprintf("ERROR: Linking: shader %d is not compiled", id)
			return false
		}
		switch s.stage {
		case shader.StageVertex:
			vertexSrc = s.src
		case shader.StageFragment:
			fragmentSrc = s.src
		}
	}
	if vertexSrc == "" || fragmentSrc == "" {
		prog.log = "ERROR: Linking: missing vertex or fragment stage"
		return false
	}

	rule := b.Link
	if rule == nil {
		rule = func(string, string) (bool, string) { return true, "" }
	}
	prog.linked, prog.log = rule(vertexSrc, fragmentSrc)
	if prog.linked {
		prog.uniforms = scanUniforms(vertexSrc+"\n"+fragmentSrc, b.DropUnused)
	}
	return prog.linked
}

func (b *Backend) ProgramLog(p shader.ProgramID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if prog, ok := b.programs[p]; ok {
		return prog.log
	}
	return ""
}

func (b *Backend) DeleteProgram(p shader.ProgramID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.programs, p)
}

func (b *Backend) UniformLocation(p shader.ProgramID, name string) shader.Location {
	b.mu.Lock()
	defer b.mu.Unlock()
	prog, ok := b.programs[p]
	if !ok || !prog.linked {
		return shader.NoLocation
	}
	if loc, ok := prog.uniforms[name]; ok {
		return loc
	}
	return shader.NoLocation
}

// LiveShaders returns the number of shader objects not yet deleted.
func (b *Backend) LiveShaders() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.shaders)
}

// LivePrograms returns the number of programs not yet deleted.
func (b *Backend) LivePrograms() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.programs)
}

// IsLive reports whether a program handle still exists.
func (b *Backend) IsLive(p shader.ProgramID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.programs[p]
	return ok
}

// CheckNoLeaks returns an error naming every live object except those in keep.
func (b *Backend) CheckNoLeaks(keepShaders []shader.ShaderID, keepPrograms []shader.ProgramID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var leaked []string
	for id := range b.shaders {
		if !containsID(keepShaders, id) {
			leaked = append(leaked, fmt.Sprintf("shader %d", id))
		}
	}
	for id := range b.programs {
		if !containsID(keepPrograms, id) {
			leaked = append(leaked, fmt.Sprintf("program %d", id))
		}
	}
	if len(leaked) == 0 {
		return nil
	}
	sort.Strings(leaked)
	return fmt.Errorf("leaked handles: %s", strings.Join(leaked, ", "))
}

func containsID[T comparable](ids []T, id T) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
