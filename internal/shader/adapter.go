package shader

// Adapter turns Backend calls into tagged results and guarantees that a failed
// call leaves no object behind.
type Adapter struct {
	backend Backend
}

// NewAdapter wraps b.
func NewAdapter(b Backend) *Adapter {
	return &Adapter{backend: b}
}

// Backend returns the wrapped backend.
func (a *Adapter) Backend() Backend { return a.backend }

// Compile creates and compiles one stage. On failure the shader object is
// deleted and Log holds the driver output verbatim.
func (a *Adapter) Compile(stage Stage, src string) CompileResult {
	id, err := a.backend.CreateShader(stage)
	if err != nil {
		return CompileResult{Stage: stage, Log: err.Error()}
	}
	a.backend.ShaderSource(id, src)
	if !a.backend.CompileShader(id) {
		log := a.backend.ShaderLog(id)
		a.backend.DeleteShader(id)
		return CompileResult{Stage: stage, Log: log}
	}
	return CompileResult{Stage: stage, Handle: id}
}

// Link builds a program from two compiled stages. On success both stages are
// detached but stay alive; the caller releases them. On failure the program is
// deleted.
func (a *Adapter) Link(vertex, fragment ShaderID) LinkResult {
	prog, err := a.backend.CreateProgram()
	if err != nil {
		return LinkResult{Log: err.Error()}
	}
	a.backend.AttachShader(prog, vertex)
	a.backend.AttachShader(prog, fragment)
	if !a.backend.LinkProgram(prog) {
		log := a.backend.ProgramLog(prog)
		a.backend.DetachShader(prog, vertex)
		a.backend.DetachShader(prog, fragment)
		a.backend.DeleteProgram(prog)
		return LinkResult{Log: log}
	}
	a.backend.DetachShader(prog, vertex)
	a.backend.DetachShader(prog, fragment)
	return LinkResult{Program: prog}
}

// UniformLocation looks name up; false means the program does not use it.
func (a *Adapter) UniformLocation(p ProgramID, name string) (Location, bool) {
	if p == 0 {
		return NoLocation, false
	}
	loc := a.backend.UniformLocation(p, name)
	if loc < 0 {
		return NoLocation, false
	}
	return loc, true
}

// Uniforms resolves several names at once, omitting absent ones.
func (a *Adapter) Uniforms(p ProgramID, names []string) map[string]Location {
	out := make(map[string]Location, len(names))
	for _, name := range names {
		if loc, ok := a.UniformLocation(p, name); ok {
			out[name] = loc
		}
	}
	return out
}

// ReleaseShader deletes a compiled stage. Zero is ignored.
func (a *Adapter) ReleaseShader(id ShaderID) {
	if id != 0 {
		a.backend.DeleteShader(id)
	}
}

// ReleaseProgram deletes a linked program. Zero is ignored.
func (a *Adapter) ReleaseProgram(p ProgramID) {
	if p != 0 {
		a.backend.DeleteProgram(p)
	}
}
