// Package shader wraps a graphics driver's compile and link entry points so that
// failures come back as values carrying the driver's raw log.
package shader

import "fmt"

// Stage identifies a pipeline stage.
type Stage uint8

const (
	StageVertex Stage = iota + 1
	StageFragment
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Ext is the file extension glslang and most editors associate with the stage.
func (s Stage) Ext() string {
	switch s {
	case StageVertex:
		return "vert"
	case StageFragment:
		return "frag"
	}
	return ""
}

// ShaderID is a backend handle of a compiled stage. Zero is never valid.
type ShaderID uint32

// ProgramID is a backend handle of a linked program. Zero is never valid.
type ProgramID uint32

// Location is a uniform location inside a program.
type Location int32

// NoLocation is what backends return for names the program does not use.
const NoLocation Location = -1

// Backend is the driver surface the Adapter needs. It mirrors the GL object
// model: objects are created empty, fed source, compiled, attached and linked.
// Implementations need not be goroutine-safe.
type Backend interface {
	CreateShader(stage Stage) (ShaderID, error)
	ShaderSource(id ShaderID, src string)
	CompileShader(id ShaderID) bool
	ShaderLog(id ShaderID) string
	DeleteShader(id ShaderID)

	CreateProgram() (ProgramID, error)
	AttachShader(p ProgramID, s ShaderID)
	DetachShader(p ProgramID, s ShaderID)
	LinkProgram(p ProgramID) bool
	ProgramLog(p ProgramID) string
	DeleteProgram(p ProgramID)

	UniformLocation(p ProgramID, name string) Location
}

// Named is implemented by backends that can report what they are.
type Named interface {
	Name() string
}

// NameOf returns b's name, or its Go type when it has none.
func NameOf(b Backend) string {
	if n, ok := b.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", b)
}
