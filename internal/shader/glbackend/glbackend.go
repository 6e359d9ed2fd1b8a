//go:build gl

// Package glbackend drives a real OpenGL context through go-gl. Every method
// must be called on the goroutine that owns the current context.
package glbackend

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"

	"shaderlab/internal/render"
	"shaderlab/internal/shader"
)

// Backend implements shader.Backend, render.UniformSink and
// render.GeometryBackend on the current GL context.
type Backend struct {
	geometries map[render.GeometryID]geometry
	next       render.GeometryID
}

type geometry struct {
	vao, vbo, ibo uint32
	count         int32
}

// New loads GL function pointers; a context must be current.
func New() (*Backend, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl init: %w", err)
	}
	return &Backend{geometries: make(map[render.GeometryID]geometry)}, nil
}

// Name implements shader.Named.
func (b *Backend) Name() string { return "gl" }

// Version reports the driver's version string.
func (b *Backend) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

func glStage(stage shader.Stage) uint32 {
	if stage == shader.StageVertex {
		return gl.VERTEX_SHADER
	}
	return gl.FRAGMENT_SHADER
}

func (b *Backend) CreateShader(stage shader.Stage) (shader.ShaderID, error) {
	id := gl.CreateShader(glStage(stage))
	if id == 0 {
		return 0, fmt.Errorf("glCreateShader(%s) failed", stage)
	}
	return shader.ShaderID(id), nil
}

func (b *Backend) ShaderSource(id shader.ShaderID, src string) {
	csources, free := gl.Strs(src + "\x00")
	gl.ShaderSource(uint32(id), 1, csources, nil)
	free()
}

func (b *Backend) CompileShader(id shader.ShaderID) bool {
	gl.CompileShader(uint32(id))
	var status int32
	gl.GetShaderiv(uint32(id), gl.COMPILE_STATUS, &status)
	return status != gl.FALSE
}

func (b *Backend) ShaderLog(id shader.ShaderID) string {
	var n int32
	gl.GetShaderiv(uint32(id), gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return ""
	}
	msg := strings.Repeat("\x00", int(n+1))
	gl.GetShaderInfoLog(uint32(id), n, nil, gl.Str(msg))
	return strings.TrimRight(msg, "\x00")
}

func (b *Backend) DeleteShader(id shader.ShaderID) { gl.DeleteShader(uint32(id)) }

func (b *Backend) CreateProgram() (shader.ProgramID, error) {
	id := gl.CreateProgram()
	if id == 0 {
		return 0, fmt.Errorf("glCreateProgram failed")
	}
	return shader.ProgramID(id), nil
}

func (b *Backend) AttachShader(p shader.ProgramID, s shader.ShaderID) {
	gl.AttachShader(uint32(p), uint32(s))
}

func (b *Backend) DetachShader(p shader.ProgramID, s shader.ShaderID) {
	gl.DetachShader(uint32(p), uint32(s))
}

func (b *Backend) LinkProgram(p shader.ProgramID) bool {
	gl.LinkProgram(uint32(p))
	var status int32
	gl.GetProgramiv(uint32(p), gl.LINK_STATUS, &status)
	return status != gl.FALSE
}

func (b *Backend) ProgramLog(p shader.ProgramID) string {
	var n int32
	gl.GetProgramiv(uint32(p), gl.INFO_LOG_LENGTH, &n)
	if n <= 0 {
		return ""
	}
	msg := strings.Repeat("\x00", int(n+1))
	gl.GetProgramInfoLog(uint32(p), n, nil, gl.Str(msg))
	return strings.TrimRight(msg, "\x00")
}

func (b *Backend) DeleteProgram(p shader.ProgramID) { gl.DeleteProgram(uint32(p)) }

func (b *Backend) UniformLocation(p shader.ProgramID, name string) shader.Location {
	return shader.Location(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

// Use binds p for subsequent uniform uploads and draws.
func (b *Backend) Use(p shader.ProgramID) { gl.UseProgram(uint32(p)) }

func (b *Backend) Uniform1f(loc shader.Location, v float32) { gl.Uniform1f(int32(loc), v) }
func (b *Backend) Uniform1i(loc shader.Location, v int32)   { gl.Uniform1i(int32(loc), v) }
func (b *Backend) Uniform2f(loc shader.Location, x, y float32) {
	gl.Uniform2f(int32(loc), x, y)
}
func (b *Backend) Uniform4f(loc shader.Location, x, y, z, w float32) {
	gl.Uniform4f(int32(loc), x, y, z, w)
}

// CreateGeometry uploads interleaved position/color vertices and indices.
func (b *Backend) CreateGeometry(vertices []float32, indices []uint16, stride int) (render.GeometryID, error) {
	if len(vertices) == 0 || len(indices) == 0 || stride < 6 {
		return 0, fmt.Errorf("empty geometry")
	}
	var g geometry
	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)

	gl.GenBuffers(1, &g.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, g.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	strideBytes := int32(stride * 4)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, strideBytes, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, strideBytes, 3*4)

	gl.GenBuffers(1, &g.ibo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, g.ibo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*2, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	g.count = int32(len(indices))

	b.next++
	b.geometries[b.next] = g
	return b.next, nil
}

// DeleteGeometry frees the buffers of id.
func (b *Backend) DeleteGeometry(id render.GeometryID) {
	g, ok := b.geometries[id]
	if !ok {
		return
	}
	gl.DeleteBuffers(1, &g.ibo)
	gl.DeleteBuffers(1, &g.vbo)
	gl.DeleteVertexArrays(1, &g.vao)
	delete(b.geometries, id)
}

// Clear sets the viewport and clears the color buffer.
func (b *Backend) Clear(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
}

// Draw renders geometry id with the bound program.
func (b *Backend) Draw(id render.GeometryID) {
	g, ok := b.geometries[id]
	if !ok {
		return
	}
	gl.BindVertexArray(g.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, g.count, gl.UNSIGNED_SHORT, 0)
	gl.BindVertexArray(0)
}
