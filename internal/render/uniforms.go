package render

import (
	"math"
	"time"

	"fortio.org/safecast"

	"shaderlab/internal/shader"
)

// Uniform names every template declares.
const (
	UniformResolution = "iResolution"
	UniformTime       = "iTime"
	UniformTimeDelta  = "iTimeDelta"
	UniformFrameRate  = "iFrameRate"
	UniformFrame      = "iFrame"
	UniformMouse      = "iMouse"
	UniformDate       = "iDate"
)

// UniformNames lists the built-in uniforms in declaration order.
var UniformNames = []string{
	UniformResolution,
	UniformTime,
	UniformTimeDelta,
	UniformFrameRate,
	UniformFrame,
	UniformMouse,
	UniformDate,
}

// UniformSink receives uniform values for the currently bound program.
type UniformSink interface {
	Uniform1f(loc shader.Location, v float32)
	Uniform1i(loc shader.Location, v int32)
	Uniform2f(loc shader.Location, x, y float32)
	Uniform4f(loc shader.Location, x, y, z, w float32)
}

// Locator resolves uniform names; false means the program does not use it.
type Locator interface {
	Location(name string) (shader.Location, bool)
}

// ApplyUniforms pushes f into sink. Names the program does not use are skipped.
func ApplyUniforms(sink UniformSink, loc Locator, f *FrameContext) {
	if sink == nil || loc == nil || f == nil {
		return
	}
	if l, ok := loc.Location(UniformResolution); ok {
		sink.Uniform2f(l, float32(f.Width), float32(f.Height))
	}
	if l, ok := loc.Location(UniformTime); ok {
		sink.Uniform1f(l, float32(f.Playback.Time))
	}
	if l, ok := loc.Location(UniformTimeDelta); ok {
		sink.Uniform1f(l, float32(f.Delta))
	}
	if l, ok := loc.Location(UniformFrameRate); ok {
		sink.Uniform1f(l, float32(f.FrameRate()))
	}
	if l, ok := loc.Location(UniformFrame); ok {
		frame, err := safecast.Conv[int32](f.Frame)
		if err != nil {
			frame = math.MaxInt32
		}
		sink.Uniform1i(l, frame)
	}
	if l, ok := loc.Location(UniformMouse); ok {
		x, y := MouseUniform(f)
		var cx, cy float32
		if f.Mouse.Pressed {
			cx, cy = x, y
		}
		sink.Uniform4f(l, x, y, cx, cy)
	}
	if l, ok := loc.Location(UniformDate); ok {
		y, m, d, s := DateUniform(f.Now)
		sink.Uniform4f(l, y, m, d, s)
	}
}

// MouseUniform converts window coordinates to shader coordinates (origin
// bottom-left).
func MouseUniform(f *FrameContext) (x, y float32) {
	return float32(f.Mouse.X), float32(float64(f.Height) - f.Mouse.Y)
}

// DateUniform returns year, month (1-12), day and seconds since local midnight.
func DateUniform(now time.Time) (year, month, day, seconds float32) {
	if now.IsZero() {
		return 0, 0, 0, 0
	}
	h, m, s := now.Clock()
	return float32(now.Year()), float32(now.Month()), float32(now.Day()), float32(h*3600 + m*60 + s)
}
