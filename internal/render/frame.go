// Package render owns the per-frame inputs of a shader: the playback clock,
// the frame counter, mouse and resolution, and pushes them as uniforms into
// whatever program is active.
package render

import "time"

// Mouse is the pointer state in window coordinates (origin top-left).
type Mouse struct {
	X, Y    float64
	Pressed bool
}

// FrameContext carries everything one frame's uniforms are computed from.
// The view loop owns it and calls Begin once per frame.
type FrameContext struct {
	Width, Height int
	Delta         float64 // seconds since the previous frame
	Frame         int     // frames since start, 1 on the first frame
	Mouse         Mouse
	Now           time.Time
	Playback      Playback

	last time.Time
}

// Begin advances the frame counter and the playback clock to now.
func (f *FrameContext) Begin(now time.Time) {
	f.Frame++
	if f.last.IsZero() {
		f.Delta = 0
	} else {
		f.Delta = now.Sub(f.last).Seconds()
		if f.Delta < 0 {
			f.Delta = 0
		}
	}
	f.last = now
	f.Now = now
	f.Playback.Advance(f.Delta)
}

// Resize records the framebuffer size.
func (f *FrameContext) Resize(width, height int) {
	f.Width, f.Height = width, height
}

// FrameRate is 1/Delta, or 0 before the second frame.
func (f *FrameContext) FrameRate() float64 {
	if f.Delta <= 0 {
		return 0
	}
	return 1 / f.Delta
}
