package render

// Playback is the shader clock shown as iTime. It starts paused, like a
// freshly loaded shader.
type Playback struct {
	Time   float64 // seconds of accumulated play time
	Active bool
}

// Toggle switches between playing and paused.
func (p *Playback) Toggle() { p.Active = !p.Active }

// Reset rewinds to zero and pauses.
func (p *Playback) Reset() {
	p.Time = 0
	p.Active = false
}

// Advance accumulates dt seconds while playing.
func (p *Playback) Advance(dt float64) {
	if p.Active && dt > 0 {
		p.Time += dt
	}
}

// State is a short label for status bars.
func (p *Playback) State() string {
	if p.Active {
		return "playing"
	}
	return "paused"
}
