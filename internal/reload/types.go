package reload

import (
	"fmt"
	"strings"

	"shaderlab/internal/diag"
	"shaderlab/internal/shader"
	"shaderlab/internal/template"
)

// State is the coordinator's position in a reload cycle.
type State uint8

const (
	StateIdle State = iota
	StateCompiling
	StateLinked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateLinked:
		return "linked"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Trigger says why a reload ran.
type Trigger uint8

const (
	TriggerNone Trigger = iota
	// TriggerStartup is the initial load performed by Start.
	TriggerStartup
	// TriggerExternal means the document changed on disk.
	TriggerExternal
	// TriggerUser means the user asked to compile the editor contents.
	TriggerUser
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerStartup:
		return "startup"
	case TriggerExternal:
		return "external"
	case TriggerUser:
		return "user"
	}
	return "unknown"
}

// Failure classifies a failed cycle.
type Failure uint8

const (
	FailNone Failure = iota
	FailCompile
	FailLink
	FailIO
)

func (f Failure) String() string {
	switch f {
	case FailNone:
		return "none"
	case FailCompile:
		return "compile"
	case FailLink:
		return "link"
	case FailIO:
		return "io"
	}
	return "unknown"
}

// LineMode selects how diagnostic line numbers are published.
type LineMode uint8

const (
	// LineModeFragment publishes lines relative to the user fragment;
	// diagnostics in the boilerplate land on line 0.
	LineModeFragment LineMode = iota
	// LineModeRaw publishes lines exactly as the compiler reported them.
	LineModeRaw
)

// ParseLineMode converts a config value.
func ParseLineMode(s string) (LineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fragment":
		return LineModeFragment, nil
	case "raw":
		return LineModeRaw, nil
	}
	return LineModeFragment, fmt.Errorf("invalid line mode %q (expected fragment|raw)", s)
}

func (m LineMode) String() string {
	if m == LineModeRaw {
		return "raw"
	}
	return "fragment"
}

// Outcome describes one reload cycle.
type Outcome struct {
	Trigger     Trigger
	State       State // StateLinked or StateFailed
	Failure     Failure
	Diagnostics diag.Set // what was published; nil on success
	Dropped     int      // diagnostics cut by the limit
	Log         string   // raw compiler or linker log on failure
	Fallback    bool     // the default fragment replaced a missing region
	Unsaved     bool     // the document on disk had no region and was left as is
	Generation  uint64   // generation of the active program after the cycle
	Err         error
}

// OK reports whether the cycle produced a new active program.
func (o Outcome) OK() bool { return o.State == StateLinked }

// ActiveProgram is the linked program currently used for drawing.
type ActiveProgram struct {
	Program    shader.ProgramID
	Uniforms   map[string]shader.Location
	Generation uint64
}

// Location implements render.Locator.
func (p *ActiveProgram) Location(name string) (shader.Location, bool) {
	if p == nil {
		return shader.NoLocation, false
	}
	loc, ok := p.Uniforms[name]
	return loc, ok
}

// Editor is the text surface holding the user fragment.
type Editor interface {
	Text() template.Fragment
	SetText(f template.Fragment)
}

// ChangeDetector reports external modifications of the document.
type ChangeDetector interface {
	Changed() bool
	// Sync marks the current on-disk state as seen.
	Sync()
}

// PlaybackResetter rewinds the shader clock after an external reload.
type PlaybackResetter interface {
	Reset()
}

// Store reads and writes the shader document.
type Store interface {
	Load() (template.Document, error)
	Save(doc template.Document) error
}
