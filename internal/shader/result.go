package shader

import "fmt"

// CompileResult is the outcome of Adapter.Compile: either Handle is set or Log
// explains the failure.
type CompileResult struct {
	Stage  Stage
	Handle ShaderID
	Log    string
}

// OK reports whether compilation produced a usable handle.
func (r CompileResult) OK() bool { return r.Handle != 0 }

// Err returns nil on success and a *CompileError otherwise.
func (r CompileResult) Err() error {
	if r.OK() {
		return nil
	}
	return &CompileError{Stage: r.Stage, Log: r.Log}
}

// LinkResult is the outcome of Adapter.Link.
type LinkResult struct {
	Program ProgramID
	Log     string
}

// OK reports whether linking produced a usable program.
func (r LinkResult) OK() bool { return r.Program != 0 }

// Err returns nil on success and a *LinkError otherwise.
func (r LinkResult) Err() error {
	if r.OK() {
		return nil
	}
	return &LinkError{Log: r.Log}
}

// CompileError carries the raw driver log of a failed compile.
type CompileError struct {
	Stage Stage
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s shader failed to compile: %s", e.Stage, firstLine(e.Log))
}

// LinkError carries the raw driver log of a failed link.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "program failed to link: " + firstLine(e.Log)
}

func firstLine(log string) string {
	for i := 0; i < len(log); i++ {
		if log[i] == '\n' {
			if i == 0 {
				continue
			}
			return log[:i]
		}
	}
	if log == "" {
		return "(no log)"
	}
	return log
}
