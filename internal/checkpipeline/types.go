package checkpipeline

import "time"

// Stage describes one step of checking a document.
type Stage string

const (
	// StageLoad reads the document and extracts the user region.
	StageLoad Stage = "load"
	// StageCompile compiles the vertex and fragment stages.
	StageCompile Stage = "compile"
	// StageLink links the two stages.
	StageLink Stage = "link"
	// StageCache is a cache lookup that answered without compiling.
	StageCache Stage = "cache"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the overall run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Run calls it from worker goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// Timings holds stage durations summed over all checked files. Stages that
// never ran have no entry.
type Timings map[Stage]time.Duration

// Merge adds every duration of other to t.
func (t Timings) Merge(other Timings) {
	for stage, d := range other {
		t[stage] += d
	}
}

// Sum returns the sum of durations across the provided stages.
func (t Timings) Sum(stages ...Stage) time.Duration {
	var total time.Duration
	for _, stage := range stages {
		total += t[stage]
	}
	return total
}
