package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindSpanBegin marks the start of a logical operation.
	KindSpanBegin Kind = iota + 1 // span start
	// KindSpanEnd marks the end of a logical operation.
	KindSpanEnd // span end
	// KindPoint represents an instant event.
	KindPoint // instant event
	// KindError reports a failure; emitted at every level above off.
	KindError
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Scope indicates the granularity level of the event.
// Lower numeric values represent higher-level/coarser events.
type Scope uint8

const (
	// ScopeDriver represents CLI commands and the watch/edit loops.
	ScopeDriver Scope = iota + 1
	// ScopeReload represents one reload cycle of the coordinator.
	ScopeReload
	// ScopeStage represents a single compile or link call.
	ScopeStage
	// ScopeEvent represents individual diagnostics and uniform lookups.
	ScopeEvent
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeReload:
		return "reload"
	case ScopeStage:
		return "stage"
	case ScopeEvent:
		return "event"
	default:
		return "unknown"
	}
}

// MarshalText lets NDJSON output carry the kind's name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MarshalText lets NDJSON output carry the scope's name.
func (s Scope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Event is one trace record. The JSON form is the NDJSON line format.
type Event struct {
	Time     time.Time         `json:"time"`
	Seq      uint64            `json:"seq"` // assigned by the sink
	Kind     Kind              `json:"kind"`
	Scope    Scope             `json:"scope"`
	SpanID   uint64            `json:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty"` // 0 for a root span
	Name     string            `json:"name"`                // e.g. "reload", "compile:fragment", "link"
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}
