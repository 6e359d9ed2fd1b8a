package diag

import "strings"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevInfo is for informational diagnostics.
	SevInfo Severity = iota
	// SevWarning is for warning diagnostics.
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// severityOf guesses the severity of a compiler log line. Drivers disagree on
// labels, so any line that mentions neither word is treated as an error: the
// log was only produced because something failed.
func severityOf(line string) Severity {
	l := strings.ToLower(line)
	switch {
	case strings.Contains(l, "error"):
		return SevError
	case strings.Contains(l, "warning"):
		return SevWarning
	case strings.HasPrefix(strings.TrimSpace(l), "note") || strings.HasPrefix(strings.TrimSpace(l), "info"):
		return SevInfo
	}
	return SevError
}
