package diag

import (
	"sort"
)

// Entry is one diagnostic attached to a line. Line 0 means "not inside the
// user fragment" once a set has been rebased.
type Entry struct {
	Line     int
	Message  string
	Severity Severity

	seq int // parse order; keeps last-write-wins stable across Rebase
}

// Set holds at most one entry per line.
type Set map[int]Entry

// Len returns the number of lines carrying a diagnostic.
func (s Set) Len() int { return len(s) }

// Lines returns the annotated line numbers in ascending order.
func (s Set) Lines() []int {
	lines := make([]int, 0, len(s))
	for line := range s {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines
}

// Entries returns the entries ordered by line.
func (s Set) Entries() []Entry {
	out := make([]Entry, 0, len(s))
	for _, line := range s.Lines() {
		out = append(out, s[line])
	}
	return out
}

// Message returns the message for line, if any.
func (s Set) Message(line int) (string, bool) {
	e, ok := s[line]
	return e.Message, ok
}

// HasErrors возвращает true, если есть хотя бы одна диагностика с Severity >= Error
func (s Set) HasErrors() bool {
	for _, e := range s {
		if e.Severity >= SevError {
			return true
		}
	}
	return false
}

// Count returns the number of entries at or above sev.
func (s Set) Count(sev Severity) int {
	n := 0
	for _, e := range s {
		if e.Severity >= sev {
			n++
		}
	}
	return n
}

// Rebase shifts every line by -offset so that line offset+1 becomes line 1.
// Lines that fall outside 1..fragmentLines collapse onto line 0. When several
// entries land on the same line the one parsed last wins, as in Parse.
// fragmentLines <= 0 disables the upper bound.
func (s Set) Rebase(offset, fragmentLines int) Set {
	entries := make([]Entry, 0, len(s))
	for _, e := range s {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make(Set, len(entries))
	for _, e := range entries {
		line := e.Line - offset
		if line < 1 || (fragmentLines > 0 && line > fragmentLines) {
			line = 0
		}
		e.Line = line
		out[line] = e
	}
	return out
}

// Limit keeps the first max lines (in line order). max <= 0 means no limit.
// The second result reports how many entries were dropped.
func (s Set) Limit(max int) (Set, int) {
	if max <= 0 || len(s) <= max {
		return s, 0
	}
	out := make(Set, max)
	for _, line := range s.Lines()[:max] {
		out[line] = s[line]
	}
	return out, len(s) - max
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
