package diag

import (
	"strconv"
	"strings"
)

// Parse extracts line-addressed diagnostics from a raw compiler log.
// Each line is tried against the paren shape, then the colon shape; lines that
// match neither are skipped. Parse never fails.
func Parse(rawLog string) Set {
	out := make(Set)
	seq := 0
	for _, line := range strings.Split(rawLog, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		n, ok := ParenLine(line)
		if !ok {
			n, ok = ColonLine(line)
		}
		if !ok {
			continue
		}
		out[n] = Entry{
			Line:     n,
			Message:  line,
			Severity: severityOf(line),
			seq:      seq,
		}
		seq++
	}
	return out
}

// ParenLine matches "<stage>(<line>) : <message>". The stage token must be
// non-empty and contain no whitespace, ':', '(' or ')'.
func ParenLine(line string) (int, bool) {
	open := strings.IndexByte(line, '(')
	if open <= 0 {
		return 0, false
	}
	if strings.ContainsAny(line[:open], " \t:)") {
		return 0, false
	}
	rest := line[open+1:]
	closing := strings.IndexByte(rest, ')')
	if closing < 0 {
		return 0, false
	}
	n, ok := lineNumber(rest[:closing])
	if !ok {
		return 0, false
	}
	// after ')' only spaces may come before the ':' separator
	tail := strings.TrimLeft(rest[closing+1:], " \t")
	if !strings.HasPrefix(tail, ":") {
		return 0, false
	}
	return n, true
}

// ColonLine matches "<prefix>:<line>:<message>", optionally preceded by a
// severity label such as "ERROR: " or "warning: ". When the text after the
// label has no number in place, the label itself is taken as the prefix, so
// "ERROR: 12: msg" reads line 12.
func ColonLine(line string) (int, bool) {
	if body := skipSeverityLabel(line); len(body) < len(line) {
		if n, ok := colonNumber(body); ok {
			return n, true
		}
	}
	return colonNumber(strings.TrimSpace(line))
}

// colonNumber reads the number between the first and second ':'.
func colonNumber(body string) (int, bool) {
	first := strings.IndexByte(body, ':')
	if first < 0 {
		return 0, false
	}
	rest := body[first+1:]
	second := strings.IndexByte(rest, ':')
	if second < 0 {
		return 0, false
	}
	return lineNumber(strings.TrimSpace(rest[:second]))
}

// skipSeverityLabel drops a leading "<letters>: " label.
func skipSeverityLabel(line string) string {
	i := 0
	for i < len(line) && isLetter(line[i]) {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != ':' || line[i+1] != ' ' {
		return line
	}
	return line[i+2:]
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// lineNumber accepts a plain non-negative decimal.
func lineNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
