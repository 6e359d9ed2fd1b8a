// Package template splits shader documents into boilerplate and the user-owned
// region, and assembles an edited region back into a compilable document.
//
// A document carries its editable region between two sentinel comment lines:
//
//	// BEGIN_USER_CODE
//	vec3 userColor(vec2 uv) { ... }
//	// END_USER_CODE
//
// Everything outside the sentinels is owned by the Template of the selected
// dialect and is regenerated on every Assemble.
package template

import (
	"fmt"
	"strings"
)

const (
	// BeginSentinel opens the user region; it must occupy a whole line.
	BeginSentinel = "// BEGIN_USER_CODE"
	// EndSentinel closes the user region; it must occupy a whole line.
	EndSentinel = "// END_USER_CODE"
)

// Document is a complete shader source as stored on disk.
type Document string

// Fragment is the text strictly between the sentinel lines.
type Fragment string

// Dialect selects the shading language of the boilerplate.
type Dialect string

const (
	DialectGLSL Dialect = "glsl"
	DialectWGSL Dialect = "wgsl"
)

// ParseDialect converts a config/flag value to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "glsl":
		return DialectGLSL, nil
	case "wgsl":
		return DialectWGSL, nil
	default:
		return "", fmt.Errorf("unknown shader dialect %q (expected glsl|wgsl)", s)
	}
}

// Template is the fixed boilerplate of one dialect.
type Template struct {
	dialect  Dialect
	prelude  string // ends with the begin sentinel line
	epilogue string // starts with the end sentinel line
	vertex   string
	entry    string
	fallback Fragment
}

// For returns the built-in template of dialect d.
func For(d Dialect) (*Template, error) {
	switch d {
	case DialectGLSL:
		return &Template{
			dialect:  d,
			prelude:  glslPrelude + BeginSentinel + "\n",
			epilogue: EndSentinel + "\n" + glslEpilogue,
			vertex:   glslVertex,
			entry:    "userColor",
			fallback: glslDefaultFragment,
		}, nil
	case DialectWGSL:
		return &Template{
			dialect:  d,
			prelude:  wgslPrelude + BeginSentinel + "\n",
			epilogue: EndSentinel + "\n" + wgslEpilogue,
			vertex:   wgslVertex,
			entry:    "userColor",
			fallback: wgslDefaultFragment,
		}, nil
	default:
		return nil, fmt.Errorf("no template for dialect %q", d)
	}
}

// MustFor is For for the built-in dialect constants.
func MustFor(d Dialect) *Template {
	t, err := For(d)
	if err != nil {
		panic(err)
	}
	return t
}

// Dialect reports the template's shading language.
func (t *Template) Dialect() Dialect { return t.dialect }

// EntryFunction is the function the user fragment has to define.
func (t *Template) EntryFunction() string { return t.entry }

// DefaultFragment is the fragment used when a document has no user region.
func (t *Template) DefaultFragment() Fragment { return t.fallback }

// VertexSource is the full-screen quad vertex stage linked against every fragment.
func (t *Template) VertexSource() string { return t.vertex }

// PreludeLines is the number of document lines before the first fragment line,
// begin sentinel included. Line N of the fragment is line N+PreludeLines() of
// the assembled document.
func (t *Template) PreludeLines() int {
	return strings.Count(t.prelude, "\n")
}

// Assemble wraps f into the boilerplate. The fragment is always followed by a
// single '\n', so Extract(Assemble(f)) == f for any f without sentinel lines.
// Whether f defines the entry function is left to the compiler.
func (t *Template) Assemble(f Fragment) Document {
	var b strings.Builder
	b.Grow(len(t.prelude) + len(f) + len(t.epilogue) + 1)
	b.WriteString(t.prelude)
	b.WriteString(string(f))
	b.WriteByte('\n')
	b.WriteString(t.epilogue)
	return Document(b.String())
}

// Extract returns the user region of doc, or "" when there is none.
func Extract(doc Document) Fragment {
	f, _ := ExtractRegion(doc)
	return f
}

// ExtractRegion returns the lines strictly between the first begin sentinel and
// the first end sentinel. ok is false when either sentinel is missing or the end
// sentinel comes first; that is not an error, callers fall back to a default.
func ExtractRegion(doc Document) (Fragment, bool) {
	lines := strings.Split(string(doc), "\n")
	begin, end := -1, -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case BeginSentinel:
			if begin < 0 {
				begin = i
			}
		case EndSentinel:
			if end < 0 {
				end = i
			}
		}
	}
	if begin < 0 || end < 0 || end < begin {
		return "", false
	}
	return Fragment(strings.Join(lines[begin+1:end], "\n")), true
}

// LineCount is the number of lines the fragment occupies in an assembled document.
func LineCount(f Fragment) int {
	return strings.Count(string(f), "\n") + 1
}

// IsSentinel reports whether line would be read as a sentinel.
func IsSentinel(line string) bool {
	s := strings.TrimSpace(line)
	return s == BeginSentinel || s == EndSentinel
}
