// Package highlight colours shader source for terminals with chroma.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"shaderlab/internal/template"
)

// DefaultStyle is used when the requested style is unknown.
const DefaultStyle = "monokai"

// Highlighter renders source lines as ANSI 256-colour text.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// New picks the lexer for d. WGSL falls back to the C-like GLSL lexer when
// chroma has none registered.
func New(d template.Dialect, style string) *Highlighter {
	lexer := lexers.Get(string(d))
	if lexer == nil {
		lexer = lexers.Get("glsl")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	s := styles.Get(style)
	if s == nil {
		s = styles.Get(DefaultStyle)
	}
	return &Highlighter{lexer: chroma.Coalesce(lexer), style: s}
}

// Lines tokenises src as a whole, so multi-line comments stay coloured, and
// returns one ANSI string per source line.
func (h *Highlighter) Lines(src string) ([]string, error) {
	if !strings.HasSuffix(src, "\n") {
		src += "\n"
	}
	it, err := h.lexer.Tokenise(nil, src)
	if err != nil {
		return nil, err
	}
	tokenLines := chroma.SplitTokensIntoLines(it.Tokens())
	out := make([]string, 0, len(tokenLines))
	for _, toks := range tokenLines {
		line, err := h.render(toks)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}

// Line colours a single line in isolation; plain text on error.
func (h *Highlighter) Line(line string) string {
	lines, err := h.Lines(line)
	if err != nil || len(lines) == 0 {
		return line
	}
	return lines[0]
}

func (h *Highlighter) render(toks []chroma.Token) (string, error) {
	// the line break belongs to the caller, not to a coloured token
	trimmed := make([]chroma.Token, 0, len(toks))
	for _, tok := range toks {
		tok.Value = strings.TrimRight(tok.Value, "\n")
		if tok.Value != "" {
			trimmed = append(trimmed, tok)
		}
	}
	var b strings.Builder
	if err := formatters.TTY256.Format(&b, h.style, chroma.Literator(trimmed...)); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Plain returns lines unchanged, for output without colour.
type Plain struct{}

func (Plain) Line(line string) string { return line }

// LineColorer is implemented by Highlighter and Plain.
type LineColorer interface {
	Line(line string) string
}
