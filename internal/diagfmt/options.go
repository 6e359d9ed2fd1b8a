package diagfmt

import (
	"path/filepath"
	"strings"

	"shaderlab/internal/diag"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows paths relative to the working directory when shorter.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	Context  int // строк контекста вокруг строки с ошибкой
	PathMode PathMode
	Style    string // chroma style, пусто = highlight.DefaultStyle
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode   PathMode
	IncludeLog bool // добавить сырой лог компилятора
}

// Input is the diagnostics of one shader document.
type Input struct {
	Path string
	// Lines is the text the Set's line numbers refer to: the fragment in
	// fragment line mode, the assembled document in raw mode.
	Lines []string
	// FileOffset is added to a Set line to get the line in Path; zero when the
	// numbers already refer to the file.
	FileOffset int
	Set        diag.Set
	Dropped    int
	// Status is "ok", "compile", "link" or "io".
	Status string
	Log    string
	Err    error
}

// FileLine maps a published line to a line in Path; 0 stays 0 (template).
func (in Input) FileLine(line int) int {
	if line <= 0 {
		return 0
	}
	return line + in.FileOffset
}

func displayPath(path string, mode PathMode) string {
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeAuto:
		if !filepath.IsAbs(path) {
			return path
		}
		if rel, err := filepath.Rel(".", path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}
