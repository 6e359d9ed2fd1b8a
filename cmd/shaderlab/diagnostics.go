package main

import (
	"strings"

	"shaderlab/internal/diagfmt"
	"shaderlab/internal/reload"
	"shaderlab/internal/template"
)

// compileFailureInput maps a fragment compile log onto the fragment, the same
// way reloads publish it.
func compileFailureInput(path string, tpl *template.Template, frag template.Fragment, log string, limit int) diagfmt.Input {
	set, dropped := reload.MapDiagnostics(log, tpl, frag, reload.LineModeFragment, limit)
	return diagfmt.Input{
		Path:       path,
		Lines:      strings.Split(string(frag), "\n"),
		FileOffset: tpl.PreludeLines(),
		Set:        set,
		Dropped:    dropped,
		Status:     reload.FailCompile.String(),
		Log:        log,
	}
}
