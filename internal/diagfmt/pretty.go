package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"shaderlab/internal/diag"
	"shaderlab/internal/highlight"
	"shaderlab/internal/template"
)

type palette struct {
	err, warn, info, path, gutter, dim *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:    color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow, color.Bold),
		info:   color.New(color.FgCyan),
		path:   color.New(color.Bold),
		gutter: color.New(color.FgBlue),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.path, p.gutter, p.dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	default:
		return p.info
	}
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Для каждой записи печатает:
//
//	<path>:<line>: <SEV> <message>
//
// затем строки контекста с номерами и маркером '>' на строке ошибки.
// Записи строки 0 (шаблон) печатаются без контекста.
func Pretty(w io.Writer, in Input, d template.Dialect, opts PrettyOpts) {
	p := newPalette(opts.Color)
	var colorer highlight.LineColorer = highlight.Plain{}
	if opts.Color {
		colorer = highlight.New(d, opts.Style)
	}
	path := displayPath(in.Path, opts.PathMode)

	if in.Err != nil && in.Set.Len() == 0 {
		fmt.Fprintf(w, "%s: %s %v\n", p.path.Sprint(path), p.err.Sprint("ERROR"), in.Err)
		return
	}

	gutterWidth := len(fmt.Sprint(in.FileLine(len(in.Lines))))
	for _, e := range in.Set.Entries() {
		loc := path
		if fl := in.FileLine(e.Line); fl > 0 {
			loc = fmt.Sprintf("%s:%d", path, fl)
		} else {
			loc += ":<template>"
		}
		fmt.Fprintf(w, "%s: %s %s\n", p.path.Sprint(loc), p.severity(e.Severity).Sprint(e.Severity.String()), e.Message)
		if e.Line <= 0 || e.Line > len(in.Lines) {
			continue
		}
		from := max(1, e.Line-opts.Context)
		to := min(len(in.Lines), e.Line+opts.Context)
		for n := from; n <= to; n++ {
			marker := " "
			if n == e.Line {
				marker = p.severity(e.Severity).Sprint(">")
			}
			num := fmt.Sprintf("%*d", gutterWidth, in.FileLine(n))
			fmt.Fprintf(w, "%s %s %s %s\n", marker, p.gutter.Sprint(num), p.gutter.Sprint("|"), colorer.Line(in.Lines[n-1]))
		}
	}

	if in.Dropped > 0 {
		fmt.Fprintln(w, p.dim.Sprintf("... %d more diagnostics not shown", in.Dropped))
	}
}

// Summary prints "N errors, M warnings in K files".
func Summary(w io.Writer, inputs []Input, useColor bool) {
	p := newPalette(useColor)
	var errs, warns, failed int
	for _, in := range inputs {
		errs += in.Set.Count(diag.SevError)
		warns += in.Set.Count(diag.SevWarning)
		if in.Status != "ok" {
			failed++
		}
	}
	parts := []string{
		p.err.Sprint(plural(errs, "error")),
		p.warn.Sprint(plural(warns, "warning")),
	}
	fmt.Fprintf(w, "%s in %s (%d failed)\n", strings.Join(parts, ", "), plural(len(inputs), "file"), failed)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Short prints one line per diagnostic: "<path>:<line>: <message>", the
// message truncated to width columns when width > 0.
func Short(w io.Writer, in Input, pathMode PathMode, width int) {
	path := displayPath(in.Path, pathMode)
	if in.Err != nil && in.Set.Len() == 0 {
		fmt.Fprintf(w, "%s:0: %v\n", path, in.Err)
		return
	}
	for _, e := range in.Set.Entries() {
		prefix := fmt.Sprintf("%s:%d: ", path, in.FileLine(e.Line))
		msg := e.Message
		if width > 0 {
			msg = runewidth.Truncate(msg, max(width-runewidth.StringWidth(prefix), 1), "…")
		}
		fmt.Fprintln(w, prefix+msg)
	}
}
