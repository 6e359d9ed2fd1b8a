package diagfmt

import (
	"encoding/json"
	"io"

	"shaderlab/internal/diag"
)

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Severity string `json:"severity"`
	// Line is the published line: fragment-relative in fragment mode.
	Line     int    `json:"line"`
	FileLine int    `json:"file_line"`
	Message  string `json:"message"`
}

// FileJSON groups the diagnostics of one document.
type FileJSON struct {
	Path        string           `json:"path"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Dropped     int              `json:"dropped,omitempty"`
	Log         string           `json:"log,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Files  []FileJSON `json:"files"`
	Count  int        `json:"count"`
	Errors int        `json:"errors"`
}

// BuildDiagnosticsOutput формирует структуру JSON-вывода без сериализации.
func BuildDiagnosticsOutput(inputs []Input, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{Files: make([]FileJSON, 0, len(inputs))}
	for _, in := range inputs {
		f := FileJSON{
			Path:        displayPath(in.Path, opts.PathMode),
			Status:      in.Status,
			Diagnostics: make([]DiagnosticJSON, 0, in.Set.Len()),
			Dropped:     in.Dropped,
		}
		if in.Err != nil {
			f.Error = in.Err.Error()
		}
		if opts.IncludeLog {
			f.Log = in.Log
		}
		for _, e := range in.Set.Entries() {
			f.Diagnostics = append(f.Diagnostics, DiagnosticJSON{
				Severity: e.Severity.String(),
				Line:     e.Line,
				FileLine: in.FileLine(e.Line),
				Message:  e.Message,
			})
		}
		out.Count += len(f.Diagnostics)
		out.Errors += in.Set.Count(diag.SevError)
		out.Files = append(out.Files, f)
	}
	return out
}

// JSON форматирует диагностики в JSON формат.
func JSON(w io.Writer, inputs []Input, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildDiagnosticsOutput(inputs, opts))
}
