package shadertest

import (
	"fmt"
	"strings"

	"shaderlab/internal/shader"
)

// DefaultCompile fails on the first line containing "#error" and reports it in
// glslang's layout, so the result feeds straight into diag.Parse.
func DefaultCompile(_ shader.Stage, src string) (bool, string) {
	for i, line := range strings.Split(src, "\n") {
		if idx := strings.Index(line, "#error"); idx >= 0 {
			msg := strings.TrimSpace(line[idx+len("#error"):])
			return false, fmt.Sprintf("ERROR: 0:%d: '#error' : %s\nERROR: 1 compilation errors.  No code generated.\n", i+1, msg)
		}
	}
	return true, ""
}

// FailWith returns a CompileFunc that always fails with log.
func FailWith(log string) CompileFunc {
	return func(shader.Stage, string) (bool, string) { return false, log }
}

// scanUniforms assigns locations in declaration order to GLSL
// "uniform <type> <name>;" and WGSL "var<uniform> <name>:" declarations.
func scanUniforms(src string, dropUnused bool) map[string]shader.Location {
	out := make(map[string]shader.Location)
	var next shader.Location
	for _, raw := range strings.Split(src, "\n") {
		name := uniformName(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, seen := out[name]; seen {
			continue
		}
		if dropUnused && strings.Count(src, name) < 2 {
			continue
		}
		out[name] = next
		next++
	}
	return out
}

func uniformName(line string) string {
	switch {
	case strings.HasPrefix(line, "uniform "):
		fields := strings.Fields(strings.TrimSuffix(line, ";"))
		if len(fields) != 3 {
			return ""
		}
		return strings.TrimSuffix(fields[2], ";")
	case strings.Contains(line, "var<uniform>"):
		rest := line[strings.Index(line, "var<uniform>")+len("var<uniform>"):]
		name, _, ok := strings.Cut(rest, ":")
		if !ok {
			return ""
		}
		return strings.TrimSpace(name)
	}
	return ""
}
