// Package config loads shaderlab.toml.
//
// The file is optional. Every key has a default, a file only overrides what it
// defines, and command-line flags override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"shaderlab/internal/reload"
	"shaderlab/internal/template"
	"shaderlab/internal/watch"
)

// FileName is the name looked up by Find.
const FileName = "shaderlab.toml"

// Config mirrors shaderlab.toml.
type Config struct {
	Shader      ShaderConfig      `toml:"shader"`
	Compiler    CompilerConfig    `toml:"compiler"`
	Watch       WatchConfig       `toml:"watch"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`

	// Path is the file the config was read from, "" for defaults.
	Path string `toml:"-"`
}

type ShaderConfig struct {
	Path    string `toml:"path"`
	Dialect string `toml:"dialect"`
	// DefaultFragment names a file whose contents replace a missing user region.
	DefaultFragment string `toml:"default_fragment"`
}

type CompilerConfig struct {
	// Backend is glslang, naga or gl.
	Backend string `toml:"backend"`
	// Binary overrides the glslangValidator executable.
	Binary  string `toml:"binary"`
	Timeout string `toml:"timeout"`
}

type WatchConfig struct {
	Mode     string `toml:"mode"`
	Interval string `toml:"interval"`
}

type DiagnosticsConfig struct {
	LineMode string `toml:"line_mode"`
	Max      int    `toml:"max"`
}

// Backend names.
const (
	BackendGlslang = "glslang"
	BackendNaga    = "naga"
	BackendGL      = "gl"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Shader: ShaderConfig{
			Path:    "shader.glsl",
			Dialect: string(template.DialectGLSL),
		},
		Compiler: CompilerConfig{
			Backend: BackendGlslang,
			Binary:  "glslangValidator",
			Timeout: "10s",
		},
		Watch: WatchConfig{
			Mode:     "poll",
			Interval: "250ms",
		},
		Diagnostics: DiagnosticsConfig{
			LineMode: "fragment",
			Max:      100,
		},
	}
}

// Find walks up from startDir looking for shaderlab.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load reads path over the defaults. Relative shader paths, including the
// default one, are resolved against the config file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, &ValidationError{Path: path, Problems: []string{"unknown keys: " + strings.Join(keys, ", ")}}
	}
	if meta.IsDefined("shader", "path") && strings.TrimSpace(cfg.Shader.Path) == "" {
		return Config{}, &ValidationError{Path: path, Problems: []string{"[shader].path is empty"}}
	}
	root := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Shader.Path) {
		cfg.Shader.Path = filepath.Join(root, filepath.FromSlash(cfg.Shader.Path))
	}
	if cfg.Shader.DefaultFragment != "" && !filepath.IsAbs(cfg.Shader.DefaultFragment) {
		cfg.Shader.DefaultFragment = filepath.Join(root, filepath.FromSlash(cfg.Shader.DefaultFragment))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Discover finds and loads the nearest shaderlab.toml, or returns the
// defaults when there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// ValidationError lists every invalid value found in one file.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	where := e.Path
	if where == "" {
		where = "config"
	}
	if len(e.Problems) == 1 {
		return where + ": " + e.Problems[0]
	}
	return where + ": " + strings.Join(e.Problems, "; ")
}

// Validate checks every enumerated and numeric value.
func (c Config) Validate() error {
	var problems []string
	if _, err := template.ParseDialect(c.Shader.Dialect); err != nil {
		problems = append(problems, "[shader].dialect: "+err.Error())
	}
	switch c.Compiler.Backend {
	case BackendGlslang, BackendNaga, BackendGL:
	default:
		problems = append(problems, fmt.Sprintf("[compiler].backend: unknown backend %q (expected glslang|naga|gl)", c.Compiler.Backend))
	}
	if d, err := template.ParseDialect(c.Shader.Dialect); err == nil {
		if want := backendDialect(c.Compiler.Backend); want != "" && want != d {
			problems = append(problems, fmt.Sprintf("[compiler].backend: %s compiles %s, not %s", c.Compiler.Backend, want, d))
		}
	}
	if _, err := parseDuration(c.Compiler.Timeout); err != nil {
		problems = append(problems, "[compiler].timeout: "+err.Error())
	}
	if _, err := watch.ParseMode(c.Watch.Mode); err != nil {
		problems = append(problems, "[watch].mode: "+err.Error())
	}
	if _, err := parseDuration(c.Watch.Interval); err != nil {
		problems = append(problems, "[watch].interval: "+err.Error())
	}
	if _, err := reload.ParseLineMode(c.Diagnostics.LineMode); err != nil {
		problems = append(problems, "[diagnostics].line_mode: "+err.Error())
	}
	if c.Diagnostics.Max < 0 {
		problems = append(problems, "[diagnostics].max must be >= 0")
	}
	if len(problems) > 0 {
		return &ValidationError{Path: c.Path, Problems: problems}
	}
	return nil
}

func backendDialect(backend string) template.Dialect {
	switch backend {
	case BackendGlslang, BackendGL:
		return template.DialectGLSL
	case BackendNaga:
		return template.DialectWGSL
	}
	return ""
}

// Dialect returns the parsed shader dialect. Call Validate first.
func (c Config) Dialect() template.Dialect {
	d, _ := template.ParseDialect(c.Shader.Dialect)
	return d
}

// LineMode returns the parsed diagnostics line mode.
func (c Config) LineMode() reload.LineMode {
	m, _ := reload.ParseLineMode(c.Diagnostics.LineMode)
	return m
}

// WatchMode returns the parsed watch mode.
func (c Config) WatchMode() watch.Mode {
	m, _ := watch.ParseMode(c.Watch.Mode)
	return m
}

// WatchInterval returns the poll interval.
func (c Config) WatchInterval() time.Duration {
	d, _ := parseDuration(c.Watch.Interval)
	return d
}

// CompilerTimeout returns the per-invocation timeout of external compilers.
func (c Config) CompilerTimeout() time.Duration {
	d, _ := parseDuration(c.Compiler.Timeout)
	return d
}

// DefaultFragment reads the configured default fragment; "" means the
// template's built-in one.
func (c Config) DefaultFragment() (template.Fragment, error) {
	if c.Shader.DefaultFragment == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.Shader.DefaultFragment)
	if err != nil {
		return "", fmt.Errorf("[shader].default_fragment: %w", err)
	}
	return template.Fragment(strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")), nil
}

func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// Write encodes c as TOML to path, failing if the file exists.
func Write(path string, c Config) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(c); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: encode: %w", path, err)
	}
	return f.Close()
}
