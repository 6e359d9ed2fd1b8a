package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shaderlab/internal/checkpipeline"
	"shaderlab/internal/config"
	"shaderlab/internal/observ"
	"shaderlab/internal/reload"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/glslang"
	"shaderlab/internal/shader/naga"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
	"shaderlab/internal/watch"
)

// errNeedsWindow is returned when the gl backend is selected outside `view`.
var errNeedsWindow = errors.New("the gl backend needs a window; use `shaderlab view` or pick glslang|naga")

// loadConfig reads --config (or the nearest shaderlab.toml) and applies the
// override flags on top of it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}

	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		var wd string
		wd, err = os.Getwd()
		if err != nil {
			return config.Config{}, err
		}
		cfg, err = config.Discover(wd)
	}
	if err != nil {
		return config.Config{}, err
	}

	for flag, dst := range map[string]*string{
		"backend":   &cfg.Compiler.Backend,
		"dialect":   &cfg.Shader.Dialect,
		"line-mode": &cfg.Diagnostics.LineMode,
	} {
		v, err := flags.GetString(flag)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get %s flag: %w", flag, err)
		}
		if v != "" {
			*dst = v
		}
	}
	if flags.Changed("max-diagnostics") {
		n, err := flags.GetInt("max-diagnostics")
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
		cfg.Diagnostics.Max = n
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// backendFactory returns a constructor for the configured compiler backend.
func backendFactory(cfg config.Config) (checkpipeline.BackendFactory, error) {
	switch cfg.Compiler.Backend {
	case config.BackendGlslang:
		opts := glslang.Options{Bin: cfg.Compiler.Binary, Timeout: cfg.CompilerTimeout()}
		return func(ctx context.Context) (shader.Backend, error) {
			b := glslang.New(ctx, opts)
			if err := b.Available(); err != nil {
				return nil, err
			}
			return b, nil
		}, nil
	case config.BackendNaga:
		return func(context.Context) (shader.Backend, error) {
			return naga.New(naga.Options{Validate: true}), nil
		}, nil
	case config.BackendGL:
		return nil, errNeedsWindow
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Compiler.Backend)
	}
}

// session is what watch, edit and view share: a coordinator configuration
// for one shader document plus its change detector.
type session struct {
	cfg      config.Config
	tpl      *template.Template
	path     string
	detector watch.Detector
	timer    *observ.Timer
}

// shaderPath picks the document: the argument when given, else [shader].path.
func shaderPath(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Shader.Path
}

func newSession(cfg config.Config, path string) (*session, error) {
	tpl, err := template.For(cfg.Dialect())
	if err != nil {
		return nil, err
	}
	det, err := watch.New(cfg.WatchMode(), path, cfg.WatchInterval())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return &session{
		cfg:      cfg,
		tpl:      tpl,
		path:     path,
		detector: det,
		timer:    observ.NewTimer(),
	}, nil
}

// options fills everything but the editor, publisher and playback.
func (s *session) options(ctx context.Context, adapter *shader.Adapter) (reload.Options, error) {
	def, err := s.cfg.DefaultFragment()
	if err != nil {
		return reload.Options{}, err
	}
	return reload.Options{
		Template:        s.tpl,
		Adapter:         adapter,
		Store:           reload.FileStore{Path: s.path},
		Detector:        s.detector,
		DefaultFragment: def,
		LineMode:        s.cfg.LineMode(),
		MaxDiagnostics:  s.cfg.Diagnostics.Max,
		Tracer:          trace.FromContext(ctx),
		Timer:           s.timer,
	}, nil
}

func (s *session) Close() {
	if s.detector != nil {
		_ = s.detector.Close()
	}
}
