package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"shaderlab/internal/editor"
	"shaderlab/internal/highlight"
	"shaderlab/internal/shader"
	"shaderlab/internal/trace"
)

var editCmd = &cobra.Command{
	Use:   "edit [flags] [file]",
	Short: "Edit the user region of a shader document with live diagnostics",
	Long: `Open the user region of a shader document in a terminal editor.
Ctrl+S saves, Ctrl+R saves and compiles, Ctrl+P toggles play/pause, Ctrl+T
restarts the timer, Esc or Ctrl+C exits. Changes made by other programs are
picked up automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().String("style", highlight.DefaultStyle, "chroma style for the diagnostics panel")
	editCmd.Flags().Int("panel-lines", 6, "height of the diagnostics panel")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	defer dumpTraceOnPanic(ctx)

	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return fmt.Errorf("edit needs a terminal; use `shaderlab watch` for headless reloads")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	style, err := cmd.Flags().GetString("style")
	if err != nil {
		return fmt.Errorf("failed to get style flag: %w", err)
	}
	panelLines, err := cmd.Flags().GetInt("panel-lines")
	if err != nil {
		return fmt.Errorf("failed to get panel-lines flag: %w", err)
	}

	path := shaderPath(cfg, args)
	sess, err := newSession(cfg, path)
	if err != nil {
		return err
	}
	defer sess.Close()

	factory, err := backendFactory(cfg)
	if err != nil {
		return err
	}
	backend, err := factory(ctx)
	if err != nil {
		return err
	}

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "edit", trace.CurrentSpan(ctx))
	defer span.End(path)
	ctx = trace.WithSpan(ctx, span)

	ro, err := sess.options(ctx, shader.NewAdapter(backend))
	if err != nil {
		return err
	}
	var colorer highlight.LineColorer = highlight.Plain{}
	if useColor() {
		colorer = highlight.New(cfg.Dialect(), style)
	}
	model, err := editor.New(ctx, ro, editor.Options{
		Title:        filepath.Base(path),
		PollInterval: cfg.WatchInterval(),
		PanelLines:   panelLines,
		Highlight:    colorer,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = program.Run()
	return err
}
