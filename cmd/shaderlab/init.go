package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"shaderlab/internal/config"
	"shaderlab/internal/source"
	"shaderlab/internal/template"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create shaderlab.toml and a starter shader document",
	Long: `Create a shaderlab.toml and a starter shader document in dir (the current
directory when omitted). --dialect wgsl selects the WGSL template and the
naga backend. An existing shaderlab.toml is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if st, err := os.Stat(target); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", target, err)
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	dialectFlag, err := cmd.Flags().GetString("dialect")
	if err != nil {
		return fmt.Errorf("failed to get dialect flag: %w", err)
	}
	dialect, err := template.ParseDialect(dialectFlag)
	if err != nil {
		return err
	}
	tpl, err := template.For(dialect)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Shader.Dialect = string(dialect)
	cfg.Shader.Path = "shader." + string(dialect)
	if dialect == template.DialectWGSL {
		cfg.Compiler.Backend = config.BackendNaga
	}
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Compiler.Backend = backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	configPath := filepath.Join(target, config.FileName)
	if err := config.Write(configPath, cfg); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("already initialized: %s exists", configPath)
		}
		return err
	}
	created := []string{configPath}

	shaderFile := filepath.Join(target, cfg.Shader.Path)
	if _, err := os.Stat(shaderFile); errors.Is(err, os.ErrNotExist) {
		if err := source.WriteFile(shaderFile, []byte(tpl.Assemble(tpl.DefaultFragment()))); err != nil {
			return err
		}
		created = append(created, shaderFile)
	}

	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		out := cmd.OutOrStdout()
		for _, f := range created {
			fmt.Fprintf(out, "created %s\n", f)
		}
		fmt.Fprintf(out, "next: shaderlab edit %s\n", cfg.Shader.Path)
	}
	return nil
}
