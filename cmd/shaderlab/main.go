package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"shaderlab/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "shaderlab",
	Short: "Live-coding workbench for fragment shaders",
	Long: `shaderlab keeps a shader document split into fixed boilerplate and a
user-editable region, recompiles it on every change and maps compiler
diagnostics back onto the lines you wrote.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prepareRun,
}

// cleanups are set by prepareRun and run after the command returns.
var (
	traceCleanup   = func() {}
	profileCleanup = func() {}
)

// exitError carries a process exit code without printing anything; the
// command already reported what went wrong.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	registerViewCommand(rootCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to shaderlab.toml (default: nearest one above the working directory)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.Bool("timings", false, "show timing information")
	flags.Int("max-diagnostics", 100, "maximum number of diagnostics to show per document (0 = unlimited)")
	flags.String("backend", "", "override [compiler].backend (glslang|naga|gl)")
	flags.String("dialect", "", "override [shader].dialect (glsl|wgsl)")
	flags.String("line-mode", "", "override [diagnostics].line_mode (fragment|raw)")
	flags.String("trace", "", "write trace events to a file (\"-\" for stderr)")
	flags.String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-format", "auto", "trace format (auto|text|ndjson)")
	flags.String("trace-mode", "stream", "trace storage (stream|ring|both)")
	flags.Int("trace-ring-size", 4096, "events kept in memory for --trace-mode ring|both")
	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to file")
}

func main() {
	err := rootCmd.Execute()
	profileCleanup()
	traceCleanup()
	if err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		os.Exit(1)
	}
}

// prepareRun applies --color, installs the tracer and starts profiling
// before any command runs.
func prepareRun(cmd *cobra.Command, _ []string) error {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	switch strings.ToLower(mode) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	case "auto":
		color.NoColor = !isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}

	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	traceCleanup = cleanup

	stopProfiles, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	profileCleanup = stopProfiles
	return nil
}

// useColor reports whether output should be colorized after prepareRun.
func useColor() bool { return !color.NoColor }

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of stdout, 0 when it is not a terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}
