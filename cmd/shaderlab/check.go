package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shaderlab/internal/cache"
	"shaderlab/internal/checkpipeline"
	"shaderlab/internal/config"
	"shaderlab/internal/diagfmt"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [file|directory]",
	Short: "Compile and link shader documents once and report diagnostics",
	Long: `Extract the user region of every shader document, assemble it with the
boilerplate, compile and link it, and print the diagnostics mapped back onto
the user region. Exits with status 1 when any document fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	checkCmd.Flags().Int("jobs", 0, "max parallel documents (0=auto)")
	checkCmd.Flags().Bool("disk-cache", false, "reuse results of unchanged documents from the user cache directory")
	checkCmd.Flags().Bool("clear-cache", false, "drop cached results before checking")
	checkCmd.Flags().String("ui", "auto", "show progress view (auto|on|off)")
	checkCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	checkCmd.Flags().Int("context", 1, "source lines shown around each diagnostic (pretty format)")
	checkCmd.Flags().Bool("with-log", false, "include the raw compiler log (json format)")
}

type checkOptions struct {
	format     string
	jobs       int
	diskCache  bool
	clearCache bool
	ui         uiMode
	pathMode   diagfmt.PathMode
	context    int
	withLog    bool
	quiet      bool
	timings    bool
}

func readCheckOptions(cmd *cobra.Command) (checkOptions, error) {
	var opts checkOptions
	var err error
	flags := cmd.Flags()

	if opts.format, err = flags.GetString("format"); err != nil {
		return opts, fmt.Errorf("failed to get format flag: %w", err)
	}
	opts.format = strings.ToLower(opts.format)
	switch opts.format {
	case "pretty", "json", "short":
	default:
		return opts, fmt.Errorf("unknown format: %s", opts.format)
	}
	if opts.jobs, err = flags.GetInt("jobs"); err != nil {
		return opts, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if opts.diskCache, err = flags.GetBool("disk-cache"); err != nil {
		return opts, fmt.Errorf("failed to get disk-cache flag: %w", err)
	}
	if opts.clearCache, err = flags.GetBool("clear-cache"); err != nil {
		return opts, fmt.Errorf("failed to get clear-cache flag: %w", err)
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return opts, fmt.Errorf("failed to get ui flag: %w", err)
	}
	if opts.ui, err = readUIMode(uiValue); err != nil {
		return opts, err
	}
	fullPath, err := flags.GetBool("fullpath")
	if err != nil {
		return opts, fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	if fullPath {
		opts.pathMode = diagfmt.PathModeAbsolute
	}
	if opts.context, err = flags.GetInt("context"); err != nil {
		return opts, fmt.Errorf("failed to get context flag: %w", err)
	}
	if opts.withLog, err = flags.GetBool("with-log"); err != nil {
		return opts, fmt.Errorf("failed to get with-log flag: %w", err)
	}
	if opts.quiet, err = flags.GetBool("quiet"); err != nil {
		return opts, fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if opts.timings, err = flags.GetBool("timings"); err != nil {
		return opts, fmt.Errorf("failed to get timings flag: %w", err)
	}
	return opts, nil
}

// runCheck executes the "check" command. Per-document failures are printed
// and turn into exit status 1; the returned error is reserved for problems
// with flags, configuration or the file system.
func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	defer dumpTraceOnPanic(ctx)

	opts, err := readCheckOptions(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	target := shaderPath(cfg, args)
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "check", trace.CurrentSpan(ctx))
	defer span.End(target)
	ctx = trace.WithSpan(ctx, span)

	dialect := cfg.Dialect()
	files, err := checkpipeline.ListShaderFiles(target, dialect)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s shader documents found in %s", dialect, target)
	}

	req, err := buildCheckRequest(cfg, target, files, opts)
	if err != nil {
		return err
	}

	var report checkpipeline.Report
	if opts.format == "pretty" && shouldUseTUI(opts.ui, len(files)) {
		display := make([]string, len(files))
		for i, f := range files {
			display[i] = checkpipeline.DisplayPath(f, req.BaseDir)
		}
		report, err = runCheckWithUI(ctx, "checking "+target, display, req)
	} else {
		report, err = checkpipeline.Run(ctx, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := renderReport(out, report, dialect, opts); err != nil {
		return err
	}
	if opts.timings {
		printStageTimings(cmd.ErrOrStderr(), report.Timings)
	}
	if report.Failed() > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func buildCheckRequest(cfg config.Config, target string, files []string, opts checkOptions) (*checkpipeline.Request, error) {
	tpl, err := template.For(cfg.Dialect())
	if err != nil {
		return nil, err
	}
	factory, err := backendFactory(cfg)
	if err != nil {
		return nil, err
	}
	def, err := cfg.DefaultFragment()
	if err != nil {
		return nil, err
	}

	baseDir := target
	if st, err := os.Stat(target); err == nil && !st.IsDir() {
		baseDir = filepath.Dir(target)
	}

	var dc *cache.DiskCache
	if opts.diskCache || opts.clearCache {
		dc, err = cache.Open("shaderlab")
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		if opts.clearCache {
			if err := dc.DropAll(); err != nil {
				return nil, fmt.Errorf("clear cache: %w", err)
			}
		}
		if !opts.diskCache {
			dc = nil
		}
	}

	return &checkpipeline.Request{
		Files:           files,
		BaseDir:         baseDir,
		Template:        tpl,
		DefaultFragment: def,
		NewBackend:      factory,
		BackendName:     cfg.Compiler.Backend,
		LineMode:        cfg.LineMode(),
		MaxDiagnostics:  cfg.Diagnostics.Max,
		Jobs:            opts.jobs,
		Cache:           dc,
	}, nil
}

func reportInputs(report checkpipeline.Report) []diagfmt.Input {
	inputs := make([]diagfmt.Input, 0, len(report.Results))
	for _, res := range report.Results {
		inputs = append(inputs, diagfmt.Input{
			Path:       res.DisplayPath,
			Lines:      res.Lines,
			FileOffset: res.FileOffset,
			Set:        res.Diagnostics,
			Dropped:    res.Dropped,
			Status:     res.Status(),
			Log:        res.Log,
			Err:        res.Err,
		})
	}
	return inputs
}

func renderReport(out io.Writer, report checkpipeline.Report, dialect template.Dialect, opts checkOptions) error {
	inputs := reportInputs(report)
	switch opts.format {
	case "json":
		return diagfmt.JSON(out, inputs, diagfmt.JSONOpts{PathMode: opts.pathMode, IncludeLog: opts.withLog})
	case "short":
		width := terminalWidth()
		for _, in := range inputs {
			diagfmt.Short(out, in, opts.pathMode, width)
		}
		return nil
	}

	pretty := diagfmt.PrettyOpts{Color: useColor(), Context: opts.context, PathMode: opts.pathMode}
	for i, in := range inputs {
		if report.Results[i].Fallback && !opts.quiet {
			fmt.Fprintf(out, "%s: no user region, checked the default fragment\n", in.Path)
		}
		if in.Set.Len() == 0 && in.Err == nil {
			continue
		}
		diagfmt.Pretty(out, in, dialect, pretty)
	}
	if !opts.quiet {
		diagfmt.Summary(out, inputs, pretty.Color)
	}
	return nil
}
