package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shaderlab/internal/diagfmt"
	"shaderlab/internal/reload"
	"shaderlab/internal/shader"
	"shaderlab/internal/template"
	"shaderlab/internal/trace"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [file]",
	Short: "Recompile a shader document whenever it changes on disk",
	Long: `Run the hot-reload loop without an editor: every external change to the
document is extracted, written back in canonical form, compiled and linked.
Diagnostics are printed after each reload. Stops on Ctrl+C.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("once", false, "load and compile once, then exit (status 1 on failure)")
	watchCmd.Flags().String("mode", "", "override [watch].mode (poll|notify)")
	watchCmd.Flags().Duration("interval", 0, "override [watch].interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer dumpTraceOnPanic(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
		cfg.Watch.Mode = mode
	}
	if iv, _ := cmd.Flags().GetDuration("interval"); iv > 0 {
		cfg.Watch.Interval = iv.String()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return fmt.Errorf("failed to get once flag: %w", err)
	}
	quiet, _ := cmd.Flags().GetBool("quiet")
	timings, _ := cmd.Flags().GetBool("timings")

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

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "watch", trace.CurrentSpan(ctx))
	defer span.End(path)
	ctx = trace.WithSpan(ctx, span)

	opts, err := sess.options(ctx, shader.NewAdapter(backend))
	if err != nil {
		return err
	}
	editor := &reload.MemoryEditor{}
	opts.Editor = editor
	coord, err := reload.New(opts)
	if err != nil {
		return err
	}
	defer coord.Close()

	printer := &outcomePrinter{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		path:    path,
		sess:    sess,
		editor:  editor,
		quiet:   quiet,
		timings: timings,
	}

	out, err := coord.Start(ctx)
	if err != nil && !isIOFailure(out) {
		return err
	}
	printer.print(ctx, out)
	if once {
		if !out.OK() {
			return &exitError{code: 1}
		}
		return nil
	}
	if !quiet {
		fmt.Fprintf(printer.errOut, "watching %s (%s, every %s); Ctrl+C to stop\n", path, cfg.WatchMode(), cfg.WatchInterval())
	}

	return watchLoop(ctx, coord, cfg.WatchInterval(), printer.print)
}

// watchLoop ticks the coordinator until ctx is cancelled.
func watchLoop(ctx context.Context, coord *reload.Coordinator, interval time.Duration, report func(context.Context, reload.Outcome)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			out, ran, err := coord.Tick(ctx)
			if err != nil && !isIOFailure(out) {
				return err
			}
			if ran {
				report(ctx, out)
			}
		}
	}
}

func isIOFailure(out reload.Outcome) bool {
	return out.Failure == reload.FailIO
}

// outcomePrinter reports reload outcomes the way check reports documents.
type outcomePrinter struct {
	out, errOut io.Writer
	path        string
	sess        *session
	editor      *reload.MemoryEditor
	quiet       bool
	timings     bool
}

func (p *outcomePrinter) print(ctx context.Context, out reload.Outcome) {
	stamp := time.Now().Format("15:04:05")
	switch {
	case p.quiet:
	case out.Unsaved:
		fmt.Fprintf(p.errOut, "[%s] %s: no %s line, compiling the default fragment; file left unchanged\n", stamp, p.path, template.BeginSentinel)
	case out.Fallback:
		fmt.Fprintf(p.errOut, "[%s] %s: no user region, using the default fragment\n", stamp, p.path)
	}
	if out.OK() {
		if !p.quiet {
			fmt.Fprintf(p.out, "[%s] %s %s: program #%d\n", stamp, out.Trigger, color.GreenString("linked"), out.Generation)
		}
	} else {
		fmt.Fprintf(p.out, "[%s] %s %s\n", stamp, out.Trigger, color.RedString("%s failed", out.Failure))
		diagfmt.Pretty(p.out, p.input(out), p.sess.tpl.Dialect(), diagfmt.PrettyOpts{Color: useColor(), Context: 1})
		dumpRing(ctx, failureTail)
	}
	if p.timings {
		printReloadTiming(p.errOut, p.sess.timer)
	}
}

func (p *outcomePrinter) input(out reload.Outcome) diagfmt.Input {
	in := diagfmt.Input{
		Path:    p.path,
		Set:     out.Diagnostics,
		Dropped: out.Dropped,
		Status:  out.Failure.String(),
		Log:     out.Log,
		Err:     out.Err,
	}
	if out.Failure == reload.FailIO {
		return in
	}
	// The document on disk is the assembled text after every cycle.
	if p.sess.cfg.LineMode() == reload.LineModeRaw {
		in.Lines = strings.Split(string(p.sess.tpl.Assemble(p.editor.Text())), "\n")
	} else {
		in.Lines = strings.Split(string(p.editor.Text()), "\n")
		in.FileOffset = p.sess.tpl.PreludeLines()
	}
	return in
}
