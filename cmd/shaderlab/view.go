//go:build gl

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spf13/cobra"

	"shaderlab/internal/reload"
	"shaderlab/internal/render"
	"shaderlab/internal/shader"
	"shaderlab/internal/shader/glbackend"
	"shaderlab/internal/trace"
)

func init() {
	// GLFW and GL calls must stay on the main thread.
	runtime.LockOSThread()
}

var viewCmd = &cobra.Command{
	Use:   "view [flags] [file]",
	Short: "Render a shader document in a window and reload it on change",
	Long: `Open a window rendering the shader document with live uniforms. The
document is recompiled whenever it changes on disk; a broken edit keeps the
last good program on screen. Space toggles play/pause, R restarts the timer,
Esc closes the window.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func registerViewCommand(root *cobra.Command) {
	viewCmd.Flags().Int("width", 800, "initial window width")
	viewCmd.Flags().Int("height", 600, "initial window height")
	root.AddCommand(viewCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer dumpTraceOnPanic(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	width, _ := cmd.Flags().GetInt("width")
	height, _ := cmd.Flags().GetInt("height")
	quiet, _ := cmd.Flags().GetBool("quiet")
	timings, _ := cmd.Flags().GetBool("timings")

	path := shaderPath(cfg, args)
	sess, err := newSession(cfg, path)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	window, err := glfw.CreateWindow(width, height, "shaderlab: "+filepath.Base(path), nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	backend, err := glbackend.New()
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "OpenGL %s\n", backend.Version())
	}
	geometry, err := render.NewGeometry(backend)
	if err != nil {
		return err
	}
	defer geometry.Close()

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "view", trace.CurrentSpan(ctx))
	defer span.End(path)
	ctx = trace.WithSpan(ctx, span)

	frame := &render.FrameContext{}
	fbw, fbh := window.GetFramebufferSize()
	frame.Resize(fbw, fbh)

	ro, err := sess.options(ctx, shader.NewAdapter(backend))
	if err != nil {
		return err
	}
	editor := &reload.MemoryEditor{}
	ro.Editor = editor
	ro.Playback = &frame.Playback
	coord, err := reload.New(ro)
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

	bindWindow(window, frame, geometry)
	return renderLoop(ctx, window, coord, backend, geometry, frame, printer)
}

// bindWindow routes GLFW input into the frame context.
func bindWindow(window *glfw.Window, frame *render.FrameContext, geometry *render.Geometry) {
	window.SetFramebufferSizeCallback(func(_ *glfw.Window, w, h int) {
		frame.Resize(w, h)
		if err := geometry.Rebuild(); err != nil {
			fmt.Fprintf(os.Stderr, "resize: %v\n", err)
		}
	})
	window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		frame.Mouse.X, frame.Mouse.Y = x, y
	})
	window.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if button == glfw.MouseButtonLeft {
			frame.Mouse.Pressed = action != glfw.Release
		}
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			frame.Playback.Toggle()
		case glfw.KeyR:
			frame.Playback.Reset()
		}
	})
}

func renderLoop(ctx context.Context, window *glfw.Window, coord *reload.Coordinator, backend *glbackend.Backend, geometry *render.Geometry, frame *render.FrameContext, printer *outcomePrinter) error {
	for !window.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		out, ran, err := coord.Tick(ctx)
		if err != nil && !isIOFailure(out) {
			return err
		}
		if ran {
			printer.print(ctx, out)
		}

		frame.Begin(time.Now())
		backend.Clear(frame.Width, frame.Height)
		if active := coord.Active(); active != nil {
			backend.Use(active.Program)
			render.ApplyUniforms(backend, active, frame)
			backend.Draw(geometry.ID())
		}
		window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}
