// Package trace provides structured event tracing for shaderlab.
//
// Tracing records reload cycles, compile/link stages and the diagnostics they
// produce, to diagnose slow drivers and reloads that never settle.
//
// # Usage
//
// Enable tracing via command-line flags:
//
//	shaderlab watch --trace=- --trace-level=detail shader.glsl
//
// # Architecture
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr), text or NDJSON
//   - RingTracer: last N events in memory, dumped when a watch reload fails
//   - Tee: stream and ring at once (--trace-mode both)
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: only failures (Error events)
//   - LevelPhase: commands and reload cycles
//   - LevelDetail: compile and link calls
//   - LevelDebug: everything, including one event per parsed diagnostic
//
// # Context Propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.FromContext(ctx)
//
//	span := trace.Begin(t, trace.ScopeReload, "reload", trace.CurrentSpan(ctx))
//	defer span.End("")
package trace
