// Package diag turns raw shader compiler logs into line-addressed diagnostics.
//
// # Log shapes
//
// Drivers print diagnostics in one of two layouts, and Parse recognises both:
//
//   - paren shape: "0(12) : error C1008: undefined variable" (NVIDIA and friends).
//     The text before '(' is a single token, the number inside the parens is the line.
//   - colon shape: "ERROR: 0:7: 'foo' : syntax error" (glslang, Mesa, AMD).
//     An optional severity label is skipped, the line is the second colon field.
//
// The paren shape is tried first. Lines that match neither are dropped; compiler
// logs carry plenty of summary noise ("1 compilation errors.") that has no line.
//
// # Data model
//
// Set is keyed by line number. Each line shows one message, so when a log has
// several entries for the same line the last one parsed wins. Entry.Message keeps
// the complete log line so nothing the compiler said is lost.
//
// Line numbers are kept exactly as the compiler emitted them. Mapping them onto the
// user fragment is a separate step (Set.Rebase), done by the reload coordinator.
//
// # Consumers
//
// Publisher is the sink the reload coordinator pushes results into:
//   - internal/editor annotates the buffer and draws the diagnostics panel.
//   - internal/diagfmt renders sets for the check and watch commands.
package diag
