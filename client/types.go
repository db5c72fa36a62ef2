package client

import (
	"github.com/google/go-dap"
)

// ThreadID identifies a thread in the debuggee, as allocated by the
// adapter.
type ThreadID = int

// BreakpointID identifies a breakpoint within this session. It is assigned
// by the core itself (monotone, starting at 0) and is independent of
// whatever id the adapter echoes back in its setBreakpoints reply —
// decoupling the identity a UI uses to remove a breakpoint from the
// adapter's own bookkeeping (spec.md §9).
type BreakpointID = uint64

// Breakpoint is a breakpoint as tracked by this core, per spec.md §3: a
// line breakpoint (Path, Line, optional Condition) or, when Name is set, a
// function breakpoint.
type Breakpoint struct {
	ID        BreakpointID
	Path      string
	Line      int
	Condition string
	Name      string
}

// StackFrame mirrors the adapter's stackTrace reply. Its Id is only
// meaningful while the program remains paused on the thread it came from;
// readers must not retain it across a Running/Ended transition (spec.md
// §3 "Lifecycles").
type StackFrame = dap.StackFrame

// Scope mirrors one entry of a scopes reply.
type Scope = dap.Scope

// Variable mirrors one entry of a variables reply.
type Variable = dap.Variable

// PausedFrame is the frame the debugger is currently stopped on, together
// with its (already-fetched) locals.
type PausedFrame struct {
	Frame     StackFrame
	Variables []Variable
}

// ProgramState is the coherent snapshot emitted alongside Paused and
// ScopeChange: stack, paused frame and breakpoint table all describe the
// same moment (spec.md §3, testable property 5).
type ProgramState struct {
	Stack       []StackFrame
	Breakpoints []Breakpoint
	PausedFrame PausedFrame
}

// EvaluateResult is the outcome of a REPL evaluation. A failed evaluation
// is not an error: Error is set and Output carries the adapter's message
// (spec.md §4.5, §7).
type EvaluateResult struct {
	Output string
	Error  bool
}
