package client

import (
	"context"

	"github.com/google/go-dap"
)

// AddBreakpoint adds a line breakpoint at path:line (optionally
// conditional) and resyncs every breakpoint for path with the adapter via
// a single setBreakpoints request — DAP has no incremental "add one"
// request, so every mutation to a source's breakpoints resends its full
// set (spec.md §4.7, C9). The new breakpoint is recorded locally before
// the resync; on a resync failure it is left in place rather than rolled
// back (spec.md §9, documented caveat).
func (s *Session) AddBreakpoint(ctx context.Context, path string, line int, condition string) (Breakpoint, error) {
	bp := s.state.addBreakpoint(path, line, condition)
	if err := s.syncSourceBreakpoints(ctx, path); err != nil {
		return bp, err
	}
	return bp, nil
}

// RemoveBreakpoint removes id, failing with BreakpointNotFound if it was
// never added (spec.md §4.5, scenario S3).
func (s *Session) RemoveBreakpoint(ctx context.Context, id BreakpointID) error {
	bp, existed := s.state.removeBreakpoint(id)
	if !existed {
		return &Error{Kind: BreakpointNotFound}
	}
	return s.syncSourceBreakpoints(ctx, bp.Path)
}

// syncSourceBreakpoints resends the complete current set of breakpoints
// for path, per DAP's declarative setBreakpoints semantics: exactly one
// setBreakpoints call per affected source per mutation (spec.md §8,
// testable property "breakpoint resync").
func (s *Session) syncSourceBreakpoints(ctx context.Context, path string) error {
	bps := s.state.breakpointsForSource(path)
	sourceBps := make([]dap.SourceBreakpoint, len(bps))
	for i, bp := range bps {
		sourceBps[i] = dap.SourceBreakpoint{Line: bp.Line, Condition: bp.Condition}
	}
	_, err := s.request(ctx, "setBreakpoints", map[string]any{
		"source":      dap.Source{Path: path},
		"breakpoints": sourceBps,
	})
	return err
}

// AddFunctionBreakpoint adds a breakpoint on entry to the named function
// and resyncs the full function breakpoint list.
func (s *Session) AddFunctionBreakpoint(ctx context.Context, name string) (Breakpoint, error) {
	bp := s.state.addFunctionBreakpoint(name)
	if err := s.syncFunctionBreakpoints(ctx); err != nil {
		return bp, err
	}
	return bp, nil
}

// RemoveFunctionBreakpoint removes id from the function breakpoint list.
func (s *Session) RemoveFunctionBreakpoint(ctx context.Context, id BreakpointID) error {
	_, existed := s.state.removeFunctionBreakpoint(id)
	if !existed {
		return nil
	}
	return s.syncFunctionBreakpoints(ctx)
}

func (s *Session) syncFunctionBreakpoints(ctx context.Context) error {
	names := s.state.functionBreakpointNames()
	fnBps := make([]dap.FunctionBreakpoint, len(names))
	for i, name := range names {
		fnBps[i] = dap.FunctionBreakpoint{Name: name}
	}
	_, err := s.request(ctx, "setFunctionBreakpoints", map[string]any{
		"breakpoints": fnBps,
	})
	return err
}

// Breakpoints returns every breakpoint this core currently tracks, line
// and function alike.
func (s *Session) Breakpoints() []Breakpoint {
	return s.state.allBreakpoints()
}

// setExceptionBreakpoints is issued once, best-effort, during the
// initialization sequence (spec.md §4.10, C10): adapters vary widely in
// which exception filters they support, so a failure here is logged and
// swallowed rather than surfaced to the caller.
func (s *Session) setExceptionBreakpoints(ctx context.Context, filters []string) {
	if filters == nil {
		filters = []string{}
	}
	if _, err := s.request(ctx, "setExceptionBreakpoints", map[string]any{"filters": filters}); err != nil {
		s.opts.Logger.Warn("setExceptionBreakpoints not honored by adapter", "error", err)
	}
}
