package client

import "context"

// handleStopped implements the stopped-event pipeline (spec.md §4.8,
// C8). It always runs on a goroutine detached from the reader loop
// (spawned in reader.go's handleEvent): it sets the current thread, then
// issues stackTrace, then scopes, then variables for the frame at the top
// of the stack, and only once it has a fully self-consistent snapshot does
// it emit Paused. If the reader loop ran this inline instead, the
// request/response round trips below would never complete, since nothing
// would be left to read their responses off the wire.
func (s *Session) handleStopped(ctx context.Context, threadID ThreadID) {
	s.state.setCurrentThread(threadID)

	stack, err := s.fetchStackTrace(ctx, threadID)
	if err != nil {
		s.opts.Logger.Error("stackTrace failed after stopped event", "thread_id", threadID, "error", err)
		return
	}
	if len(stack) == 0 {
		s.opts.Logger.Warn("stopped event with empty stack trace", "thread_id", threadID)
		return
	}

	pf, err := s.buildPausedFrame(ctx, stack[0])
	if err != nil {
		s.opts.Logger.Error("building paused frame failed", "thread_id", threadID, "error", err)
		return
	}

	if pf.Frame.Source != nil {
		s.state.setSource(pf.Frame.Source.Path)
	}

	// pf.Frame is stack[0] by construction, keeping Paused.PausedFrame.Frame
	// and Paused.Stack[0] in lockstep.
	ps := &ProgramState{
		Stack:       stack,
		Breakpoints: s.state.allBreakpoints(),
		PausedFrame: pf,
	}

	s.bus.emit(Paused, ps)
}
