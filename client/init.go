package client

import (
	"context"
	"time"
)

// capabilities sent on initialize. These describe this client, not the
// adapter; the adapter's own capabilities come back in the response body
// and are deliberately not enforced anywhere in this package (spec.md
// §9, Open Question: accept and ignore rather than negotiate).
func initializeArgs() map[string]any {
	return map[string]any{
		"clientID":                     "dap-gui-sub000",
		"adapterID":                    "generic",
		"linesStartAt1":                true,
		"columnsStartAt1":              true,
		"pathFormat":                   "path",
		"supportsVariableType":         true,
		"supportsRunInTerminalRequest": false,
	}
}

// Launch starts a new debuggee via the adapter's launch request.
func (s *Session) Launch(ctx context.Context, args any) error {
	return s.initSequence(ctx, "launch", args, LaunchFailed)
}

// Attach connects the adapter to an already-running debuggee via the
// adapter's attach request.
func (s *Session) Attach(ctx context.Context, args any) error {
	return s.initSequence(ctx, "attach", args, AttachFailed)
}

// initSequence runs the handshake of spec.md §4.10 (C10): initialize,
// then launch/attach (sent but not yet awaited, since a compliant adapter
// only answers it after configurationDone), then a wait for the
// "initialized" event, then a best-effort setExceptionBreakpoints. The
// launch/attach response itself is collected later, by Start.
func (s *Session) initSequence(ctx context.Context, command string, args any, failKind ErrorKind) error {
	if _, err := s.request(ctx, "initialize", initializeArgs()); err != nil {
		return &Error{Kind: InitializeFailed, Err: err}
	}

	// The waiter must be armed (initializedCh already allocated in
	// NewSession, before initialize was ever sent) so the event cannot
	// arrive and be missed between the initialize response and this point.
	done := make(chan error, 1)
	s.launchDone = done
	s.launchErrKind = failKind
	s.eg.Go(func() error {
		_, err := s.request(ctx, command, args)
		done <- err
		return nil
	})

	select {
	case <-s.initializedCh:
	case <-time.After(s.opts.InitializeTimeout):
		return &Error{Kind: InitializeTimeout}
	case <-ctx.Done():
		return &Error{Kind: InitializeTimeout, Err: ctx.Err()}
	case <-s.done:
		return &Error{Kind: SessionClosed}
	}

	s.setExceptionBreakpoints(ctx, nil)
	return nil
}

// Start finishes the handshake by sending configurationDone, then waits
// for the launch/attach response that initSequence kicked off. Initialised
// was already emitted off the adapter's own "initialized" event
// (reader.go); Running follows later, off "continued" (spec.md §3).
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.request(ctx, "configurationDone", nil); err != nil {
		return err
	}

	select {
	case err := <-s.launchDone:
		if err != nil {
			return &Error{Kind: s.launchErrKind, Err: err}
		}
	case <-ctx.Done():
		return &Error{Kind: s.launchErrKind, Err: ctx.Err()}
	case <-s.done:
		return &Error{Kind: SessionClosed}
	}

	return nil
}
