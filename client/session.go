// Package client implements a Debug Adapter Protocol session: connection
// setup, request/response correlation, breakpoint management, and a
// semantic event stream built on top of the wire and transport packages.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/simonrw/dap-gui-sub000/transport"
	"github.com/simonrw/dap-gui-sub000/wire"
)

// ReverseRequestHandler answers a request the adapter sent to us, such as
// runInTerminal. The default handler (used when SessionOptions leaves this
// nil) logs the request at debug level and drops it, per spec.md §4.9.
type ReverseRequestHandler func(ctx context.Context, req *wire.ReverseRequest)

// SessionOptions configures a Session. The zero value is usable: it
// selects slog.Default(), a 30s request timeout, a 10s initialize timeout,
// the codec's default max message size, and the drop-and-log reverse
// request handler.
type SessionOptions struct {
	Logger                *slog.Logger
	RequestTimeout        time.Duration
	InitializeTimeout     time.Duration
	MaxMessageSize        int
	ReverseRequestHandler ReverseRequestHandler
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.InitializeTimeout <= 0 {
		o.InitializeTimeout = 10 * time.Second
	}
	if o.ReverseRequestHandler == nil {
		o.ReverseRequestHandler = defaultReverseRequestHandler
	}
	return o
}

func defaultReverseRequestHandler(ctx context.Context, req *wire.ReverseRequest) {
	slog.Default().Debug("dropping reverse request", "command", req.Command, "seq", req.Seq)
}

// Session is a live connection to a debug adapter. Create one with Connect
// (TCP) or NewSession (any transport.Transport, including an in-memory
// Pair in tests), drive the handshake with Launch or Attach, then use the
// rest of the API to control execution and read state.
type Session struct {
	opts SessionOptions

	t  transport.Transport
	wr transport.WriteHalf

	writeMu sync.Mutex // serializes Encode+Write so frames never interleave
	seq     atomic.Int64

	pending *pendingTable
	state   *state
	bus     *eventBus

	eg     *errgroup.Group
	egCtx  context.Context
	cancel context.CancelFunc

	shutdownOnce sync.Once
	done         chan struct{}

	initializedOnce sync.Once
	initializedCh   chan struct{}

	launchDone    chan error
	launchErrKind ErrorKind
}

// Connect dials addr over TCP (with spec.md §4.1's retry/backoff) and
// wires a Session on top of it.
func Connect(ctx context.Context, addr string, opts SessionOptions) (*Session, error) {
	t, err := transport.Connect(ctx, addr)
	if err != nil {
		return nil, &Error{Kind: ConnectFailed, Message: addr, Err: err}
	}
	return NewSession(t, opts), nil
}

// NewSession wires a Session on top of an already-established transport
// (a TCP connection from Connect, or an in-memory Pair in tests) and
// starts its reader task.
func NewSession(t transport.Transport, opts SessionOptions) *Session {
	opts = opts.withDefaults()
	rd, wr := t.Split()

	egCtx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(egCtx)

	s := &Session{
		opts:          opts,
		t:             t,
		wr:            wr,
		pending:       newPendingTable(),
		state:         newState(),
		bus:           newEventBus(),
		eg:            eg,
		egCtx:         egCtx,
		cancel:        cancel,
		done:          make(chan struct{}),
		initializedCh: make(chan struct{}),
	}

	eg.Go(func() error {
		return s.readLoop(egCtx, rd)
	})

	return s
}

// Events returns a handle for receiving this session's semantic event
// stream. Events are buffered from NewSession onward, so a handle obtained
// after Launch/Attach still receives the Initialised transition.
func (s *Session) Events() *Events {
	return s.bus.subscribe()
}

// nextSeq allocates the next outgoing request sequence number. Sequence
// numbers are strictly increasing for the life of the session (spec.md
// §8, "seq monotonicity").
func (s *Session) nextSeq() int64 {
	return s.seq.Add(1)
}

// request sends command with the given arguments and blocks for its
// response, subject to ctx and the configured RequestTimeout. The waiter
// is registered before the bytes hit the wire, so a fast adapter can never
// race a response past an unregistered seq (spec.md §8).
func (s *Session) request(ctx context.Context, command string, args any) (wire.Response, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return wire.Response{}, &Error{Kind: RequestFailed, Command: command, Err: err}
		}
		raw = b
	}

	seq := s.nextSeq()
	waiter := s.pending.register(seq)

	frame, err := wire.Encode(wire.NewRequest(seq, command, raw))
	if err != nil {
		s.pending.forget(seq)
		return wire.Response{}, &Error{Kind: RequestFailed, Command: command, Err: err}
	}

	s.writeMu.Lock()
	_, werr := s.wr.Write(frame)
	s.writeMu.Unlock()
	if werr != nil {
		s.pending.forget(seq)
		return wire.Response{}, &Error{Kind: TransportErr, Command: command, Err: werr}
	}

	timeout := s.opts.RequestTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-waiter:
		if !ok {
			return wire.Response{}, &Error{Kind: SessionClosed, Command: command}
		}
		if !resp.Success {
			return wire.Response{}, requestFailed(command, resp.Message)
		}
		return resp, nil
	case <-timer.C:
		s.pending.forget(seq)
		return wire.Response{}, &Error{Kind: RequestTimeout, Command: command}
	case <-ctx.Done():
		s.pending.forget(seq)
		return wire.Response{}, &Error{Kind: RequestTimeout, Command: command, Err: ctx.Err()}
	case <-s.done:
		return wire.Response{}, &Error{Kind: SessionClosed, Command: command}
	}
}

// teardown releases the session's resources: it is called both from
// Shutdown and from the reader loop itself when the connection dies on
// its own. It never waits on s.eg, since the reader loop — one of eg's
// own goroutines — calls it from inside its own run, and waiting here
// would deadlock it against its own completion.
func (s *Session) teardown() error {
	var closeErr error
	s.shutdownOnce.Do(func() {
		close(s.done)
		s.cancel()
		closeErr = s.t.Close()
		s.pending.closeAll()
		s.bus.close()
	})
	return closeErr
}

// Shutdown tears the session down: it stops the reader task, closes the
// transport, fails any outstanding request, and closes the event stream.
// It is safe to call more than once, and from a goroutine other than the
// one driving the reader loop.
func (s *Session) Shutdown(ctx context.Context) error {
	closeErr := s.teardown()
	_ = s.eg.Wait()
	return closeErr
}

// Continue resumes threadID. Running is emitted once the adapter confirms
// the resume via its own "continued" event (reader.go), not synchronously
// here.
func (s *Session) Continue(ctx context.Context, threadID ThreadID) error {
	_, err := s.request(ctx, "continue", map[string]any{"threadId": threadID})
	if err != nil {
		return err
	}
	s.state.clearOnRunning()
	return nil
}

// StepOver steps threadID over the current line ("next" in DAP terms).
func (s *Session) StepOver(ctx context.Context, threadID ThreadID) error {
	return s.step(ctx, "next", threadID)
}

// StepIn steps threadID into a call.
func (s *Session) StepIn(ctx context.Context, threadID ThreadID) error {
	return s.step(ctx, "stepIn", threadID)
}

// StepOut steps threadID out of the current function.
func (s *Session) StepOut(ctx context.Context, threadID ThreadID) error {
	return s.step(ctx, "stepOut", threadID)
}

// step briefly resumes the debuggee like Continue; Running is emitted from
// the adapter's "continued" event, not here.
func (s *Session) step(ctx context.Context, command string, threadID ThreadID) error {
	_, err := s.request(ctx, command, map[string]any{"threadId": threadID})
	if err != nil {
		return err
	}
	s.state.clearOnRunning()
	return nil
}

// Evaluate runs expr in the context of frameID (a stack frame id from the
// most recent Paused/ScopeChange snapshot). A failed evaluation is
// reported through EvaluateResult.Error, not a returned error (spec.md
// §4.5).
func (s *Session) Evaluate(ctx context.Context, expr string, frameID int) (EvaluateResult, error) {
	resp, err := s.request(ctx, "evaluate", map[string]any{
		"expression": expr,
		"frameId":    frameID,
		"context":    "repl",
	})
	if err != nil {
		var clientErr *Error
		if xerrors.As(err, &clientErr) && clientErr.Kind == RequestFailed {
			return EvaluateResult{Output: sanitizeText(clientErr.Message), Error: true}, nil
		}
		return EvaluateResult{}, err
	}
	var body struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return EvaluateResult{}, &Error{Kind: EvaluateErr, Err: err}
	}
	return EvaluateResult{Output: sanitizeText(body.Result)}, nil
}

// Variables fetches the variables under variablesReference (a Scope's or
// a compound Variable's VariablesReference), using the per-pause cache so
// repeated expansion of the same node does not re-request the adapter.
func (s *Session) Variables(ctx context.Context, variablesReference int) ([]Variable, error) {
	if cached, ok := s.state.cachedVariables(variablesReference); ok {
		return cached, nil
	}
	vars, err := s.fetchVariables(ctx, variablesReference)
	if err != nil {
		return nil, err
	}
	s.state.cacheVariables(variablesReference, vars)
	return vars, nil
}

func (s *Session) fetchVariables(ctx context.Context, variablesReference int) ([]Variable, error) {
	resp, err := s.request(ctx, "variables", map[string]any{"variablesReference": variablesReference})
	if err != nil {
		return nil, err
	}
	var body struct {
		Variables []Variable `json:"variables"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &Error{Kind: RequestFailed, Command: "variables", Err: err}
	}
	for i := range body.Variables {
		body.Variables[i].Value = sanitizeText(body.Variables[i].Value)
	}
	return body.Variables, nil
}

func (s *Session) fetchScopes(ctx context.Context, frameID int) ([]Scope, error) {
	resp, err := s.request(ctx, "scopes", map[string]any{"frameId": frameID})
	if err != nil {
		return nil, err
	}
	var body struct {
		Scopes []Scope `json:"scopes"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &Error{Kind: RequestFailed, Command: "scopes", Err: err}
	}
	return body.Scopes, nil
}

func (s *Session) fetchStackTrace(ctx context.Context, threadID ThreadID) ([]StackFrame, error) {
	resp, err := s.request(ctx, "stackTrace", map[string]any{"threadId": threadID})
	if err != nil {
		return nil, err
	}
	var body struct {
		StackFrames []StackFrame `json:"stackFrames"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &Error{Kind: RequestFailed, Command: "stackTrace", Err: err}
	}
	return body.StackFrames, nil
}

// ChangeScope re-focuses the current pause on a different frame in the
// stack (a supplemental feature beyond strict line-stepping, grounded in
// the original implementation's frame-local evaluation): it re-fetches
// scopes and variables for frameID and emits ScopeChange rather than
// Paused, since execution has not actually moved.
func (s *Session) ChangeScope(ctx context.Context, frameID int) error {
	threadID, ok := s.state.getCurrentThread()
	if !ok {
		return &Error{Kind: NoCurrentThread}
	}
	stack, err := s.fetchStackTrace(ctx, threadID)
	if err != nil {
		return err
	}
	var frame StackFrame
	found := false
	for _, f := range stack {
		if f.Id == frameID {
			frame = f
			found = true
			break
		}
	}
	if !found {
		return &Error{Kind: FrameNotFound, Message: fmt.Sprintf("frame %d", frameID)}
	}
	pf, err := s.buildPausedFrame(ctx, frame)
	if err != nil {
		return err
	}
	ps := &ProgramState{
		Stack:       stack,
		Breakpoints: s.state.allBreakpoints(),
		PausedFrame: pf,
	}
	s.bus.emit(ScopeChange, ps)
	return nil
}

// buildPausedFrame fetches scopes for frame and the variables of the
// first non-expensive scope only (spec.md §4.8 step 5).
func (s *Session) buildPausedFrame(ctx context.Context, frame StackFrame) (PausedFrame, error) {
	scopes, err := s.fetchScopes(ctx, frame.Id)
	if err != nil {
		return PausedFrame{}, err
	}
	var vars []Variable
	for _, sc := range scopes {
		if sc.Expensive {
			continue
		}
		vars, err = s.fetchVariables(ctx, sc.VariablesReference)
		if err != nil {
			return PausedFrame{}, err
		}
		s.state.cacheVariables(sc.VariablesReference, vars)
		break
	}
	return PausedFrame{Frame: frame, Variables: vars}, nil
}
