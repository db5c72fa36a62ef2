package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/simonrw/dap-gui-sub000/transport"
	"github.com/simonrw/dap-gui-sub000/wire"
)

// readLoop is the session's single reader task (spec.md §4.3, C3/C4): it
// owns the transport's read half and the wire.Decoder exclusively, and is
// the only goroutine that ever calls Decode. It never itself blocks on a
// request it causes to be sent — that work is always handed off to a
// detached goroutine (see stopped.go) so that goroutine's eventual
// response can still be routed back through this same loop.
func (s *Session) readLoop(ctx context.Context, rd transport.ReadHalf) error {
	dec := wire.NewDecoder(s.opts.MaxMessageSize)
	buf := make([]byte, 32*1024)

	for {
		for {
			msg, ok, err := dec.Decode()
			if err != nil {
				s.opts.Logger.Error("codec error, closing session", "error", err)
				_ = s.teardown()
				return err
			}
			if !ok {
				break
			}
			s.dispatch(ctx, msg)
		}

		select {
		case <-s.done:
			return nil
		default:
		}

		n, err := rd.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, io.EOF) {
				s.opts.Logger.Debug("transport closed, ending reader")
				_ = s.teardown()
				return nil
			}
			s.opts.Logger.Error("transport read error, closing session", "error", err)
			_ = s.teardown()
			return err
		}
	}
}

// dispatch classifies one decoded message and routes it: responses go to
// the pending table, events are handled (and, for "stopped", spawned off
// onto a detached goroutine), reverse requests go to the configured
// handler.
func (s *Session) dispatch(ctx context.Context, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.Response:
		if !s.pending.deliver(*m) {
			s.opts.Logger.Debug("dropping orphan response", "request_seq", m.RequestSeq, "command", m.Command)
		}
	case *wire.Event:
		s.handleEvent(ctx, m)
	case *wire.ReverseRequest:
		s.opts.ReverseRequestHandler(ctx, m)
	default:
		s.opts.Logger.Warn("unrecognised message from dispatch", "type", m)
	}
}

func (s *Session) handleEvent(ctx context.Context, ev *wire.Event) {
	switch ev.Event {
	case "initialized":
		s.initializedOnce.Do(func() { close(s.initializedCh) })
		s.bus.emit(Initialised, nil)
	case "continued":
		s.bus.emit(Running, nil)
	case "stopped":
		var body struct {
			ThreadID int `json:"threadId"`
		}
		if err := json.Unmarshal(ev.Body, &body); err != nil {
			s.opts.Logger.Error("malformed stopped event", "error", err)
			return
		}
		// Must not run inline: fetching stackTrace/scopes/variables sends
		// requests whose responses this same reader loop has to route back.
		// Running them here would deadlock the session against itself.
		s.eg.Go(func() error {
			s.handleStopped(ctx, body.ThreadID)
			return nil
		})
	case "exited", "terminated":
		s.bus.emit(Ended, nil)
	case "output", "thread", "module", "process", "loadedSource":
		// Not part of the semantic event surface; adapters may still send
		// them and we tolerate but ignore them (spec.md §6).
	default:
		s.opts.Logger.Debug("ignoring unrecognised adapter event", "event", ev.Event)
	}
}
