package client

import "github.com/simonrw/dap-gui-sub000/internal/queue"

// EventKind is the closed set of semantic events a Session emits, per
// spec.md §3 "Lifecycles". These are derived from, and in strict temporal
// order with, the session's own state transitions — they are not a raw
// pass-through of adapter events.
type EventKind int

const (
	Uninitialised EventKind = iota
	Initialised
	Running
	Paused
	ScopeChange
	Ended
)

func (k EventKind) String() string {
	switch k {
	case Uninitialised:
		return "Uninitialised"
	case Initialised:
		return "Initialised"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case ScopeChange:
		return "ScopeChange"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// Event is one semantic transition. State is non-nil only for Paused and
// ScopeChange, and is a self-consistent snapshot: its Stack, Breakpoints
// and PausedFrame all describe the same moment (spec.md §8, testable
// property "frame consistency").
type Event struct {
	Kind  EventKind
	State *ProgramState
}

// Events is a handle a subscriber uses to receive a Session's semantic
// events in order. Obtaining one never blocks and never fails; missing
// events are impossible but a slow consumer will see its backlog grow
// (the queue is unbounded, per spec.md §4.6 "the producer must never
// block on a slow or absent subscriber").
type Events struct {
	q *queue.Unbounded[Event]
}

// Recv blocks until the next event is available, or returns ok=false once
// the session has been shut down and every buffered event drained.
func (e *Events) Recv() (Event, bool) {
	return e.q.Recv()
}

// eventBus is the producer side, held by the Session. It owns a single
// queue: every Events handle it hands out reads from that same queue, so
// each event is delivered once, to whichever handle receives it first.
type eventBus struct {
	q *queue.Unbounded[Event]
}

func newEventBus() *eventBus {
	return &eventBus{q: queue.New[Event]()}
}

func (b *eventBus) subscribe() *Events {
	return &Events{q: b.q}
}

func (b *eventBus) emit(kind EventKind, state *ProgramState) {
	b.q.Send(Event{Kind: kind, State: state})
}

func (b *eventBus) close() {
	b.q.Close()
}
