package client

import (
	"sync"

	"github.com/simonrw/dap-gui-sub000/wire"
)

// pendingTable tracks in-flight requests keyed by seq, so the reader task
// can correlate an inbound Response back to the waiter that is blocked on
// it (spec.md §4.3, testable property "at most one waiter per seq").
//
// A waiter is registered before the request bytes are written, never
// after, closing the race where a response could otherwise arrive and be
// dropped as orphaned before anyone is listening for it.
type pendingTable struct {
	mu      sync.Mutex
	waiters map[int64]chan wire.Response
}

func newPendingTable() *pendingTable {
	return &pendingTable{waiters: make(map[int64]chan wire.Response)}
}

// register reserves seq for a single reply. It panics if seq is already
// registered: that would mean two requests were allocated the same
// sequence number, which never happens as long as seq comes from a single
// atomic counter.
func (p *pendingTable) register(seq int64) chan wire.Response {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.waiters[seq]; ok {
		panic("client: duplicate pending request seq")
	}
	ch := make(chan wire.Response, 1)
	p.waiters[seq] = ch
	return ch
}

// deliver routes resp to its waiter, if one is still registered. A
// response with no matching waiter (already timed out, or never ours) is
// tolerated and simply dropped (spec.md §8, "orphan response tolerance").
func (p *pendingTable) deliver(resp wire.Response) (delivered bool) {
	p.mu.Lock()
	ch, ok := p.waiters[resp.RequestSeq]
	if ok {
		delete(p.waiters, resp.RequestSeq)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// forget removes seq's waiter without delivering anything, used when a
// request times out, its context is cancelled, or its frame cannot be
// encoded or written. Shutdown uses closeAll instead.
func (p *pendingTable) forget(seq int64) {
	p.mu.Lock()
	delete(p.waiters, seq)
	p.mu.Unlock()
}

// closeAll fails every outstanding waiter by closing its channel, so
// anyone blocked in a receive unblocks with a zero-value/closed read
// rather than hanging forever once the session tears down.
func (p *pendingTable) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for seq, ch := range p.waiters {
		close(ch)
		delete(p.waiters, seq)
	}
}
