package cdp

import (
	"encoding/json"
	"sync"
)

// Result is what a pending request resolves to: either a raw JSON
// value or an error, never both.
type Result struct {
	Value json.RawMessage
	Err   error
}

// completion is the single-use handle the dispatcher fulfills or
// rejects. It is a channel of capacity 1 so the dispatcher never
// blocks handing off a reply, matching the teacher's respCh pattern.
type completion chan Result

// pendingTable maps outbound request IDs to their completion handles
// (component D). Backed by a plain mutex+map rather than sync.Map: the
// table sees roughly balanced reads and writes (one register + one
// fulfill per request) so a map protected by a mutex is both simpler
// and, per the standard library's own guidance, no slower than
// sync.Map for that access pattern.
type pendingTable struct {
	mu      sync.Mutex
	entries map[int64]completion
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[int64]completion)}
}

// register creates and stores a completion handle for id. Must be
// called before the request is written to the transport so a reply
// that arrives immediately cannot race ahead of registration.
func (t *pendingTable) register(id int64) completion {
	ch := make(completion, 1)
	t.mu.Lock()
	t.entries[id] = ch
	t.mu.Unlock()
	return ch
}

// remove drops id without resolving it, used when Write fails and the
// caller will construct its own error instead of waiting on the channel.
func (t *pendingTable) remove(id int64) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// fulfill resolves id with a successful result. Returns false if there
// was no matching entry (an orphan reply, §4.F.2).
func (t *pendingTable) fulfill(id int64, result json.RawMessage) bool {
	ch, ok := t.take(id)
	if !ok {
		return false
	}
	ch <- Result{Value: result}
	return true
}

// reject resolves id with an error. Returns false if there was no
// matching entry.
func (t *pendingTable) reject(id int64, err error) bool {
	ch, ok := t.take(id)
	if !ok {
		return false
	}
	ch <- Result{Err: err}
	return true
}

// take atomically removes and returns id's completion handle so it can
// never be fulfilled twice.
func (t *pendingTable) take(id int64) (completion, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return ch, ok
}

// drain rejects every outstanding entry with err and empties the
// table. Used at teardown (§4.G Close, invariant in §3).
func (t *pendingTable) drain(err error) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[int64]completion)
	t.mu.Unlock()

	for _, ch := range entries {
		ch <- Result{Err: err}
	}
}
