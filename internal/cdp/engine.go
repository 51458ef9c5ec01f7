package cdp

import "go.uber.org/zap"

// Engine bundles the sequence allocator, pending-request table,
// subscription registry, and dispatcher (components C through F) into
// the single object the session controller (component G, in package
// session) drives. Engine owns no I/O: callers feed it inbound frame
// bytes via Dispatch and read outbound ids via NextID.
type Engine struct {
	seq        sequence
	pending    *pendingTable
	subs       *Subscriptions
	dispatcher *Dispatcher
}

// NewEngine builds an Engine with empty tables. traceUnhandled enables
// the extra debug line for events nothing handled (§4.F.3).
func NewEngine(log *zap.Logger, traceUnhandled bool) *Engine {
	pending := newPendingTable()
	subs := NewSubscriptions(log)
	return &Engine{
		pending:    pending,
		subs:       subs,
		dispatcher: NewDispatcher(pending, subs, log, traceUnhandled),
	}
}

// NextID allocates the next outbound request id (component C).
func (e *Engine) NextID() int64 { return e.seq.next() }

// Register opens a pending-request slot for id. It must be called
// before the request bytes are handed to the transport (§4.G).
func (e *Engine) Register(id int64) <-chan Result { return e.pending.register(id) }

// Abandon drops id's pending slot without resolving it, for use when
// the transport write itself failed and the caller returns that error
// instead, or when the caller stopped waiting (its context ended).
func (e *Engine) Abandon(id int64) { e.pending.remove(id) }

// DrainPending rejects every outstanding request with err (§4.G Close).
func (e *Engine) DrainPending(err error) { e.pending.drain(err) }

// Dispatch routes one inbound frame (component F).
func (e *Engine) Dispatch(data []byte) { e.dispatcher.Dispatch(data) }

// Subscribe registers a persistent event listener (component E).
func (e *Engine) Subscribe(event string, cb func(Event)) Handle { return e.subs.Subscribe(event, cb) }

// Unsubscribe removes a persistent listener. Idempotent.
func (e *Engine) Unsubscribe(h Handle) { e.subs.Unsubscribe(h) }

// OnceAny registers a one-shot waiter across eventNames.
func (e *Engine) OnceAny(eventNames []string) (<-chan Event, OnceHandle) {
	return e.subs.OnceAny(eventNames)
}

// CancelOnce removes a one-shot waiter that never fired.
func (e *Engine) CancelOnce(h OnceHandle) { e.subs.CancelOnce(h) }

// SetSink installs (or, with nil, clears) the catch-all event callback.
func (e *Engine) SetSink(sink func(Event)) { e.subs.SetSink(sink) }

// ClearSubscriptions invalidates every persistent subscription and
// one-shot waiter, used by Close (§4.G).
func (e *Engine) ClearSubscriptions() { e.subs.Clear() }
