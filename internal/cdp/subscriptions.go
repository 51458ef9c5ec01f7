package cdp

import (
	"sync"

	"go.uber.org/zap"
)

// Handle identifies one persistent subscription. Calling Unsubscribe
// with it removes the listener immediately. Dropping the handle without
// calling Unsubscribe does not remove the listener: it keeps firing
// until Clear.
type Handle struct {
	index      int
	generation uint64
}

// subscriptionSlot is one slab entry. Slots are never reused: removal
// clears live, and Notify and Unsubscribe skip a slot that is not live.
// generation is stamped at Subscribe and must match the Handle's for
// Unsubscribe to act — the "weak reference" the source language got
// from GC, reproduced with an integer instead (§9).
type subscriptionSlot struct {
	event      string
	callback   func(Event)
	generation uint64
	live       bool
}

// onceWaiter is a one-shot listener across a set of event names.
type onceWaiter struct {
	events     map[string]struct{}
	resultCh   chan Event
	generation uint64
	live       bool
}

// Subscriptions is the subscription registry (component E): persistent
// listeners keyed by event name, one-shot waiters keyed by an event
// set, and a single catch-all sink. All mutation is protected by one
// mutex; Notify releases it before invoking any callback so that a
// callback issuing a new request or subscription can't deadlock
// against the dispatcher (§4.F re-entrancy requirement).
type Subscriptions struct {
	mu   sync.Mutex
	log  *zap.Logger

	slots   []subscriptionSlot
	byEvent map[string][]int // event name -> live slot indices

	waiters    []onceWaiter
	nextGen    uint64

	sink func(Event)
}

// NewSubscriptions creates an empty registry.
func NewSubscriptions(log *zap.Logger) *Subscriptions {
	if log == nil {
		log = zap.NewNop()
	}
	return &Subscriptions{
		log:     log.Named("subscriptions"),
		byEvent: make(map[string][]int),
	}
}

// Subscribe registers callback for every occurrence of event and
// returns a Handle that Unsubscribe can use to remove it in O(1).
// Clear also removes it.
func (s *Subscriptions) Subscribe(event string, callback func(Event)) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextGen++
	gen := s.nextGen

	idx := len(s.slots)
	s.slots = append(s.slots, subscriptionSlot{
		event:      event,
		callback:   callback,
		generation: gen,
		live:       true,
	})
	s.byEvent[event] = append(s.byEvent[event], idx)

	return Handle{index: idx, generation: gen}
}

// Unsubscribe removes the listener h identifies. Idempotent: an
// already-removed or stale handle is a no-op.
func (s *Subscriptions) Unsubscribe(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.index < 0 || h.index >= len(s.slots) {
		return
	}
	slot := &s.slots[h.index]
	if !slot.live || slot.generation != h.generation {
		return
	}
	slot.live = false
	slot.callback = nil
}

// OnceHandle cancels a one-shot waiter before it resolves.
type OnceHandle struct {
	index      int
	generation uint64
}

// OnceAny registers a one-shot waiter across eventNames. The returned
// channel receives exactly one Event and is then never written to
// again; the returned OnceHandle cancels the waiter (e.g. from a
// context-done goroutine) before it fires.
func (s *Subscriptions) OnceAny(eventNames []string) (<-chan Event, OnceHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{}, len(eventNames))
	for _, name := range eventNames {
		set[name] = struct{}{}
	}

	s.nextGen++
	gen := s.nextGen

	idx := len(s.waiters)
	ch := make(chan Event, 1)
	s.waiters = append(s.waiters, onceWaiter{
		events:     set,
		resultCh:   ch,
		generation: gen,
		live:       true,
	})

	return ch, OnceHandle{index: idx, generation: gen}
}

// CancelOnce removes a one-shot waiter that never fired. Idempotent.
func (s *Subscriptions) CancelOnce(h OnceHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.index < 0 || h.index >= len(s.waiters) {
		return
	}
	w := &s.waiters[h.index]
	if !w.live || w.generation != h.generation {
		return
	}
	w.live = false
	w.events = nil
	w.resultCh = nil
}

// SetSink installs the catch-all callback, replacing any previous one.
// Passing nil clears it. Idempotent under re-set, as required by §3.
func (s *Subscriptions) SetSink(sink func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Notify fans event out to every live persistent listener registered
// for its name (in subscription order, pruning dead slots as it goes),
// then to the first live one-shot waiter whose set contains the name,
// then to the sink if set. Returns whether anything handled it.
//
// The lock is held only while snapshotting live callbacks, never while
// invoking them, so a callback that calls back into Subscribe/Notify
// (or the session controller more broadly) cannot deadlock here.
func (s *Subscriptions) Notify(evt Event) bool {
	callbacks, onceCh, onceEvt, sink := s.snapshot(evt)

	handled := false
	for _, cb := range callbacks {
		handled = true
		s.invoke(cb, evt)
	}

	if onceCh != nil {
		handled = true
		onceCh <- onceEvt
	}

	if sink != nil {
		handled = true
		s.invoke(sink, evt)
	}

	return handled
}

func (s *Subscriptions) snapshot(evt Event) (callbacks []func(Event), onceCh chan Event, onceEvt Event, sink func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	indices := s.byEvent[evt.Method]
	live := indices[:0]
	for _, idx := range indices {
		slot := &s.slots[idx]
		if !slot.live {
			continue
		}
		live = append(live, idx)
		callbacks = append(callbacks, slot.callback)
	}
	s.byEvent[evt.Method] = live

	for i := range s.waiters {
		w := &s.waiters[i]
		if !w.live {
			continue
		}
		if _, ok := w.events[evt.Method]; ok {
			onceCh = w.resultCh
			onceEvt = evt
			w.live = false
			w.events = nil
			w.resultCh = nil
			break
		}
	}

	sink = s.sink
	return callbacks, onceCh, onceEvt, sink
}

// invoke calls cb, recovering a panic so one broken listener can never
// take down the read loop or block its siblings (§4.E ordering rule,
// §7 propagation policy).
func (s *Subscriptions) invoke(cb func(Event), evt Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("listener panicked", zap.Any("recovered", r), zap.String("event", evt.Method))
		}
	}()
	cb(evt)
}

// Clear invalidates every persistent subscription and one-shot waiter,
// used by Close (§4.G). It does not touch the sink: the sink is a
// caller-owned setting that survives independent of connection state,
// matching Settable/clearable semantics in §3 ("Global sink").
func (s *Subscriptions) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.slots {
		s.slots[i].live = false
		s.slots[i].callback = nil
	}
	s.byEvent = make(map[string][]int)

	for i := range s.waiters {
		s.waiters[i].live = false
		s.waiters[i].events = nil
		s.waiters[i].resultCh = nil
	}
	s.waiters = nil
}
