package cdp

import (
	"strings"
	"testing"
	"time"
)

func newTestDispatcher() (*Dispatcher, *pendingTable, *Subscriptions) {
	pending := newPendingTable()
	subs := NewSubscriptions(nil)
	return NewDispatcher(pending, subs, nil, true), pending, subs
}

func TestDispatcher_RoutesReplyToPendingRequest(t *testing.T) {
	t.Parallel()

	d, pending, _ := newTestDispatcher()
	ch := pending.register(1)

	d.Dispatch([]byte(`{"id":1,"result":{"value":3}}`))

	select {
	case res := <-ch:
		if res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
		if string(res.Value) != `{"value":3}` {
			t.Errorf("unexpected result: %s", res.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestDispatcher_RoutesErrorReplyAsProtocolError(t *testing.T) {
	t.Parallel()

	d, pending, _ := newTestDispatcher()
	ch := pending.register(1)

	d.Dispatch([]byte(`{"id":1,"error":{"code":-32000,"message":"Oops","data":"ctx"}}`))

	res := <-ch
	protoErr, ok := res.Err.(*ProtocolError)
	if !ok {
		t.Fatalf("expected *ProtocolError, got %T", res.Err)
	}
	msg := protoErr.Error()
	for _, want := range []string{"Oops", "ctx", "-32000"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error message %q to contain %q", msg, want)
		}
	}
}

func TestDispatcher_OrphanReplyIsDropped(t *testing.T) {
	t.Parallel()

	d, _, _ := newTestDispatcher()
	d.Dispatch([]byte(`{"id":999,"result":{}}`)) // must not panic
}

func TestDispatcher_MalformedFrameIsDropped(t *testing.T) {
	t.Parallel()

	d, _, _ := newTestDispatcher()
	d.Dispatch([]byte(`not json`)) // must not panic
}

func TestDispatcher_FansEventOutToSubscribers(t *testing.T) {
	t.Parallel()

	d, _, subs := newTestDispatcher()

	var gotA, gotB bool
	subs.Subscribe("Network.requestWillBeSent", func(Event) { gotA = true })
	subs.Subscribe("Network.requestWillBeSent", func(Event) { gotB = true })

	d.Dispatch([]byte(`{"method":"Network.requestWillBeSent","params":{}}`))

	if !gotA || !gotB {
		t.Fatalf("expected both subscribers invoked, got %v %v", gotA, gotB)
	}
}

func TestDispatcher_EventWithBareErrorIsDropped(t *testing.T) {
	t.Parallel()

	d, _, subs := newTestDispatcher()

	called := false
	subs.SetSink(func(Event) { called = true })

	d.Dispatch([]byte(`{"error":{"code":1,"message":"x"}}`))

	if called {
		t.Fatal("expected bare-error frame not to reach the sink")
	}
}

func TestDispatcher_ReentrantSubscribeDuringNotifyIsSafe(t *testing.T) {
	t.Parallel()

	d, _, subs := newTestDispatcher()

	var secondFired bool
	subs.Subscribe("A", func(Event) {
		subs.Subscribe("A", func(Event) { secondFired = true })
	})

	d.Dispatch([]byte(`{"method":"A","params":{}}`))
	d.Dispatch([]byte(`{"method":"A","params":{}}`))

	if !secondFired {
		t.Fatal("expected listener registered during Notify to fire on the next event")
	}
}
