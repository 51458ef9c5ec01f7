package cdp

import (
	"go.uber.org/zap"
)

// Dispatcher implements component F: it parses one inbound frame and
// routes it to the pending-request table or the subscription registry.
// It owns neither the transport nor the read loop — Session drives
// both — so it can be exercised with raw byte slices in tests.
type Dispatcher struct {
	pending *pendingTable
	subs    *Subscriptions
	log     *zap.Logger

	traceUnhandled bool
}

// NewDispatcher wires a dispatcher over an existing pending table and
// subscription registry. traceUnhandled turns on the extra log line
// for events nothing handled (§4.F.3's "trace logging").
func NewDispatcher(pending *pendingTable, subs *Subscriptions, log *zap.Logger, traceUnhandled bool) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		pending:        pending,
		subs:           subs,
		log:            log.Named("dispatcher"),
		traceUnhandled: traceUnhandled,
	}
}

// Dispatch decodes data and routes it per §4.F's decision tree. It
// never returns an error: parse failures and orphan replies are
// logged and dropped rather than surfaced, matching §7's propagation
// policy that only resolves the caller who owns the affected operation.
func (d *Dispatcher) Dispatch(data []byte) {
	reply, event, err := parseFrame(data)
	if err != nil {
		d.log.Debug("dropping unparseable frame", zap.Error(err), zap.ByteString("data", data))
		return
	}

	if reply != nil {
		d.dispatchReply(reply)
		return
	}

	d.dispatchEvent(event)
}

func (d *Dispatcher) dispatchReply(reply *Reply) {
	var ok bool
	if reply.Error != nil {
		ok = d.pending.reject(reply.ID, newProtocolError(reply.Error))
	} else {
		ok = d.pending.fulfill(reply.ID, reply.Result)
	}
	if !ok {
		d.log.Debug("dropping reply with no matching pending request", zap.Int64("id", reply.ID))
	}
}

func (d *Dispatcher) dispatchEvent(event *Event) {
	if event.Method == "" {
		// A frame with neither id nor method, or a bare top-level
		// error on an event — §4.F.3's pathological case.
		d.log.Debug("dropping malformed event frame")
		return
	}

	handled := d.subs.Notify(*event)
	if !handled && d.traceUnhandled {
		d.log.Debug("ignored event with no listener", zap.String("method", event.Method))
	}
}
