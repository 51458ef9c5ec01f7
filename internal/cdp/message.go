// Package cdp implements the asynchronous protocol engine at the heart
// of this library: request/reply correlation by sequence number and
// fan-out of unsolicited events to subscribers. It has no knowledge of
// I/O (see internal/transport) or of any individual CDP domain — it
// only understands the three frame shapes on the wire.
package cdp

import (
	"encoding/json"
	"fmt"
)

// Request is an outbound CDP command frame.
type Request struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Reply is an inbound frame correlated to a prior Request by ID.
type Reply struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ReplyError     `json:"error,omitempty"`
}

// Event is an inbound frame with no id, naming a browser-initiated
// notification.
type Event struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// ReplyError is the {code,message,data} shape a browser sends on
// command failure.
type ReplyError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// wireFrame is the superset shape used only to sniff which of Reply /
// Event / neither an inbound frame is. ID is a pointer so a reply with
// id:0 (unusual, but not disallowed by the wire format) is still
// distinguished from an event, which never carries an id key at all.
type wireFrame struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *ReplyError     `json:"error"`
	Params json.RawMessage `json:"params"`
}

// parseFrame decodes one inbound frame and classifies it as a Reply or
// an Event. Both return values are nil only when parsing itself fails.
func parseFrame(data []byte) (*Reply, *Event, error) {
	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, nil, fmt.Errorf("cdp: parse frame: %w", err)
	}

	if frame.ID != nil {
		return &Reply{ID: *frame.ID, Result: frame.Result, Error: frame.Error}, nil, nil
	}

	if frame.Method != "" && frame.Error == nil {
		return nil, &Event{Method: frame.Method, Params: frame.Params}, nil
	}

	// No id, and either no method or a top-level error: an event
	// carrying an error, or something else pathological. Surface it as
	// an event with no method so the dispatcher can log-and-drop it
	// (§4.F.3).
	if frame.Error != nil {
		return nil, &Event{}, nil
	}

	return nil, nil, fmt.Errorf("cdp: frame has neither id nor method: %s", string(data))
}
