package cdp

import (
	"strconv"
	"strings"
)

// ProtocolError is a browser-reported command failure. Its message
// joins {message, data, code} on separate lines, per §4.F.2, so a
// caller printing err.Error() sees all three without needing to
// type-assert first.
type ProtocolError struct {
	Code    int
	Message string
	Data    string
}

func (e *ProtocolError) Error() string {
	lines := []string{e.Message}
	if e.Data != "" {
		lines = append(lines, e.Data)
	}
	lines = append(lines, "code "+strconv.Itoa(e.Code))
	return strings.Join(lines, "\n")
}

func newProtocolError(re *ReplyError) *ProtocolError {
	return &ProtocolError{Code: re.Code, Message: re.Message, Data: re.Data}
}

// SerializationError wraps a failure to marshal an outbound request.
// The session remains open; only the offending call fails.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string { return "cdp: serialize request: " + e.Err.Error() }
func (e *SerializationError) Unwrap() error { return e.Err }

// DisconnectedError is returned to every pending caller when the
// session tears down, whether via Close or a transport failure.
type DisconnectedError struct {
	Reason string
}

func (e *DisconnectedError) Error() string {
	if e.Reason == "" {
		return "cdp: disconnected"
	}
	return "cdp: disconnected: " + e.Reason
}

// NotConnectedError is returned when an operation that requires an
// open session is issued outside the Connected state.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string { return "cdp: not connected" }
