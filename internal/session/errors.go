package session

// NotFoundError is returned by Connect when a Tab selector (index,
// title regexp, id, or record) matched nothing in the discovery list.
type NotFoundError struct {
	Reason string
}

func (e *NotFoundError) Error() string { return "session: tab not found: " + e.Reason }

// MissingWebSocketURLError is returned when a selected tab has no
// webSocketDebuggerUrl to dial.
type MissingWebSocketURLError struct {
	TabID string
}

func (e *MissingWebSocketURLError) Error() string {
	return "session: tab " + e.TabID + " has no webSocketDebuggerUrl"
}

// MalformedEndpointError is returned when an explicit Endpoint URL's
// final path segment cannot be taken as a tab id (§9's resolved open
// question: recoverable, not a process-terminating condition).
type MalformedEndpointError struct {
	Endpoint string
}

func (e *MalformedEndpointError) Error() string {
	return "session: cannot extract tab id from endpoint " + e.Endpoint
}
