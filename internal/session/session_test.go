package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/duskline/cdpwire/internal/cdp"
	"github.com/duskline/cdpwire/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn is an in-memory transport.Conn: Write deposits frames on
// fromSession, Read delivers frames queued on toSession, and Close
// unblocks any pending Read with transport.ErrClosed.
type fakeConn struct {
	toSession   chan []byte
	fromSession chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toSession:   make(chan []byte, 16),
		fromSession: make(chan []byte, 16),
		closed:      make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) (transport.MessageType, []byte, error) {
	select {
	case data := <-c.toSession:
		return transport.MessageText, data, nil
	case <-c.closed:
		return 0, nil, transport.ErrClosed
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, typ transport.MessageType, data []byte) error {
	select {
	case c.fromSession <- append([]byte(nil), data...):
		return nil
	case <-c.closed:
		return transport.ErrClosed
	}
}

func (c *fakeConn) Close(code transport.StatusCode, reason string) error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	conn      *fakeConn
	dialedURL string
}

func (d *fakeDialer) Dial(ctx context.Context, wsURL string) (transport.Conn, error) {
	d.dialedURL = wsURL
	return d.conn, nil
}

func newTestSession(t *testing.T, conn *fakeConn) *Session {
	t.Helper()
	s, err := Connect(context.Background(), Options{
		Endpoint: "ws://127.0.0.1:9222/devtools/page/TESTTAB",
		Dialer:   &fakeDialer{conn: conn},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// echoID reads the next outbound frame and returns its id, so the test
// can build a reply frame carrying the same id.
func echoID(t *testing.T, conn *fakeConn) int64 {
	t.Helper()
	select {
	case raw := <-conn.fromSession:
		var req struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("unmarshal outbound request: %v", err)
		}
		return req.ID
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for outbound request")
		return 0
	}
}

func TestConnect_ExplicitEndpoint_SkipsDiscovery(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}
	s, err := Connect(context.Background(), Options{
		Endpoint: "ws://127.0.0.1:9222/devtools/page/ABC123",
		Dialer:   dialer,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if s.disc != nil {
		t.Error("expected no discovery client for an explicit endpoint")
	}
	if s.ActiveTab().ID != "ABC123" {
		t.Errorf("expected tab id ABC123, got %q", s.ActiveTab().ID)
	}
	if dialer.dialedURL != "ws://127.0.0.1:9222/devtools/page/ABC123" {
		t.Errorf("unexpected dial target: %s", dialer.dialedURL)
	}
	if s.State() != Connected {
		t.Errorf("expected Connected, got %s", s.State())
	}
}

func TestConnect_MalformedEndpoint(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), Options{
		Endpoint: "ws://127.0.0.1:9222/",
		Dialer:   &fakeDialer{conn: newFakeConn()},
	})
	var target *MalformedEndpointError
	if !errors.As(err, &target) {
		t.Fatalf("expected *MalformedEndpointError, got %v (%T)", err, err)
	}
}

func TestConnect_DefaultResolution_PicksFirstTabWithWebSocketURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/list" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"no-ws","type":"page","title":"no socket","url":"about:blank"},
			{"id":"has-ws","type":"page","title":"has socket","url":"about:blank","webSocketDebuggerUrl":"ws://127.0.0.1:9222/devtools/page/has-ws"}
		]`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	conn := newFakeConn()
	dialer := &fakeDialer{conn: conn}

	s, err := Connect(context.Background(), Options{
		Host:   host,
		Port:   port,
		Dialer: dialer,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if s.ActiveTab().ID != "has-ws" {
		t.Errorf("expected tab has-ws, got %q", s.ActiveTab().ID)
	}
	if dialer.dialedURL != "ws://127.0.0.1:9222/devtools/page/has-ws" {
		t.Errorf("unexpected dial target: %s", dialer.dialedURL)
	}
}

func TestConnect_NoTabHasWebSocketURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"x","type":"page","title":"t","url":"about:blank"}]`))
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	_, err := Connect(context.Background(), Options{Host: host, Port: port, Dialer: &fakeDialer{conn: newFakeConn()}})
	var target *NotFoundError
	if !errors.As(err, &target) {
		t.Fatalf("expected *NotFoundError, got %v (%T)", err, err)
	}
}

func TestSendRequest_RoundTrip(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	done := make(chan struct{})
	var result json.RawMessage
	var sendErr error
	go func() {
		result, sendErr = s.SendRequest(context.Background(), "Runtime.evaluate", nil)
		close(done)
	}()

	id := echoID(t, conn)
	conn.toSession <- []byte(`{"id":` + itoa(id) + `,"result":{"value":42}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if sendErr != nil {
		t.Fatalf("unexpected error: %v", sendErr)
	}
	if string(result) != `{"value":42}` {
		t.Errorf("unexpected result: %s", result)
	}
}

func TestSendRequest_ProtocolError(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	done := make(chan struct{})
	var sendErr error
	go func() {
		_, sendErr = s.SendRequest(context.Background(), "Bogus.method", nil)
		close(done)
	}()

	id := echoID(t, conn)
	conn.toSession <- []byte(`{"id":` + itoa(id) + `,"error":{"code":-32601,"message":"method not found"}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	var protoErr *cdp.ProtocolError
	if !errors.As(sendErr, &protoErr) {
		t.Fatalf("expected *cdp.ProtocolError, got %v (%T)", sendErr, sendErr)
	}
	if protoErr.Code != -32601 {
		t.Errorf("unexpected code: %d", protoErr.Code)
	}
}

func TestSubscribe_ReceivesEvent(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	received := make(chan cdp.Event, 1)
	s.Subscribe("Page.loadEventFired", func(evt cdp.Event) { received <- evt })

	conn.toSession <- []byte(`{"method":"Page.loadEventFired","params":{"timestamp":1.0}}`)

	select {
	case evt := <-received:
		if evt.Method != "Page.loadEventFired" {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestOnceAny_FiresOnFirstMatchingEvent(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	type onceResult struct {
		evt cdp.Event
		err error
	}
	resCh := make(chan onceResult, 1)
	go func() {
		evt, err := s.OnceAny(context.Background(), []string{"Target.targetCreated", "Target.targetDestroyed"})
		resCh <- onceResult{evt, err}
	}()

	// give the waiter a moment to register before the event arrives;
	// not required for correctness, just avoids a flaky false-negative
	// if the goroutine hasn't been scheduled yet.
	time.Sleep(10 * time.Millisecond)
	conn.toSession <- []byte(`{"method":"Target.targetDestroyed","params":{}}`)

	select {
	case r := <-resCh:
		if r.err != nil {
			t.Fatalf("unexpected error: %v", r.err)
		}
		if r.evt.Method != "Target.targetDestroyed" {
			t.Errorf("unexpected event: %+v", r.evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestSetSink_ReceivesUnclaimedEvents(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	sinkCh := make(chan cdp.Event, 1)
	s.SetSink(func(evt cdp.Event) { sinkCh <- evt })

	conn.toSession <- []byte(`{"method":"Network.requestWillBeSent","params":{}}`)

	select {
	case evt := <-sinkCh:
		if evt.Method != "Network.requestWillBeSent" {
			t.Errorf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestClose_DrainsPendingRequests(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s, err := Connect(context.Background(), Options{
		Endpoint: "ws://127.0.0.1:9222/devtools/page/TESTTAB",
		Dialer:   &fakeDialer{conn: conn},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, sendErr := s.SendRequest(context.Background(), "Runtime.evaluate", nil)
		done <- sendErr
	}()

	// Wait until the request has actually been written before closing,
	// so Close races against a genuinely pending request.
	<-conn.fromSession

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		var discErr *cdp.DisconnectedError
		if !errors.As(err, &discErr) {
			t.Fatalf("expected *cdp.DisconnectedError, got %v (%T)", err, err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if s.State() != Idle {
		t.Errorf("expected Idle after Close, got %s", s.State())
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestSendRequest_AfterClose(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err := s.SendRequest(context.Background(), "Runtime.evaluate", nil)
	var notConnected *cdp.NotConnectedError
	if !errors.As(err, &notConnected) {
		t.Fatalf("expected *cdp.NotConnectedError, got %v (%T)", err, err)
	}
}

func TestEval_ReturnsValue(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	done := make(chan struct{})
	var result json.RawMessage
	var evalErr error
	go func() {
		result, evalErr = s.Eval(context.Background(), "1+1")
		close(done)
	}()

	id := echoID(t, conn)
	conn.toSession <- []byte(`{"id":` + itoa(id) + `,"result":{"result":{"type":"number","value":2}}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if evalErr != nil {
		t.Fatalf("unexpected error: %v", evalErr)
	}
	if string(result) != "2" {
		t.Errorf("unexpected value: %s", result)
	}
}

func TestEval_PropagatesException(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	s := newTestSession(t, conn)

	done := make(chan struct{})
	var evalErr error
	go func() {
		_, evalErr = s.Eval(context.Background(), "throw new Error('boom')")
		close(done)
	}()

	id := echoID(t, conn)
	conn.toSession <- []byte(`{"id":` + itoa(id) + `,"result":{"result":{"type":"undefined"},"exceptionDetails":{"text":"Uncaught Error: boom"}}}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	if evalErr == nil {
		t.Fatal("expected an error")
	}
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %s: %v", rawURL, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host:port %s: %v", u.Host, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port %s: %v", portStr, err)
	}
	return host, port
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
