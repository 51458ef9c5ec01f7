// Package session implements the session controller (component G) and
// its thin high-level helpers (component H): connecting to a running
// Chrome/Chromium instance, correlating requests with replies, and
// fanning events out to subscribers, on top of the protocol engine in
// internal/cdp and the transport/discovery adapters beneath it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/duskline/cdpwire/internal/cdp"
	"github.com/duskline/cdpwire/internal/discovery"
	"github.com/duskline/cdpwire/internal/logging"
	"github.com/duskline/cdpwire/internal/transport"
)

// Options configures Connect. The zero value dials the default local
// debug port (127.0.0.1:9222) and picks the first page tab with a
// WebSocket URL, matching step 8 of §4.G's resolution policy.
type Options struct {
	// Host and Port address the browser's HTTP debug endpoint. Ignored
	// when Endpoint or a Pipe pair is set. Default 127.0.0.1:9222.
	Host string
	Port int

	// Endpoint, if set, is dialed directly; its final path segment is
	// taken as the tab id and no discovery call is made (§4.G step 2).
	Endpoint string

	// Tab selects among discovered targets (§4.G steps 3-6). Nil means
	// "no explicit selection" — see NewTab and step 8.
	Tab TabSelector

	// NewTab, when Tab is nil, opens a fresh tab via discovery instead
	// of picking an existing one (§4.G step 7).
	NewTab bool

	// PipeReader/PipeWriter, when both set, bypass HTTP discovery and
	// the WebSocket transport entirely in favor of the local
	// newline-delimited pipe variant (§4.G step 1).
	PipeReader io.Reader
	PipeWriter io.WriteCloser

	// Dialer overrides how the WebSocket transport is opened; nil uses
	// the real github.com/coder/websocket-backed dialer. Tests supply
	// a fake here.
	Dialer transport.Dialer

	// HTTPClient overrides the discovery client's HTTP client.
	HTTPClient *http.Client

	// Logger receives structured debug/trace output; nil discards it.
	Logger *zap.Logger

	// TraceUnhandledEvents turns on the extra debug line the
	// dispatcher emits for events no listener claimed (§4.F.3).
	TraceUnhandledEvents bool
}

func (o Options) hostPort() (string, int) {
	host, port := o.Host, o.Port
	if host == "" {
		host = "127.0.0.1"
	}
	if port == 0 {
		port = 9222
	}
	return host, port
}

// Session is the connected controller (component G): it owns the
// transport, the protocol engine, and the state machine, and is the
// only thing callers interact with once Connect returns.
type Session struct {
	engine *cdp.Engine
	conn   transport.Conn
	disc   *discovery.Client
	log    *zap.Logger

	writeMu sync.Mutex
	state   stateMachine

	closedCh  chan struct{}
	closeOnce sync.Once
	readDone  chan struct{}

	activeTab *discovery.Tab
}

// Connect opens a session per the endpoint resolution policy in §4.G.
// On failure no Session is returned. Target-selection failures are a
// NotFoundError, MissingWebSocketURLError, or MalformedEndpointError;
// a dial failure from the built-in dialer is a *transport.Error; an
// HTTP discovery failure is the discovery client's own error.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	log := logging.Named(opts.Logger, "session")

	s := &Session{
		engine:   cdp.NewEngine(opts.Logger, opts.TraceUnhandledEvents),
		log:      log,
		closedCh: make(chan struct{}),
		readDone: make(chan struct{}),
	}
	s.state.set(Connecting)

	conn, disc, tab, err := dial(ctx, opts, log)
	if err != nil {
		s.state.compareAndSet(Connecting, Idle)
		return nil, err
	}

	s.conn = conn
	s.disc = disc
	s.activeTab = tab

	if !s.state.compareAndSet(Connecting, Connected) {
		return nil, fmt.Errorf("session: unexpected state transition during connect")
	}

	go s.readLoop()

	return s, nil
}

// dial performs steps 1-8 of §4.G and returns an open transport.Conn.
func dial(ctx context.Context, opts Options, log *zap.Logger) (transport.Conn, *discovery.Client, *discovery.Tab, error) {
	// Step 1: pipe transport, no discovery.
	if opts.PipeReader != nil && opts.PipeWriter != nil {
		conn := transport.NewPipe(opts.PipeReader, opts.PipeWriter)
		return conn, nil, nil, nil
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.NewWebsocketDialer()
	}

	// Step 2: explicit endpoint, no discovery.
	if opts.Endpoint != "" {
		id, err := extractTabID(opts.Endpoint)
		if err != nil {
			return nil, nil, nil, err
		}
		conn, err := dialer.Dial(ctx, opts.Endpoint)
		if err != nil {
			return nil, nil, nil, err
		}
		return conn, nil, &discovery.Tab{ID: id, WebSocketURL: opts.Endpoint}, nil
	}

	// Steps 3-8: resolve via HTTP discovery.
	host, port := opts.hostPort()
	disc := discovery.New(host, port, opts.HTTPClient, log)

	tab, err := resolveTarget(ctx, disc, opts.Tab, opts.NewTab)
	if err != nil {
		return nil, nil, nil, err
	}
	if tab.WebSocketURL == "" {
		return nil, nil, nil, &MissingWebSocketURLError{TabID: tab.ID}
	}

	conn, err := dialer.Dial(ctx, tab.WebSocketURL)
	if err != nil {
		return nil, nil, nil, err
	}

	return conn, disc, tab, nil
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state.get() }

// ActiveTab returns the tab record Connect resolved, or nil for a pipe
// transport (which has none). For an explicit endpoint the record holds
// only the id and URL, with no title or type.
func (s *Session) ActiveTab() *discovery.Tab { return s.activeTab }

// readLoop is the single goroutine that owns frame decoding order,
// exactly as required by §5: it is the one place inbound frames are
// sequenced, so persistent-listener order and reply/event interleaving
// both fall out of the order frames are read here.
func (s *Session) readLoop() {
	defer close(s.readDone)

	ctx := context.Background()
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.teardown(fmt.Errorf("session: transport read failed: %w", err))
			return
		}
		s.engine.Dispatch(data)
	}
}

// teardown moves the session to Idle, drains all pending requests and
// subscriptions with a DisconnectedError carrying cause, and closes
// closedCh so blocked callers wake up. Idempotent.
func (s *Session) teardown(cause error) {
	s.closeOnce.Do(func() {
		s.state.set(Idle)
		reason := ""
		if cause != nil {
			reason = cause.Error()
		}
		s.engine.DrainPending(&cdp.DisconnectedError{Reason: reason})
		s.engine.ClearSubscriptions()
		close(s.closedCh)
	})
}

// Close transitions Connected -> Closing -> Idle: it closes the
// transport, drains every pending request with DisconnectedError, and
// clears the subscription registry (§4.G). Safe to call more than
// once: a second call finds the state already moved on from Connected
// and simply returns nil.
func (s *Session) Close() error {
	if !s.state.compareAndSet(Connected, Closing) {
		return nil
	}

	var closeErr error
	if s.conn != nil {
		closeErr = s.conn.Close(transport.StatusNormalClosure, "session closing")
	}

	s.teardown(nil)

	// Wait for the read loop to notice and exit, matching the
	// teacher's Client.Close synchronizing on its done channel.
	<-s.readDone

	return closeErr
}

// SendRequest allocates a request id, registers the completion handle
// *before* writing (§4.G — a reply arriving before Write returns can
// never be lost), and blocks for the result.
func (s *Session) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if s.State() != Connected {
		return nil, &cdp.NotConnectedError{}
	}

	id := s.engine.NextID()
	data, err := json.Marshal(cdp.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, &cdp.SerializationError{Err: err}
	}

	ch := s.engine.Register(id)

	if err := s.write(ctx, data); err != nil {
		s.engine.Abandon(id)
		return nil, err
	}

	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-ctx.Done():
		s.engine.Abandon(id)
		return nil, ctx.Err()
	case <-s.closedCh:
		return nil, &cdp.DisconnectedError{}
	}
}

// SendNotification writes a request frame without registering a
// pending-reply slot; completion is send success.
func (s *Session) SendNotification(ctx context.Context, method string, params any) error {
	if s.State() != Connected {
		return &cdp.NotConnectedError{}
	}

	id := s.engine.NextID()
	data, err := json.Marshal(cdp.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return &cdp.SerializationError{Err: err}
	}

	return s.write(ctx, data)
}

func (s *Session) write(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(ctx, transport.MessageText, data)
}

// Subscribe registers a persistent listener for event (component E).
func (s *Session) Subscribe(event string, cb func(cdp.Event)) cdp.Handle {
	return s.engine.Subscribe(event, cb)
}

// Unsubscribe removes a persistent listener. Idempotent.
func (s *Session) Unsubscribe(h cdp.Handle) { s.engine.Unsubscribe(h) }

// OnceAny waits for the first event whose name is in eventNames, or
// returns DisconnectedError if the session closes first, or ctx.Err()
// if ctx is cancelled first.
func (s *Session) OnceAny(ctx context.Context, eventNames []string) (cdp.Event, error) {
	ch, handle := s.engine.OnceAny(eventNames)

	select {
	case evt := <-ch:
		return evt, nil
	case <-ctx.Done():
		s.engine.CancelOnce(handle)
		return cdp.Event{}, ctx.Err()
	case <-s.closedCh:
		s.engine.CancelOnce(handle)
		return cdp.Event{}, &cdp.DisconnectedError{}
	}
}

// SetSink installs (nil clears) the catch-all callback for every
// inbound event not otherwise consumed by a reply.
func (s *Session) SetSink(sink func(cdp.Event)) { s.engine.SetSink(sink) }

// Sleep is the session-level exposure of the transport's timer
// primitive (§4.A/§6).
func (s *Session) Sleep(ctx context.Context, seconds float64) error {
	return transport.Sleep(ctx, secondsToDuration(seconds))
}
