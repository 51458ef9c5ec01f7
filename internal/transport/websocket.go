package transport

import (
	"context"

	"github.com/coder/websocket"
)

// Websocket dials real CDP WebSocket endpoints using
// github.com/coder/websocket, the library the rest of this codebase's
// corpus already standardizes on for CDP transports.
type Websocket struct{}

// NewWebsocketDialer returns a Dialer backed by github.com/coder/websocket.
func NewWebsocketDialer() Dialer {
	return Websocket{}
}

// Dial opens a WebSocket connection to wsURL.
func (Websocket) Dial(ctx context.Context, wsURL string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, newError("dial", err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface, translating the
// small enums (MessageType, StatusCode) between the two type spaces.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (MessageType, []byte, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return 0, nil, newError("read", err)
	}
	return fromWSMessageType(typ), data, nil
}

func (c *wsConn) Write(ctx context.Context, typ MessageType, data []byte) error {
	if err := c.conn.Write(ctx, toWSMessageType(typ), data); err != nil {
		return newError("write", err)
	}
	return nil
}

func (c *wsConn) Close(code StatusCode, reason string) error {
	if err := c.conn.Close(websocket.StatusCode(code), reason); err != nil {
		return newError("close", err)
	}
	return nil
}

func toWSMessageType(t MessageType) websocket.MessageType {
	if t == MessageBinary {
		return websocket.MessageBinary
	}
	return websocket.MessageText
}

func fromWSMessageType(t websocket.MessageType) MessageType {
	if t == websocket.MessageBinary {
		return MessageBinary
	}
	return MessageText
}
