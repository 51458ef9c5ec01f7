package transport

import (
	"testing"

	"github.com/coder/websocket"
)

func TestMessageTypeTranslation_RoundTrips(t *testing.T) {
	t.Parallel()

	if got := toWSMessageType(MessageText); got != websocket.MessageText {
		t.Errorf("expected websocket.MessageText, got %v", got)
	}
	if got := toWSMessageType(MessageBinary); got != websocket.MessageBinary {
		t.Errorf("expected websocket.MessageBinary, got %v", got)
	}
	if got := fromWSMessageType(websocket.MessageText); got != MessageText {
		t.Errorf("expected MessageText, got %v", got)
	}
	if got := fromWSMessageType(websocket.MessageBinary); got != MessageBinary {
		t.Errorf("expected MessageBinary, got %v", got)
	}
}
