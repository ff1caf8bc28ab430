package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxFrameSize = 4 * 1024 * 1024

// Conn is the subset of *websocket.Conn the client drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens one duplex connection to the document authority.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// DialWebSocket is the default DialFunc.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ws dial %s: %w", url, err)
	}
	c.SetReadLimit(maxFrameSize)
	return c, nil
}

// wsConn serialises writes on a Conn and makes Close idempotent.
type wsConn struct {
	c      Conn
	mu     sync.Mutex // guards writes
	closed bool
}

func newWSConn(c Conn) *wsConn {
	return &wsConn{c: c}
}

func (wc *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := wc.c.ReadMessage()
	return data, err
}

// Send marshals v as JSON and writes it as one text frame.
func (wc *wsConn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ws marshal: %w", err)
	}
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.closed {
		return fmt.Errorf("ws connection closed")
	}
	if d, ok := wc.c.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(5 * time.Second))
	}
	return wc.c.WriteMessage(websocket.TextMessage, data)
}

func (wc *wsConn) Close() {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	if !wc.closed {
		wc.closed = true
		_ = wc.c.Close()
	}
}
