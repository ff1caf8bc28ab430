package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	realtimeTypes "github.com/nikhildhole/mermaid-visualizer/pkg/realtime"
)

const outboundBufferSize = 64

// JSONWriter is the write side of a websocket connection.
type JSONWriter interface {
	WriteJSON(v any) error
	Close() error
}

var _ JSONWriter = (*websocket.Conn)(nil)

type Client struct {
	id     string
	conn   JSONWriter
	send   chan realtimeTypes.ServerEnvelope
	mu     sync.RWMutex
	topics map[string]struct{}
	closed bool
}

// NewClient wraps conn with a fresh connection id.
func NewClient(conn JSONWriter) *Client {
	return &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan realtimeTypes.ServerEnvelope, outboundBufferSize),
		topics: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Queue reports false when the buffer is full or the client is closed.
func (c *Client) Queue(msg realtimeTypes.ServerEnvelope) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) WriteLoop() {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
	close(c.send)
}

func (c *Client) Subscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		c.topics[topic] = struct{}{}
	}
}

func (c *Client) Unsubscribe(topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, topic := range topics {
		delete(c.topics, topic)
	}
}

func (c *Client) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}
