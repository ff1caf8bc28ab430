// Package syncclient keeps one live session against a remote document
// authority over a WebSocket. It bootstraps content with a get request on
// every open, forwards local edits, delivers remote snapshots and pushes,
// and reconnects after a fixed delay until Disconnect is called.
package syncclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	realtimeTypes "github.com/nikhildhole/mermaid-visualizer/pkg/realtime"
)

const (
	DefaultReconnectDelay   = 3000 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
)

// ContentFunc receives the full document content carried by a current or
// code_updated frame.
type ContentFunc func(content string)

// ConnectionFunc receives true when a connection opens and false when it
// closes or fails to open.
type ConnectionFunc func(connected bool)

type Config struct {
	URL string

	// ReconnectDelay is the fixed wait after an unintended close.
	ReconnectDelay time.Duration
	// Backoff overrides ReconnectDelay when set.
	Backoff backoff.BackOff

	HandshakeTimeout time.Duration
	Dial             DialFunc
	Logger           *slog.Logger
}

type Client struct {
	url              string
	dial             DialFunc
	backoff          backoff.BackOff
	handshakeTimeout time.Duration
	logger           *slog.Logger

	mu           sync.Mutex
	m            machine
	conn         *wsConn
	dialCancel   context.CancelFunc
	timer        *time.Timer
	onContent    ContentFunc
	onConnection ConnectionFunc
	sessionID    string

	// callbacks waiting for delivery, in the order the machine produced them
	cbMu      sync.Mutex
	cbQueue   []func()
	cbRunning bool
}

func New(cfg Config) *Client {
	c := &Client{
		url:              cfg.URL,
		dial:             cfg.Dial,
		backoff:          cfg.Backoff,
		handshakeTimeout: cfg.HandshakeTimeout,
		logger:           cfg.Logger,
	}
	if c.dial == nil {
		c.dial = DialWebSocket
	}
	if c.backoff == nil {
		delay := cfg.ReconnectDelay
		if delay <= 0 {
			delay = DefaultReconnectDelay
		}
		c.backoff = backoff.NewConstantBackOff(delay)
	}
	if c.handshakeTimeout <= 0 {
		c.handshakeTimeout = DefaultHandshakeTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "syncclient", "url", c.url)
	return c
}

// Connect starts the session. Calling it again while connected or
// connecting only swaps the callbacks and session id.
func (c *Client) Connect(onContent ContentFunc, onConnection ConnectionFunc, sessionID string) {
	c.mu.Lock()
	c.onContent = onContent
	c.onConnection = onConnection
	c.sessionID = sessionID
	c.mu.Unlock()

	c.dispatch(event{kind: eventConnectAttempted}, nil)
}

// SendUpdate forwards content to the authority. It is dropped unless the
// client is connected; the next get on reconnect resynchronises.
func (c *Client) SendUpdate(content string) {
	c.mu.Lock()
	if c.m.status != StatusConnected || c.conn == nil {
		status := c.m.status
		c.mu.Unlock()
		c.logger.Debug("dropping update while not connected", "status", status.String())
		return
	}
	conn, sessionID := c.conn, c.sessionID
	c.mu.Unlock()

	c.send(conn, realtimeTypes.NewUpdate(sessionID, content))
}

// Disconnect cancels any pending reconnect and closes the active
// connection. It is safe to call in any state.
func (c *Client) Disconnect() {
	c.dispatch(event{kind: eventDisconnectRequested}, nil)
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m.status
}

func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

// dispatch runs one machine transition. Resource actions run under the lock.
// Callbacks are queued under the lock and delivered after it is released;
// writes follow them.
func (c *Client) dispatch(ev event, conn *wsConn) {
	c.mu.Lock()
	acts := c.m.handle(ev)

	var callbacks, after []func()
	var startReader func()
	for _, a := range acts {
		switch a.kind {
		case actionDial:
			c.startDial(a.attempt)
		case actionAdopt:
			c.conn = conn
			c.dialCancel = nil
			c.backoff.Reset()
			attempt := a.attempt
			startReader = func() { go c.readLoop(attempt, conn) }
		case actionAbandon:
			if conn != nil {
				conn.Close()
			}
		case actionCloseActive:
			c.closeActive()
		case actionScheduleReconnect:
			c.scheduleReconnect(a.timer)
		case actionCancelReconnect:
			c.stopTimer()
		case actionSendGet:
			target, sessionID := c.conn, c.sessionID
			after = append(after, func() { c.send(target, realtimeTypes.NewGet(sessionID)) })
		case actionNotifyConnection:
			fn, connected := c.onConnection, a.connected
			callbacks = append(callbacks, func() {
				if fn != nil {
					fn(connected)
				}
			})
		case actionDeliverContent:
			fn, content := c.onContent, a.text
			callbacks = append(callbacks, func() {
				if fn != nil {
					fn(content)
				}
			})
		case actionAcknowledge:
			c.logger.Debug("update acknowledged", "message", a.text)
		}
	}
	c.enqueueCallbacks(callbacks)
	c.mu.Unlock()

	c.runCallbacks()
	for _, fn := range after {
		fn()
	}
	if startReader != nil {
		startReader()
	}
}

// enqueueCallbacks must be called with c.mu held so the queue follows the
// order of machine transitions.
func (c *Client) enqueueCallbacks(fns []func()) {
	if len(fns) == 0 {
		return
	}
	c.cbMu.Lock()
	c.cbQueue = append(c.cbQueue, fns...)
	c.cbMu.Unlock()
}

// runCallbacks drains the queue unless another goroutine already is. Only one
// callback runs at a time. A callback may call back into the Client; what it
// triggers is delivered after it returns.
func (c *Client) runCallbacks() {
	c.cbMu.Lock()
	if c.cbRunning {
		c.cbMu.Unlock()
		return
	}
	c.cbRunning = true
	for len(c.cbQueue) > 0 {
		fn := c.cbQueue[0]
		c.cbQueue[0] = nil
		c.cbQueue = c.cbQueue[1:]
		c.cbMu.Unlock()
		fn()
		c.cbMu.Lock()
	}
	c.cbRunning = false
	c.cbMu.Unlock()
}

func (c *Client) startDial(attempt uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), c.handshakeTimeout)
	c.dialCancel = cancel
	c.logger.Debug("connecting", "attempt", attempt)

	go func() {
		defer cancel()
		raw, err := c.dial(ctx, c.url)
		if err != nil {
			c.logger.Info("connection failed", "attempt", attempt, "error", err)
			c.dispatch(event{kind: eventClosed, attempt: attempt}, nil)
			return
		}
		c.logger.Info("connected", "attempt", attempt)
		c.dispatch(event{kind: eventOpened, attempt: attempt}, newWSConn(raw))
	}()
}

func (c *Client) readLoop(attempt uint64, conn *wsConn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Info("connection closed", "attempt", attempt, "error", err)
			conn.Close()
			c.dispatch(event{kind: eventClosed, attempt: attempt}, nil)
			return
		}

		var msg realtimeTypes.ServerEnvelope
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.logger.Warn("dropping malformed frame", "attempt", attempt, "error", err, "size", len(data))
			continue
		}
		c.dispatch(event{kind: eventMessageReceived, attempt: attempt, msg: msg}, nil)
	}
}

func (c *Client) send(conn *wsConn, msg realtimeTypes.ClientEnvelope) {
	if conn == nil {
		return
	}
	if err := conn.Send(msg); err != nil {
		// The read loop sees the broken socket and drives the reconnect.
		c.logger.Warn("send failed", "type", string(msg.Type), "error", err)
	}
}

func (c *Client) closeActive() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) scheduleReconnect(timer uint64) {
	c.stopTimer()
	delay := c.backoff.NextBackOff()
	if delay == backoff.Stop {
		c.logger.Info("reconnect policy exhausted")
		return
	}
	c.logger.Info("reconnect scheduled", "delay", delay)
	c.timer = time.AfterFunc(delay, func() {
		c.dispatch(event{kind: eventReconnectDue, timer: timer}, nil)
	})
}

func (c *Client) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
