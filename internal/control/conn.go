// Package control owns the control-plane WebSocket carrying interview
// protocol messages. Exactly one channel exists per session.
package control

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/openhire/openhire-agent/internal/protocol"
)

// ErrClosed is returned by Connect after the channel has terminally
// closed. A new session gets a new Conn.
var ErrClosed = errors.New("control channel closed")

// Handler receives channel lifecycle callbacks and inbound events.
// Events are delivered in arrival order from a single read loop.
type Handler interface {
	HandleOpen()
	HandleEvent(ev protocol.Event)
	HandleClosed(code int, reason string, err error)
}

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Conn manages the control channel. Send drops the message (reporting
// false) when the channel is not open; nothing is queued for later
// delivery. Close is idempotent.
type Conn struct {
	url     string
	handler Handler
	dialer  *websocket.Dialer

	mu          sync.Mutex
	ws          *websocket.Conn
	state       state
	closeCode   int
	closeReason string
}

func NewConn(url string, handler Handler) *Conn {
	return &Conn{
		url:     url,
		handler: handler,
		dialer:  websocket.DefaultDialer,
	}
}

// Connect opens the channel. Calling it while the channel is connecting
// or open is a no-op; the caller cannot end up with duplicate sockets.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateConnecting, stateOpen:
		c.mu.Unlock()
		return nil
	case stateClosed:
		c.mu.Unlock()
		return ErrClosed
	}
	c.state = stateConnecting
	c.mu.Unlock()

	ws, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.state = stateIdle
		c.mu.Unlock()
		return fmt.Errorf("dial control channel %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.state != stateConnecting {
		// Closed while the dial was in flight.
		c.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	c.ws = ws
	c.state = stateOpen
	c.mu.Unlock()

	c.handler.HandleOpen()
	go c.readLoop(ws)
	return nil
}

// Send writes one outbound message. It reports false, without queuing,
// when the channel is not open or the write fails.
func (c *Conn) Send(msg protocol.ClientMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateOpen || c.ws == nil {
		return false
	}
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("control send %s failed: %v", msg.Type, err)
		return false
	}
	return true
}

// Close shuts the channel down. Repeat calls are no-ops.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	ws := c.ws
	c.state = stateClosed
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	_ = ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return ws.Close()
}

// CloseStatus returns the recorded close code and reason for diagnostic
// display.
func (c *Conn) CloseStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	var readErr error
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		ev, err := protocol.Decode(data)
		if err != nil {
			// Malformed payloads are logged and skipped; they must not
			// take the channel down.
			log.Printf("control: dropping malformed event: %v", err)
			continue
		}
		c.handler.HandleEvent(ev)
	}

	code, reason := websocket.CloseAbnormalClosure, ""
	var closeErr *websocket.CloseError
	if errors.As(readErr, &closeErr) {
		code, reason = closeErr.Code, closeErr.Text
	}

	c.mu.Lock()
	wasClosed := c.state == stateClosed
	c.state = stateClosed
	if c.ws == ws {
		c.ws = nil
	}
	c.closeCode = code
	c.closeReason = reason
	c.mu.Unlock()

	_ = ws.Close()

	switch {
	case wasClosed || closeErr != nil:
		// Deliberate local close or a clean peer close: not a transport
		// error.
		c.handler.HandleClosed(code, reason, nil)
	default:
		c.handler.HandleClosed(code, reason, readErr)
	}
}
