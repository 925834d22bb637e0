package stream

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn is the slice of *websocket.Conn the hub uses. Tests substitute
// in-memory fakes so lifecycle behavior is checked without sockets.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// inboundMsg is a client frame. Only four types are understood; anything
// else gets an error frame back.
type inboundMsg struct {
	Type      string `json:"type"`
	Topic     string `json:"topic,omitempty"`
	Key       string `json:"key,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
}

type outboundMsg struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// clientConn owns one websocket. All writes go through the send channel
// so only the write pump touches the socket.
type clientConn struct {
	id   string
	ws   wsConn
	send chan outboundMsg

	mu         sync.Mutex
	subs       map[string]struct{}
	authed     bool
	sendClosed bool

	closeOnce sync.Once
	// closed is the connection's shutdown ack: closed exactly once when
	// both pumps have exited and the socket is gone.
	closed chan struct{}
}

func newClientConn(id string, ws wsConn) *clientConn {
	return &clientConn{
		id:     id,
		ws:     ws,
		send:   make(chan outboundMsg, 32),
		subs:   make(map[string]struct{}),
		closed: make(chan struct{}),
	}
}

// enqueue is non-blocking: a slow consumer loses frames rather than
// stalling the hub. The mutex serializes against closeSend so a late
// frame never hits a closed channel.
func (c *clientConn) enqueue(msg outboundMsg) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend ends the write pump exactly once.
func (c *clientConn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

func (c *clientConn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}

func (c *clientConn) subscribe(topic string, max int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return true
	}
	if len(c.subs) >= max {
		return false
	}
	c.subs[topic] = struct{}{}
	return true
}

func (c *clientConn) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, topic)
}

func (c *clientConn) isAuthed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authed
}

func (c *clientConn) setAuthed() {
	c.mu.Lock()
	c.authed = true
	c.mu.Unlock()
}

// terminate closes the socket and signals the ack channel. Safe to call
// from any goroutine, any number of times.
func (c *clientConn) terminate() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
		close(c.closed)
	})
}

// writePump drains the send channel onto the socket until the channel is
// closed or a write fails.
func (c *clientConn) writePump() {
	for msg := range c.send {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Channel closed: polite close frame, then the socket goes away.
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
		time.Now().Add(time.Second))
}
