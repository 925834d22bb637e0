package stream

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/exchange"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/logger"
	"github.com/Drix10/hypothesis-arena-sub001/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const authPath = "/ws/auth"

// Config bounds each connection. Zero values fall back to the defaults
// the exchange documents.
type Config struct {
	MaxSubscriptions int
	MaxFrameBytes    int64
	PingInterval     time.Duration
	PongWait         time.Duration
	ShutdownWait     time.Duration
}

func (c *Config) fill() {
	if c.MaxSubscriptions <= 0 {
		c.MaxSubscriptions = 50
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 64 * 1024
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 15 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 45 * time.Second
	}
	if c.ShutdownWait <= 0 {
		c.ShutdownWait = 5 * time.Second
	}
}

// Hub manages every live stream connection: registration, subscription
// bookkeeping, heartbeat, broadcast fan-out and ordered shutdown.
type Hub struct {
	cfg   Config
	creds exchange.Credentials

	mu       sync.Mutex
	conns    map[string]*clientConn
	draining bool

	stopHeartbeat chan struct{}
	heartbeatOnce sync.Once
}

func NewHub(cfg Config, creds exchange.Credentials) *Hub {
	cfg.fill()
	h := &Hub{
		cfg:           cfg,
		creds:         creds,
		conns:         make(map[string]*clientConn),
		stopHeartbeat: make(chan struct{}),
	}
	go h.heartbeatLoop()
	return h
}

// HandleConn adopts an upgraded websocket and blocks until the connection
// ends. The caller owns the HTTP handler; the hub owns everything after
// the upgrade.
func (h *Hub) HandleConn(ws wsConn) {
	conn := newClientConn(uuid.NewString(), ws)

	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[conn.id] = conn
	h.mu.Unlock()
	metrics.StreamConnections.Inc()

	ws.SetReadLimit(h.cfg.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	go conn.writePump()
	conn.enqueue(outboundMsg{Type: "connected", Payload: map[string]string{"connection_id": conn.id}})

	h.readLoop(conn)

	h.deregister(conn)
}

func (h *Hub) readLoop(conn *clientConn) {
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.enqueue(outboundMsg{Type: "error", Error: "malformed frame"})
			continue
		}
		h.dispatch(conn, msg)
	}
}

func (h *Hub) dispatch(conn *clientConn, msg inboundMsg) {
	switch msg.Type {
	case "ping":
		conn.enqueue(outboundMsg{Type: "pong"})
	case "auth":
		h.handleAuth(conn, msg)
	case "subscribe":
		if msg.Topic == "" {
			conn.enqueue(outboundMsg{Type: "error", Error: "missing topic"})
			return
		}
		if !conn.subscribe(msg.Topic, h.cfg.MaxSubscriptions) {
			conn.enqueue(outboundMsg{Type: "error", Topic: msg.Topic,
				Error: "subscription limit reached (" + strconv.Itoa(h.cfg.MaxSubscriptions) + ")"})
			return
		}
		conn.enqueue(outboundMsg{Type: "subscribed", Topic: msg.Topic})
	case "unsubscribe":
		conn.unsubscribe(msg.Topic)
		conn.enqueue(outboundMsg{Type: "unsubscribed", Topic: msg.Topic})
	default:
		conn.enqueue(outboundMsg{Type: "error", Error: "unknown message type"})
	}
}

// handleAuth verifies the same HMAC scheme the REST surface uses, signed
// over the auth path. The timestamp must be within the clock tolerance.
func (h *Hub) handleAuth(conn *clientConn, msg inboundMsg) {
	if h.creds.Empty() || msg.Key != h.creds.Key {
		conn.enqueue(outboundMsg{Type: "error", Error: "invalid credentials"})
		return
	}
	skew := time.Since(time.UnixMilli(msg.Timestamp))
	if skew < 0 {
		skew = -skew
	}
	if skew > 30*time.Second {
		conn.enqueue(outboundMsg{Type: "error", Error: "auth timestamp out of range"})
		return
	}
	want := exchange.Sign(h.creds.Secret, msg.Timestamp, "GET", authPath, "", "")
	if msg.Sign != want {
		conn.enqueue(outboundMsg{Type: "error", Error: "invalid signature"})
		return
	}
	conn.setAuthed()
	conn.enqueue(outboundMsg{Type: "auth_success"})
}

// Broadcast fans a payload out to every subscriber of the topic.
// Best-effort: slow consumers drop the frame, nobody blocks the caller.
func (h *Hub) Broadcast(topic string, payload any) {
	h.mu.Lock()
	targets := make([]*clientConn, 0, len(h.conns))
	for _, c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	msg := outboundMsg{Type: "message", Topic: topic, Payload: payload}
	for _, c := range targets {
		if c.subscribed(topic) {
			if !c.enqueue(msg) {
				logger.Debug("dropped frame for slow consumer", "conn", c.id, "topic", topic)
			}
		}
	}
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopHeartbeat:
			return
		case <-ticker.C:
			h.mu.Lock()
			conns := make([]*clientConn, 0, len(h.conns))
			for _, c := range h.conns {
				conns = append(conns, c)
			}
			h.mu.Unlock()
			deadline := time.Now().Add(time.Second)
			for _, c := range conns {
				_ = c.ws.WriteControl(websocket.PingMessage, nil, deadline)
			}
		}
	}
}

// ConnCount reports live connections.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown drains the hub in strict order: heartbeat stops first so no
// new pings race the close, every connection is asked to close, then we
// wait (bounded) for each close ack and force-terminate stragglers.
// Deregistration happens only after termination, so a connection is never
// half-dead in the registry.
func (h *Hub) Shutdown() {
	h.heartbeatOnce.Do(func() { close(h.stopHeartbeat) })

	h.mu.Lock()
	h.draining = true
	conns := make([]*clientConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	// Request close: closing send makes the write pump emit a close frame
	// and exit; the peer (or read deadline) then ends the read loop.
	for _, c := range conns {
		c.closeSend()
	}

	deadlineAt := time.Now().Add(h.cfg.ShutdownWait)
	forced := 0
	for _, c := range conns {
		remaining := time.Until(deadlineAt)
		if remaining <= 0 {
			c.terminate()
			forced++
			continue
		}
		select {
		case <-c.closed:
		case <-time.After(remaining):
			c.terminate()
			forced++
		}
	}
	if forced > 0 {
		logger.Warn("force-terminated stream connections past drain window", "count", forced)
	}

	h.mu.Lock()
	for _, c := range conns {
		delete(h.conns, c.id)
		metrics.StreamConnections.Dec()
	}
	h.mu.Unlock()
	logger.Info("stream hub drained", "connections", len(conns))
}

func (h *Hub) deregister(conn *clientConn) {
	h.mu.Lock()
	draining := h.draining
	if !draining {
		delete(h.conns, conn.id)
	}
	h.mu.Unlock()

	if draining {
		// Close ack toward Shutdown; registry cleanup stays with Shutdown.
		conn.terminate()
		return
	}
	metrics.StreamConnections.Dec()
	conn.closeSend()
	conn.terminate()
}
