package stream

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Drix10/hypothesis-arena-sub001/internal/exchange"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory wsConn. politeClose controls whether the peer
// closes its side when the server sends a close frame.
type fakeConn struct {
	politeClose bool

	inbound chan []byte

	mu        sync.Mutex
	written   [][]byte
	readLimit int64
	closed    bool

	closeOnce sync.Once
	done      chan struct{}
}

func newFakeConn(polite bool) *fakeConn {
	return &fakeConn{
		politeClose: polite,
		inbound:     make(chan []byte, 16),
		done:        make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-f.inbound:
		return websocket.TextMessage, msg, nil
	case <-f.done:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("connection closed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeConn) WriteControl(messageType int, _ []byte, _ time.Time) error {
	if messageType == websocket.CloseMessage && f.politeClose {
		f.Close()
	}
	return nil
}

func (f *fakeConn) SetReadLimit(limit int64) {
	f.mu.Lock()
	f.readLimit = limit
	f.mu.Unlock()
}

func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		close(f.done)
	})
	return nil
}

func (f *fakeConn) frames(t *testing.T) []outboundMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]outboundMsg, 0, len(f.written))
	for _, raw := range f.written {
		var msg outboundMsg
		require.NoError(t, json.Unmarshal(raw, &msg))
		out = append(out, msg)
	}
	return out
}

func (f *fakeConn) hasFrame(t *testing.T, msgType string) bool {
	for _, msg := range f.frames(t) {
		if msg.Type == msgType {
			return true
		}
	}
	return false
}

func (f *fakeConn) send(t *testing.T, msg inboundMsg) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	f.inbound <- data
}

func testHub(cfg Config) *Hub {
	if cfg.ShutdownWait == 0 {
		cfg.ShutdownWait = 200 * time.Millisecond
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = time.Hour // keep heartbeat out of the way
	}
	return NewHub(cfg, exchange.Credentials{Key: "key", Secret: "secret", Passphrase: "pass"})
}

func TestHandleConnSendsConnectedAndAppliesFrameLimit(t *testing.T) {
	h := testHub(Config{MaxFrameBytes: 1234})
	conn := newFakeConn(true)

	go h.HandleConn(conn)

	require.Eventually(t, func() bool { return conn.hasFrame(t, "connected") },
		time.Second, 5*time.Millisecond)
	conn.mu.Lock()
	limit := conn.readLimit
	conn.mu.Unlock()
	assert.Equal(t, int64(1234), limit)

	conn.Close()
}

func TestSubscribeUnsubscribeAndPing(t *testing.T) {
	h := testHub(Config{})
	conn := newFakeConn(true)
	go h.HandleConn(conn)

	conn.send(t, inboundMsg{Type: "subscribe", Topic: "decisions:BTCUSDT"})
	conn.send(t, inboundMsg{Type: "ping"})
	conn.send(t, inboundMsg{Type: "unsubscribe", Topic: "decisions:BTCUSDT"})

	require.Eventually(t, func() bool {
		return conn.hasFrame(t, "subscribed") && conn.hasFrame(t, "pong") && conn.hasFrame(t, "unsubscribed")
	}, time.Second, 5*time.Millisecond)

	conn.Close()
}

func TestSubscriptionLimitEnforced(t *testing.T) {
	h := testHub(Config{MaxSubscriptions: 2})
	conn := newFakeConn(true)
	go h.HandleConn(conn)

	conn.send(t, inboundMsg{Type: "subscribe", Topic: "a"})
	conn.send(t, inboundMsg{Type: "subscribe", Topic: "b"})
	conn.send(t, inboundMsg{Type: "subscribe", Topic: "c"})

	require.Eventually(t, func() bool { return conn.hasFrame(t, "error") },
		time.Second, 5*time.Millisecond)

	subscribed := 0
	for _, msg := range conn.frames(t) {
		if msg.Type == "subscribed" {
			subscribed++
		}
	}
	assert.Equal(t, 2, subscribed)

	conn.Close()
}

func TestBroadcastReachesOnlySubscribers(t *testing.T) {
	h := testHub(Config{})
	sub := newFakeConn(true)
	other := newFakeConn(true)
	go h.HandleConn(sub)
	go h.HandleConn(other)

	sub.send(t, inboundMsg{Type: "subscribe", Topic: "decisions:ETHUSDT"})
	require.Eventually(t, func() bool { return sub.hasFrame(t, "subscribed") },
		time.Second, 5*time.Millisecond)

	h.Broadcast("decisions:ETHUSDT", map[string]string{"outcome": "traded"})

	require.Eventually(t, func() bool { return sub.hasFrame(t, "message") },
		time.Second, 5*time.Millisecond)
	assert.False(t, other.hasFrame(t, "message"), "non-subscribers must not receive the frame")

	sub.Close()
	other.Close()
}

func TestAuthHMACRoundTrip(t *testing.T) {
	h := testHub(Config{})
	conn := newFakeConn(true)
	go h.HandleConn(conn)

	ts := time.Now().UnixMilli()
	conn.send(t, inboundMsg{
		Type:      "auth",
		Key:       "key",
		Timestamp: ts,
		Sign:      exchange.Sign("secret", ts, "GET", "/ws/auth", "", ""),
	})

	require.Eventually(t, func() bool { return conn.hasFrame(t, "auth_success") },
		time.Second, 5*time.Millisecond)

	conn.Close()
}

func TestAuthRejectsBadSignatureAndStaleTimestamp(t *testing.T) {
	h := testHub(Config{})
	conn := newFakeConn(true)
	go h.HandleConn(conn)

	conn.send(t, inboundMsg{Type: "auth", Key: "key", Timestamp: time.Now().UnixMilli(), Sign: "bogus"})
	stale := time.Now().Add(-2 * time.Minute).UnixMilli()
	conn.send(t, inboundMsg{Type: "auth", Key: "key", Timestamp: stale,
		Sign: exchange.Sign("secret", stale, "GET", "/ws/auth", "", "")})

	require.Eventually(t, func() bool {
		errs := 0
		for _, msg := range conn.frames(t) {
			if msg.Type == "error" {
				errs++
			}
		}
		return errs == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, conn.hasFrame(t, "auth_success"))

	conn.Close()
}

func TestShutdownDrainsManyPoliteConnections(t *testing.T) {
	h := testHub(Config{ShutdownWait: 2 * time.Second})

	conns := make([]*fakeConn, 100)
	for i := range conns {
		conns[i] = newFakeConn(true)
		go h.HandleConn(conns[i])
	}
	require.Eventually(t, func() bool { return h.ConnCount() == 100 },
		time.Second, 5*time.Millisecond)

	start := time.Now()
	h.Shutdown()

	assert.Less(t, time.Since(start), 2*time.Second, "polite peers ack well before the drain window")
	assert.Equal(t, 0, h.ConnCount())
	for _, c := range conns {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		assert.True(t, closed)
	}
}

func TestShutdownForceTerminatesStragglers(t *testing.T) {
	h := testHub(Config{ShutdownWait: 100 * time.Millisecond})

	conns := make([]*fakeConn, 5)
	for i := range conns {
		conns[i] = newFakeConn(false) // never acks the close frame
		go h.HandleConn(conns[i])
	}
	require.Eventually(t, func() bool { return h.ConnCount() == 5 },
		time.Second, 5*time.Millisecond)

	h.Shutdown()

	assert.Equal(t, 0, h.ConnCount())
	for _, c := range conns {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		assert.True(t, closed, "stragglers are force-terminated, never leaked")
	}
}

func TestRegistrationRefusedWhileDraining(t *testing.T) {
	h := testHub(Config{ShutdownWait: 50 * time.Millisecond})
	h.Shutdown()

	late := newFakeConn(true)
	h.HandleConn(late)

	late.mu.Lock()
	closed := late.closed
	late.mu.Unlock()
	assert.True(t, closed)
	assert.Equal(t, 0, h.ConnCount())
}

func TestMalformedFrameGetsErrorResponse(t *testing.T) {
	h := testHub(Config{})
	conn := newFakeConn(true)
	go h.HandleConn(conn)

	conn.inbound <- []byte("{not json")

	require.Eventually(t, func() bool { return conn.hasFrame(t, "error") },
		time.Second, 5*time.Millisecond)

	conn.Close()
}
