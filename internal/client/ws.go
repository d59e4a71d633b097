// Package client talks to the kiosk backend: the duplex event channel,
// the enrollment request, and redirect pages.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/facepin/kiosk/internal/protocol"
)

const (
	DefaultReconnectBase = 1 * time.Second
	DefaultReconnectMax  = 30 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

// ErrNotConnected is returned by Send when no connection is open.
var ErrNotConnected = errors.New("channel not connected")

// Channel is the duplex connection to the recognition backend. It holds at
// most one connection; every connect replaces the previous one and bumps
// the generation, so messages from an old connection can be told apart.
type Channel struct {
	url  string
	log  *slog.Logger
	base time.Duration
	max  time.Duration

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes (ping, events, close)
	conn     *websocket.Conn
	gen      uint64
	pingStop context.CancelFunc

	// failures counts dial errors and unstable connections since the last
	// healthy one. A connection is healthy once it delivers an event or
	// outlives the longest backoff.
	failures    int
	connectedAt time.Time
}

// NewChannel creates a channel for the given ws:// or wss:// URL. Zero
// backoff values fall back to the defaults.
func NewChannel(url string, base, maxDelay time.Duration, log *slog.Logger) *Channel {
	if base <= 0 {
		base = DefaultReconnectBase
	}
	if maxDelay < base {
		maxDelay = max(DefaultReconnectMax, base)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Channel{url: url, base: base, max: maxDelay, log: log}
}

// --- Bubble Tea messages ---

// ConnectedMsg is sent when a connection opens.
type ConnectedMsg struct{ Gen uint64 }

// ConnectErrorMsg is sent when a connect attempt fails. The caller should
// try again after RetryIn.
type ConnectErrorMsg struct {
	Err     error
	RetryIn time.Duration
}

// DisconnectedMsg is sent when the connection of generation Gen drops. The
// caller should reconnect after RetryIn.
type DisconnectedMsg struct {
	Gen     uint64
	Err     error
	RetryIn time.Duration
}

// EventMsg delivers one decoded backend push.
type EventMsg struct {
	Gen     uint64
	Type    protocol.EventType
	Payload any
	At      time.Time
}

// URL returns the channel endpoint.
func (c *Channel) URL() string { return c.url }

// Connect returns a command making one connection attempt. Any previous
// connection is closed first.
func (c *Channel) Connect(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		c.Disconnect()

		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.mu.Lock()
			c.failures++
			delay := backoff(c.base, c.max, c.failures)
			c.mu.Unlock()
			c.log.Warn("channel dial failed", "url", c.url, "err", err, "retry_in", delay)
			return ConnectErrorMsg{Err: fmt.Errorf("dial %s: %w", c.url, err), RetryIn: delay}
		}

		c.mu.Lock()
		pingCtx, pingStop := context.WithCancel(ctx)
		c.conn = conn
		c.gen++
		c.connectedAt = time.Now()
		c.pingStop = pingStop
		gen := c.gen
		c.mu.Unlock()

		go c.pingLoop(pingCtx, conn)

		c.log.Info("channel connected", "url", c.url, "gen", gen)
		return ConnectedMsg{Gen: gen}
	}
}

// backoff returns base doubled for each failure after the first, capped at max.
func backoff(base, maxDelay time.Duration, failures int) time.Duration {
	d := base
	for i := 1; i < failures && d < maxDelay; i++ {
		d *= 2
	}
	return min(d, maxDelay)
}

// ReadLoop returns a command that reads until the next decodable event.
// It should be re-issued after every EventMsg.
func (c *Channel) ReadLoop() tea.Cmd {
	return func() tea.Msg {
		c.mu.Lock()
		conn, gen := c.conn, c.gen
		c.mu.Unlock()
		if conn == nil {
			return DisconnectedMsg{Gen: gen, Err: ErrNotConnected, RetryIn: c.base}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
		conn.SetReadDeadline(time.Now().Add(pongTimeout))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return DisconnectedMsg{Gen: gen, Err: err, RetryIn: c.drop(conn)}
			}

			env, payload, err := protocol.Decode(data)
			if errors.Is(err, protocol.ErrUnknownEvent) {
				c.log.Debug("ignoring event", "type", env.Type)
				continue
			}
			if err != nil {
				c.log.Warn("undecodable event", "err", err, "size", len(data))
				continue
			}
			c.mu.Lock()
			if c.conn == conn {
				c.failures = 0
			}
			c.mu.Unlock()
			return EventMsg{Gen: gen, Type: env.Type, Payload: payload, At: time.Now()}
		}
	}
}

// drop forgets conn if it is still current, closes it, and returns how
// long to wait before reconnecting. A connection that dropped before it
// became healthy counts as a failure.
func (c *Channel) drop(conn *websocket.Conn) time.Duration {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		if c.pingStop != nil {
			c.pingStop()
			c.pingStop = nil
		}
		if time.Since(c.connectedAt) >= c.max {
			c.failures = 0
		}
		c.failures++
	}
	delay := backoff(c.base, c.max, max(c.failures, 1))
	c.mu.Unlock()
	conn.Close()
	return delay
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *Channel) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send writes one event. It never blocks waiting for a connection; while
// disconnected it returns ErrNotConnected.
func (c *Channel) Send(t protocol.EventType, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.log.Debug("send while disconnected", "type", t)
		return ErrNotConnected
	}

	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", t, err)
	}
	return nil
}

// Connected reports whether a connection is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Gen returns the generation of the current (or last) connection.
func (c *Channel) Gen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Disconnect closes the current connection, if any. It is safe to call
// repeatedly.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingStop != nil {
		c.pingStop()
		c.pingStop = nil
	}
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	conn.Close()
}
