package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/facepin/kiosk/internal/protocol"
)

// startBackend runs a websocket endpoint and hands each server-side
// connection to the test.
func startBackend(t *testing.T) (*httptest.Server, string, <-chan *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	return srv, "ws" + strings.TrimPrefix(srv.URL, "http"), connCh
}

func acceptConn(t *testing.T, connCh <-chan *websocket.Conn) *websocket.Conn {
	t.Helper()
	select {
	case c := <-connCh:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side conn")
		return nil
	}
}

func connect(t *testing.T, ch *Channel) ConnectedMsg {
	t.Helper()
	msg := ch.Connect(context.Background())()
	cm, ok := msg.(ConnectedMsg)
	if !ok {
		t.Fatalf("Connect() = %T %+v, want ConnectedMsg", msg, msg)
	}
	return cm
}

func TestChannelSendAndReceive(t *testing.T) {
	_, url, connCh := startBackend(t)
	ch := NewChannel(url, 0, 0, nil)
	defer ch.Disconnect()

	cm := connect(t, ch)
	if cm.Gen != 1 || !ch.Connected() {
		t.Fatalf("gen %d connected %v", cm.Gen, ch.Connected())
	}
	server := acceptConn(t, connCh)

	if err := ch.Send(protocol.EventStartUserLogin, protocol.StartUserLogin{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	server.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("server read: %v", err)
	}
	if got := string(data); got != `{"type":"start_user_login","payload":{}}` {
		t.Errorf("wire = %s", got)
	}

	// Unknown events are skipped; the next known one is delivered.
	server.WriteMessage(websocket.TextMessage, []byte(`{"type":"telemetry","payload":{}}`))
	server.WriteMessage(websocket.TextMessage, []byte(`not json`))
	server.WriteMessage(websocket.TextMessage, []byte(`{"type":"login_status","payload":{"status":"pin_entry","message":"hi","user":"alice","pin_so_far":"*","current_digit":"4"}}`))

	msg := ch.ReadLoop()()
	ev, ok := msg.(EventMsg)
	if !ok {
		t.Fatalf("ReadLoop() = %T %+v", msg, msg)
	}
	if ev.Gen != cm.Gen || ev.Type != protocol.EventLoginStatus {
		t.Errorf("event gen %d type %s", ev.Gen, ev.Type)
	}
	st, ok := ev.Payload.(protocol.LoginStatus)
	if !ok {
		t.Fatalf("payload %T", ev.Payload)
	}
	if st.User != "alice" || protocol.DigitOf(st.CurrentDigit) != 4 {
		t.Errorf("payload = %+v", st)
	}
}

func TestChannelDisconnectDetected(t *testing.T) {
	_, url, connCh := startBackend(t)
	ch := NewChannel(url, 0, 0, nil)
	cm := connect(t, ch)
	server := acceptConn(t, connCh)

	server.Close()

	msg := ch.ReadLoop()()
	dm, ok := msg.(DisconnectedMsg)
	if !ok {
		t.Fatalf("ReadLoop() = %T", msg)
	}
	if dm.Gen != cm.Gen {
		t.Errorf("gen = %d, want %d", dm.Gen, cm.Gen)
	}
	if ch.Connected() {
		t.Error("still connected after drop")
	}
	if err := ch.Send(protocol.EventFrameData, "data:,"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after drop = %v, want ErrNotConnected", err)
	}
}

func TestChannelReconnectBumpsGen(t *testing.T) {
	_, url, connCh := startBackend(t)
	ch := NewChannel(url, 0, 0, nil)
	defer ch.Disconnect()

	first := connect(t, ch)
	acceptConn(t, connCh)
	second := connect(t, ch)
	acceptConn(t, connCh)

	if second.Gen != first.Gen+1 {
		t.Errorf("gens %d then %d", first.Gen, second.Gen)
	}
	if ch.Gen() != second.Gen {
		t.Errorf("Gen() = %d", ch.Gen())
	}
}

func TestChannelDialFailureBacksOff(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ch := NewChannel(url, 100*time.Millisecond, 300*time.Millisecond, nil)
	var delays []time.Duration
	for i := 0; i < 4; i++ {
		msg := ch.Connect(context.Background())()
		em, ok := msg.(ConnectErrorMsg)
		if !ok {
			t.Fatalf("attempt %d: %T", i, msg)
		}
		delays = append(delays, em.RetryIn)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i])
		}
	}
	if ch.Connected() {
		t.Error("connected after failures")
	}
}

func TestChannelDisconnectIdempotent(t *testing.T) {
	_, url, connCh := startBackend(t)
	ch := NewChannel(url, 0, 0, nil)
	connect(t, ch)
	acceptConn(t, connCh)

	ch.Disconnect()
	ch.Disconnect()
	if ch.Connected() {
		t.Error("connected after Disconnect")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 30 * time.Second},
		{50, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(time.Second, 30*time.Second, tt.failures); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

// flakyBackend upgrades every connection, optionally writes one event, and
// hangs up.
func flakyBackend(t *testing.T, greeting string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if greeting != "" {
			c.WriteMessage(websocket.TextMessage, []byte(greeting))
		}
		c.Close()
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// cycle connects once and reads until the connection drops.
func cycle(t *testing.T, ch *Channel) DisconnectedMsg {
	t.Helper()
	connect(t, ch)
	for i := 0; i < 5; i++ {
		switch msg := ch.ReadLoop()().(type) {
		case DisconnectedMsg:
			return msg
		case EventMsg:
			continue
		default:
			t.Fatalf("ReadLoop() = %T", msg)
		}
	}
	t.Fatal("connection never dropped")
	return DisconnectedMsg{}
}

func TestChannelDroppedConnectionsBackOff(t *testing.T) {
	url := flakyBackend(t, "")
	ch := NewChannel(url, 100*time.Millisecond, 400*time.Millisecond, nil)
	defer ch.Disconnect()

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 400 * time.Millisecond}
	for i, w := range want {
		if got := cycle(t, ch).RetryIn; got != w {
			t.Errorf("cycle %d: RetryIn = %v, want %v", i, got, w)
		}
	}
}

func TestChannelEventMarksConnectionHealthy(t *testing.T) {
	url := flakyBackend(t, `{"type":"admin_capture_ready","payload":{}}`)
	ch := NewChannel(url, 100*time.Millisecond, 400*time.Millisecond, nil)
	defer ch.Disconnect()

	for i := 0; i < 3; i++ {
		if got := cycle(t, ch).RetryIn; got != 100*time.Millisecond {
			t.Errorf("cycle %d: RetryIn = %v, want the base delay", i, got)
		}
	}
}
