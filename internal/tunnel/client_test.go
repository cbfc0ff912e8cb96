package tunnel

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HookbaseApp/cli/internal/tunnel/protocol"
)

// fakeRelay is a websocket endpoint standing in for the hosted relay.
type fakeRelay struct {
	srv    *httptest.Server
	connCh chan *websocket.Conn
	reject atomic.Int32 // handshake rejection status; 0 accepts
}

func newFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	r := &fakeRelay{connCh: make(chan *websocket.Conn, 4)}
	up := websocket.Upgrader{}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if status := int(r.reject.Load()); status != 0 {
			http.Error(w, "handshake rejected", status)
			return
		}
		ws, err := up.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		r.connCh <- ws
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *fakeRelay) wsURL() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http") + "/tunnel/hbtn-test?token=hbtk_testtoken"
}

func (r *fakeRelay) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-r.connCh:
		return ws
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not receive a connection")
		return nil
	}
}

func (r *fakeRelay) assertNoConnection(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case <-r.connCh:
		t.Fatal("relay received an unexpected connection")
	case <-time.After(within):
	}
}

func relayRead(t *testing.T, ws *websocket.Conn) protocol.Frame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("relay read: %v", err)
	}
	f, err := protocol.Decode(data)
	if err != nil {
		t.Fatalf("relay decode: %v", err)
	}
	return f
}

func relayWrite(t *testing.T, ws *websocket.Conn, f protocol.Frame) {
	t.Helper()
	data, err := protocol.Encode(f)
	if err != nil {
		t.Fatalf("relay encode: %v", err)
	}
	ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("relay write: %v", err)
	}
}

func newTestClient(t *testing.T, relay *fakeRelay, localPort int, hooks Hooks) *Client {
	t.Helper()
	c, err := New(Config{
		TransportURL:   relay.wsURL(),
		LocalPort:      localPort,
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 2 * time.Second,
		DrainTimeout:   500 * time.Millisecond,
		BackoffMin:     10 * time.Millisecond,
		BackoffMax:     50 * time.Millisecond,
		Hooks:          hooks,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func localService(t *testing.T, handler http.HandlerFunc) int {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.Listener.Addr().(*net.TCPAddr).Port
}

// deadPort reserves a port and releases it so nothing listens there.
func deadPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func testContext(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func connectClient(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := testContext(t)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestClient_ForwardsRequestRoundTrip(t *testing.T) {
	port := localService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/hooks/github" {
			t.Errorf("local service got %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("X-Local", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello from local"))
	})

	relay := newFakeRelay(t)
	statCh := make(chan RequestStat, 1)
	c := newTestClient(t, relay, port, Hooks{
		OnRequest: func(stat RequestStat) { statCh <- stat },
	})
	connectClient(t, c)

	ws := relay.accept(t)
	relayWrite(t, ws, protocol.Frame{
		Type:    protocol.TypeRequest,
		ID:      "dlv-roundtrip",
		Method:  http.MethodPost,
		Path:    "/hooks/github",
		Headers: http.Header{"Content-Type": {"application/json"}},
		Body:    []byte(`{"action":"opened"}`),
	})

	resp := relayRead(t, ws)
	if resp.Type != protocol.TypeResponse {
		t.Fatalf("frame type = %q, want response", resp.Type)
	}
	if resp.ID != "dlv-roundtrip" {
		t.Errorf("response id = %q, want dlv-roundtrip", resp.ID)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("response status = %d, want 200", resp.Status)
	}
	if got := string(resp.Body); got != "hello from local" {
		t.Errorf("response body = %q", got)
	}
	if got := resp.Headers.Get("X-Local"); got != "yes" {
		t.Errorf("X-Local header = %q, want yes", got)
	}

	select {
	case stat := <-statCh:
		if stat.Status != http.StatusOK || stat.Path != "/hooks/github" {
			t.Errorf("stat = %+v", stat)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onRequest did not fire")
	}
}

func TestClient_LocalServiceDownSynthesizes502(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay, deadPort(t), Hooks{})
	connectClient(t, c)

	ws := relay.accept(t)
	relayWrite(t, ws, protocol.Frame{
		Type:   protocol.TypeRequest,
		ID:     "dlv-down",
		Method: http.MethodGet,
		Path:   "/health",
	})

	resp := relayRead(t, ws)
	if resp.Status != http.StatusBadGateway {
		t.Fatalf("response status = %d, want 502", resp.Status)
	}
	if len(resp.Body) == 0 {
		t.Error("synthesized 502 has no body")
	}
}

func TestClient_OversizedLocalResponseSynthesizes502(t *testing.T) {
	big := bytes.Repeat([]byte("x"), protocol.MaxBodySize+1024)
	port := localService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(big)
	})

	relay := newFakeRelay(t)
	statCh := make(chan RequestStat, 1)
	c := newTestClient(t, relay, port, Hooks{
		OnRequest: func(stat RequestStat) { statCh <- stat },
	})
	connectClient(t, c)

	ws := relay.accept(t)
	relayWrite(t, ws, protocol.Frame{
		Type:   protocol.TypeRequest,
		ID:     "dlv-oversize",
		Method: http.MethodGet,
		Path:   "/dump",
	})

	// The relay must get an answer for the id on the healthy
	// connection; the oversized body becomes a 502, not a drop.
	resp := relayRead(t, ws)
	if resp.Type != protocol.TypeResponse || resp.ID != "dlv-oversize" {
		t.Fatalf("frame = type %q id %q, want response for dlv-oversize", resp.Type, resp.ID)
	}
	if resp.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.Status)
	}

	select {
	case stat := <-statCh:
		if stat.Status != http.StatusBadGateway {
			t.Errorf("stat status = %d, want 502", stat.Status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("onRequest did not fire")
	}
}

func TestClient_ConnectIdempotent(t *testing.T) {
	relay := newFakeRelay(t)
	connects := make(chan struct{}, 4)
	c := newTestClient(t, relay, deadPort(t), Hooks{
		OnConnect: func() { connects <- struct{}{} },
	})

	connectClient(t, c)
	connectClient(t, c)

	if got := c.State(); got != StateConnected {
		t.Fatalf("state = %v, want connected", got)
	}
	waitSignal(t, connects, "first OnConnect")
	select {
	case <-connects:
		t.Fatal("OnConnect fired twice for one connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_AuthRejectedIsFatal(t *testing.T) {
	relay := newFakeRelay(t)
	relay.reject.Store(http.StatusUnauthorized)

	errCh := make(chan error, 1)
	c := newTestClient(t, relay, deadPort(t), Hooks{
		OnError: func(err error) { errCh <- err },
	})

	ctx, cancel := testContext(t)
	defer cancel()
	err := c.Connect(ctx)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("connect error = %v, want AuthError", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("auth status = %d, want 401", authErr.Status)
	}

	select {
	case hookErr := <-errCh:
		if !errors.As(hookErr, &authErr) {
			t.Errorf("OnError got %v, want AuthError", hookErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnError did not fire")
	}

	if got := c.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
	if err := c.Connect(ctx); !errors.Is(err, ErrClientClosed) {
		t.Errorf("connect on closed client = %v, want ErrClientClosed", err)
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	port := localService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	relay := newFakeRelay(t)
	connects := make(chan struct{}, 4)
	disconnects := make(chan error, 4)
	c := newTestClient(t, relay, port, Hooks{
		OnConnect:    func() { connects <- struct{}{} },
		OnDisconnect: func(err error) { disconnects <- err },
	})
	connectClient(t, c)

	first := relay.accept(t)
	waitSignal(t, connects, "first OnConnect")

	// Kill the transport out from under the client.
	first.Close()

	select {
	case err := <-disconnects:
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			t.Errorf("OnDisconnect got %v, want ConnectionError", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnDisconnect did not fire")
	}

	second := relay.accept(t)
	waitSignal(t, connects, "OnConnect after reconnect")

	if got := c.State(); got != StateConnected {
		t.Fatalf("state after reconnect = %v, want connected", got)
	}
	if got := c.bo.Attempt(); got != 0 {
		t.Errorf("backoff attempt after reconnect = %v, want reset to 0", got)
	}

	// The re-established session must still forward requests.
	relayWrite(t, second, protocol.Frame{
		Type:   protocol.TypeRequest,
		ID:     "dlv-after-reconnect",
		Method: http.MethodGet,
		Path:   "/ping",
	})
	resp := relayRead(t, second)
	if resp.ID != "dlv-after-reconnect" || resp.Status != http.StatusNoContent {
		t.Errorf("post-reconnect response = id %q status %d", resp.ID, resp.Status)
	}

	select {
	case <-disconnects:
		t.Error("OnDisconnect fired more than once for a single drop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_CloseStopsSessionWithoutDisconnectHook(t *testing.T) {
	relay := newFakeRelay(t)
	disconnects := make(chan error, 1)
	c := newTestClient(t, relay, deadPort(t), Hooks{
		OnDisconnect: func(err error) { disconnects <- err },
	})
	connectClient(t, c)

	ws := relay.accept(t)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := c.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}

	// The relay sees a clean close, not an error.
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := ws.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("relay read after close = %v, want normal closure", err)
	}

	select {
	case err := <-disconnects:
		t.Errorf("OnDisconnect fired on Close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	relay.assertNoConnection(t, 200*time.Millisecond)

	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	ctx, cancel := testContext(t)
	defer cancel()
	if err := c.Connect(ctx); !errors.Is(err, ErrClientClosed) {
		t.Errorf("connect after close = %v, want ErrClientClosed", err)
	}
}

func TestClient_AnswersRelayPing(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay, deadPort(t), Hooks{})
	connectClient(t, c)

	ws := relay.accept(t)
	relayWrite(t, ws, protocol.Ping())

	f := relayRead(t, ws)
	if f.Type != protocol.TypePong {
		t.Fatalf("frame type = %q, want pong", f.Type)
	}
}

func TestClient_UnauthorizedCloseCodeIsFatal(t *testing.T) {
	relay := newFakeRelay(t)
	errCh := make(chan error, 1)
	c := newTestClient(t, relay, deadPort(t), Hooks{
		OnError: func(err error) { errCh <- err },
	})
	connectClient(t, c)

	ws := relay.accept(t)
	deadline := time.Now().Add(time.Second)
	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeUnauthorized, "token revoked"), deadline)

	select {
	case err := <-errCh:
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("OnError got %v, want AuthError", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnError did not fire")
	}

	relay.assertNoConnection(t, 200*time.Millisecond)
	if got := c.State(); got != StateClosed {
		t.Errorf("state = %v, want closed", got)
	}
}

func TestClient_MalformedFrameIsDropped(t *testing.T) {
	port := localService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	relay := newFakeRelay(t)
	c := newTestClient(t, relay, port, Hooks{})
	connectClient(t, c)

	ws := relay.accept(t)
	ws.SetWriteDeadline(time.Now().Add(time.Second))
	ws.WriteMessage(websocket.TextMessage, []byte("{not json"))

	// The session survives the bad frame.
	relayWrite(t, ws, protocol.Frame{
		Type:   protocol.TypeRequest,
		ID:     "dlv-after-garbage",
		Method: http.MethodGet,
		Path:   "/",
	})
	resp := relayRead(t, ws)
	if resp.ID != "dlv-after-garbage" || resp.Status != http.StatusOK {
		t.Errorf("response = id %q status %d, want dlv-after-garbage 200", resp.ID, resp.Status)
	}
}

func TestClient_BackoffDelaysNonDecreasing(t *testing.T) {
	relay := newFakeRelay(t)
	c := newTestClient(t, relay, 3000, Hooks{})

	var prev time.Duration
	for i := 0; i < 8; i++ {
		d := c.bo.Duration()
		if d < prev {
			t.Fatalf("attempt %d: delay %v shrank below %v", i, d, prev)
		}
		if d > c.cfg.BackoffMax {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", i, d, c.cfg.BackoffMax)
		}
		prev = d
	}
	if prev != c.cfg.BackoffMax {
		t.Errorf("final delay = %v, want the %v cap", prev, c.cfg.BackoffMax)
	}

	c.bo.Reset()
	if d := c.bo.Duration(); d != c.cfg.BackoffMin {
		t.Errorf("delay after reset = %v, want %v", d, c.cfg.BackoffMin)
	}
}

func TestClient_DoesNotMutateCallerDialer(t *testing.T) {
	shared := &websocket.Dialer{HandshakeTimeout: 42 * time.Second}
	c, err := New(Config{
		TransportURL: "wss://relay.hookbase.app/t",
		LocalPort:    3000,
		Dialer:       shared,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if shared.HandshakeTimeout != 42*time.Second {
		t.Errorf("caller dialer HandshakeTimeout = %v, want untouched 42s", shared.HandshakeTimeout)
	}
	if c.dialer == shared {
		t.Error("client shares the caller's dialer")
	}
	if c.dialer.HandshakeTimeout != DefaultConnectTimeout {
		t.Errorf("client dialer HandshakeTimeout = %v, want %v",
			c.dialer.HandshakeTimeout, DefaultConnectTimeout)
	}
}

func TestClient_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad scheme", Config{TransportURL: "https://relay.hookbase.app/t", LocalPort: 3000}},
		{"zero port", Config{TransportURL: "wss://relay.hookbase.app/t", LocalPort: 0}},
		{"port out of range", Config{TransportURL: "wss://relay.hookbase.app/t", LocalPort: 70000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected config error")
			}
		})
	}
}
