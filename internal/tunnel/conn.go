package tunnel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HookbaseApp/cli/internal/tunnel/protocol"
)

// closeUnauthorized is the relay's close code for rejected
// credentials mid-session.
const closeUnauthorized = 4401

// writeWait bounds a single frame write on the shared transport.
const writeWait = 5 * time.Second

// wsConn is one live websocket session. All writes are serialized
// through writeMu; reads happen only on the read pump goroutine.
type wsConn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	readWait time.Duration
}

// dialConn opens the transport. The URL already carries the tunnel id
// and bearer token as query parameters; no handshake frame follows.
// Handshake rejections with 401/403 are fatal AuthErrors, anything
// else is a retryable ConnectionError.
func dialConn(ctx context.Context, dialer *websocket.Dialer, transportURL string, header http.Header, readWait time.Duration) (*wsConn, error) {
	ws, resp, err := dialer.DialContext(ctx, transportURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &AuthError{Status: resp.StatusCode, Reason: resp.Status}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &ConnectionError{Op: "dial", Err: errors.New("connect timeout")}
		}
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	c := &wsConn{ws: ws, readWait: readWait}
	c.extendReadDeadline()
	return c, nil
}

// WriteFrame encodes and sends one frame.
func (c *wsConn) WriteFrame(f protocol.Frame) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// ReadFrame blocks for the next frame. A *ProtocolError means the
// frame was malformed but the session is still usable; any other
// error means the connection is dead.
func (c *wsConn) ReadFrame() (protocol.Frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, closeUnauthorized) {
			return protocol.Frame{}, &AuthError{Reason: "connection closed as unauthorized"}
		}
		return protocol.Frame{}, &ConnectionError{Op: "read", Err: err}
	}
	c.extendReadDeadline()

	f, err := protocol.Decode(data)
	if err != nil {
		return protocol.Frame{}, &ProtocolError{Err: err}
	}
	return f, nil
}

// extendReadDeadline pushes the liveness deadline out after inbound
// traffic. Missing it fails the next read and triggers reconnection.
func (c *wsConn) extendReadDeadline() {
	c.ws.SetReadDeadline(time.Now().Add(c.readWait))
}

// CloseGraceful sends a normal close frame and closes the socket.
func (c *wsConn) CloseGraceful() {
	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.ws.Close()
}

// Close tears the socket down without a close handshake.
func (c *wsConn) Close() {
	c.ws.Close()
}
