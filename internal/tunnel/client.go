package tunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"

	"github.com/HookbaseApp/cli/internal/core/domain"
	"github.com/HookbaseApp/cli/internal/infra/buildinfo"
	"github.com/HookbaseApp/cli/internal/telemetry/logger"
	"github.com/HookbaseApp/cli/internal/telemetry/metric"
	"github.com/HookbaseApp/cli/internal/tunnel/forward"
	"github.com/HookbaseApp/cli/internal/tunnel/protocol"
)

// Defaults for Config fields left zero. The request timeout mirrors
// the 30 s destination timeout used by the relay.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultDrainTimeout   = 2 * time.Second
	DefaultPingInterval   = 30 * time.Second
	DefaultPongGrace      = 10 * time.Second
	DefaultBackoffMin     = time.Second
	DefaultBackoffMax     = 30 * time.Second
	DefaultMaxInFlight    = 50
)

// Config configures a tunnel Client.
type Config struct {
	// TransportURL is the websocket URL from the control plane. It
	// already carries the tunnel id and a short-lived bearer token
	// as query parameters.
	TransportURL string

	// LocalPort is the local HTTP service to forward to.
	LocalPort int

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	DrainTimeout   time.Duration
	PingInterval   time.Duration
	PongGrace      time.Duration
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	MaxInFlight    int64

	Hooks   Hooks
	Logger  logger.Logger
	Metrics *metric.Metrics

	// Dialer and HTTPClient are overridable for tests.
	Dialer     *websocket.Dialer
	HTTPClient *http.Client
}

func (cfg *Config) withDefaults() error {
	u, err := url.Parse(cfg.TransportURL)
	if err != nil {
		return fmt.Errorf("parse transport url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("transport url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.LocalPort <= 0 || cfg.LocalPort > 65535 {
		return fmt.Errorf("invalid local port %d", cfg.LocalPort)
	}

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.PongGrace <= 0 {
		cfg.PongGrace = DefaultPongGrace
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = DefaultBackoffMin
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	return nil
}

// Client is the tunnel agent facade. One Client owns exactly one
// transport connection; several Clients can coexist in a process,
// each with its own backoff and registry state.
type Client struct {
	cfg     Config
	log     logger.Logger
	metrics *metric.Metrics
	session string
	dialer  *websocket.Dialer
	bo      *backoff.Backoff
	mux     *mux

	mu         sync.Mutex
	state      State
	conn       *wsConn
	connectCh  chan struct{}
	connectErr error
	runDone    chan struct{}

	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a tunnel client. It does not touch the network; call
// Connect to open the transport.
func New(cfg Config) (*Client, error) {
	if err := cfg.withDefaults(); err != nil {
		return nil, err
	}

	session := domain.NewAgentSessionID()
	log := cfg.Logger.With("session", session)

	// Copy any caller-supplied dialer so configuring it here never
	// mutates the caller's value.
	dialer := &websocket.Dialer{}
	if cfg.Dialer != nil {
		d := *cfg.Dialer
		dialer = &d
	}
	dialer.HandshakeTimeout = cfg.ConnectTimeout

	runCtx, runCancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:     cfg,
		log:     log,
		metrics: cfg.Metrics,
		session: session,
		dialer:  dialer,
		// No jitter: successive delays double deterministically and
		// never shrink before the reset on a successful reconnect.
		bo: &backoff.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: 2,
		},
		state:     StateIdle,
		runCtx:    runCtx,
		runCancel: runCancel,
	}

	fwdOpts := []forward.Option{forward.WithLogger(log)}
	if cfg.HTTPClient != nil {
		fwdOpts = append(fwdOpts, forward.WithHTTPClient(cfg.HTTPClient))
	}
	fwd := forward.New(cfg.LocalPort, fwdOpts...)

	c.mux = newMux(fwd, c.sendFrame, c.fireRequest,
		cfg.RequestTimeout, cfg.MaxInFlight, log, cfg.Metrics)

	return c, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the per-process agent session identifier.
func (c *Client) SessionID() string {
	return c.session
}

// Connect opens the transport and returns once it is established.
// It is idempotent: while a connect is in flight, concurrent callers
// join it; on an already connected client it returns nil; on a
// closed client it returns ErrClientClosed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return ErrClientClosed
	case StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		ch := c.connectCh
		c.mu.Unlock()
		select {
		case <-ch:
			c.mu.Lock()
			err := c.connectErr
			c.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// StateIdle: this caller performs the connect.
	ch := make(chan struct{})
	c.connectCh = ch
	c.state = StateConnecting
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	conn, err := dialConn(dctx, c.dialer, c.cfg.TransportURL, c.dialHeader(), c.readWait())
	cancel()

	c.mu.Lock()
	if c.state != StateConnecting {
		// Close raced with the dial.
		c.connectErr = ErrClientClosed
		close(ch)
		c.mu.Unlock()
		if conn != nil {
			conn.CloseGraceful()
		}
		return ErrClientClosed
	}

	if err != nil {
		var authErr *AuthError
		fatal := errors.As(err, &authErr)
		if fatal {
			// A rejected token is not recoverable by retrying.
			c.state = StateClosed
		} else {
			c.state = StateIdle
		}
		c.connectErr = err
		close(ch)
		c.mu.Unlock()

		c.log.Error("connect failed", "url", logger.RedactURL(c.cfg.TransportURL), "error", err)
		if fatal {
			c.fireError(err)
		}
		return err
	}

	c.conn = conn
	c.state = StateConnected
	c.connectErr = nil
	c.runDone = make(chan struct{})
	close(ch)
	c.mu.Unlock()

	c.bo.Reset()
	if c.metrics != nil {
		c.metrics.SetConnected(true)
	}
	c.log.Info("tunnel connected",
		"url", logger.RedactURL(c.cfg.TransportURL),
		"local_port", c.cfg.LocalPort)
	c.fireConnect()

	go c.run(conn)
	return nil
}

// Close drains in-flight requests up to the drain deadline, closes
// the transport, and cancels any pending reconnection. Closed is
// terminal; Close is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	conn := c.conn
	runDone := c.runDone
	c.mu.Unlock()

	// New inbound requests are dropped from here on.
	c.mux.CloseAccepting()

	dctx, cancel := context.WithTimeout(context.Background(), c.cfg.DrainTimeout)
	if err := c.mux.Drain(dctx); err != nil {
		c.log.Warn("drain deadline elapsed with requests in flight",
			"in_flight", c.mux.InFlight())
	}
	cancel()
	c.mux.CancelAll()

	c.runCancel()
	if conn != nil {
		conn.CloseGraceful()
	}
	if runDone != nil {
		select {
		case <-runDone:
		case <-time.After(writeWait):
		}
	}

	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetConnected(false)
	}
	c.log.Info("tunnel closed")
	return nil
}

// run owns the connection for the client's lifetime: it pumps reads
// and re-establishes the transport after unexpected drops.
func (c *Client) run(conn *wsConn) {
	defer close(c.runDone)

	for {
		err := c.readPump(conn)

		if c.metrics != nil {
			c.metrics.SetConnected(false)
		}

		var authErr *AuthError
		fatal := errors.As(err, &authErr)

		c.mu.Lock()
		closing := c.state == StateClosing || c.state == StateClosed
		if !closing {
			c.conn = nil
			if fatal {
				c.state = StateClosed
			} else {
				c.state = StateReconnecting
			}
		}
		c.mu.Unlock()

		if closing {
			return
		}

		c.fireDisconnect(err)

		if fatal {
			c.log.Error("authentication rejected, giving up", "error", err)
			c.fireError(err)
			return
		}
		c.log.Warn("connection lost", "error", err)

		next, rerr := c.reconnect()
		if rerr != nil {
			return
		}
		conn = next
	}
}

// readPump reads frames until the connection dies. Malformed frames
// are dropped and the session continues.
func (c *Client) readPump(conn *wsConn) error {
	stopHeartbeat := c.startHeartbeat(conn)
	defer stopHeartbeat()

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			var perr *ProtocolError
			if errors.As(err, &perr) {
				if c.metrics != nil {
					c.metrics.FramesDropped.Inc()
				}
				c.log.Warn("dropping malformed frame", "error", perr)
				continue
			}
			return err
		}

		switch f.Type {
		case protocol.TypeRequest:
			c.log.Debug("request received", "id", f.ID, "method", f.Method, "path", f.Path)
			c.mux.Handle(c.runCtx, f)
		case protocol.TypePing:
			if err := conn.WriteFrame(protocol.Pong()); err != nil {
				c.log.Debug("pong write failed", "error", err)
			}
		case protocol.TypePong:
			// Liveness only; ReadFrame already extended the deadline.
		default:
			c.log.Debug("ignoring unexpected frame", "type", string(f.Type), "id", f.ID)
		}
	}
}

// startHeartbeat pings on an idle interval. A peer that stops
// answering misses the read deadline and fails the pump.
func (c *Client) startHeartbeat(conn *wsConn) func() {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if err := conn.WriteFrame(protocol.Ping()); err != nil {
					c.log.Debug("heartbeat write failed", "error", err)
					return
				}
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stop) }) }
}

// reconnect redials with exponential backoff until it succeeds, the
// client closes, or the relay rejects the credentials.
func (c *Client) reconnect() (*wsConn, error) {
	for {
		wait := c.bo.Duration()
		c.log.Info("reconnecting", "wait", wait.String(), "attempt", int(c.bo.Attempt()))

		select {
		case <-c.runCtx.Done():
			return nil, c.runCtx.Err()
		case <-time.After(wait):
		}

		dctx, cancel := context.WithTimeout(c.runCtx, c.cfg.ConnectTimeout)
		conn, err := dialConn(dctx, c.dialer, c.cfg.TransportURL, c.dialHeader(), c.readWait())
		cancel()

		if err == nil {
			c.mu.Lock()
			if c.state != StateReconnecting {
				c.mu.Unlock()
				conn.CloseGraceful()
				return nil, ErrClientClosed
			}
			c.conn = conn
			c.state = StateConnected
			c.mu.Unlock()

			c.bo.Reset()
			if c.metrics != nil {
				c.metrics.SetConnected(true)
				c.metrics.Reconnects.Inc()
			}
			c.log.Info("tunnel reconnected")
			c.fireConnect()
			return conn, nil
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.mu.Lock()
			if c.state == StateReconnecting {
				c.state = StateClosed
			}
			c.mu.Unlock()
			c.log.Error("authentication rejected during reconnect", "error", err)
			c.fireError(err)
			return nil, err
		}
		c.log.Warn("reconnect attempt failed", "error", err)
	}
}

// sendFrame writes a frame on the current connection.
func (c *Client) sendFrame(f protocol.Frame) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteFrame(f)
}

func (c *Client) dialHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "hookbase-cli/"+buildinfo.Version)
	h.Set("X-Hookbase-Agent-Session", c.session)
	return h
}

func (c *Client) readWait() time.Duration {
	return c.cfg.PingInterval + c.cfg.PongGrace
}

func (c *Client) fireConnect() {
	if h := c.cfg.Hooks.OnConnect; h != nil {
		h()
	}
}

func (c *Client) fireDisconnect(err error) {
	if h := c.cfg.Hooks.OnDisconnect; h != nil {
		h(err)
	}
}

func (c *Client) fireRequest(stat RequestStat) {
	if h := c.cfg.Hooks.OnRequest; h != nil {
		h(stat)
	}
}

func (c *Client) fireError(err error) {
	if h := c.cfg.Hooks.OnError; h != nil {
		h(err)
	}
}
