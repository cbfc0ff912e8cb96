// Package forward executes tunnel requests against the local service.
package forward

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/HookbaseApp/cli/internal/telemetry/logger"
	"github.com/HookbaseApp/cli/internal/tunnel/protocol"
)

// Result is the terminal outcome of one forwarded request.
type Result struct {
	Status  int
	Headers http.Header
	Body    []byte

	// Synthesized is true when the agent generated the status itself
	// because the local service did not produce a usable response.
	Synthesized bool
}

// Forwarder issues HTTP calls against localhost for decoded requests.
type Forwarder struct {
	baseURL string
	client  *http.Client
	log     logger.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient overrides the HTTP client (used in tests).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.client = c
	}
}

// WithLogger sets the forwarder's logger.
func WithLogger(log logger.Logger) Option {
	return func(f *Forwarder) {
		f.log = log
	}
}

// New creates a forwarder targeting http://127.0.0.1:<localPort>.
func New(localPort int, opts ...Option) *Forwarder {
	f := &Forwarder{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", localPort),
		// No client timeout; the per-request context deadline set by
		// the multiplexer governs each call.
		client: &http.Client{},
		log:    logger.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Forward executes one local HTTP call for a decoded request frame.
// It always returns a Result; failures become synthesized statuses.
func (f *Forwarder) Forward(ctx context.Context, req protocol.Frame) Result {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, f.baseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return synthesized(http.StatusBadGateway, fmt.Sprintf("build local request: %v", err))
	}
	copyHeaders(httpReq.Header, req.Headers)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.log.Warn("local request timed out", "method", req.Method, "path", req.Path)
			return synthesized(http.StatusGatewayTimeout,
				fmt.Sprintf("local service did not respond in time: %s %s", req.Method, req.Path))
		}
		f.log.Warn("local request failed", "method", req.Method, "path", req.Path, "error", err)
		return synthesized(http.StatusBadGateway, fmt.Sprintf("local service unreachable: %v", err))
	}
	defer resp.Body.Close()

	// One extra byte past the cap distinguishes "exactly at the
	// limit" from "over it". The cap is on the raw body; its base64
	// growth on the wire is already budgeted by MaxBodySize.
	body, err := io.ReadAll(io.LimitReader(resp.Body, protocol.MaxBodySize+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return synthesized(http.StatusGatewayTimeout,
				fmt.Sprintf("local service did not finish responding in time: %s %s", req.Method, req.Path))
		}
		return synthesized(http.StatusBadGateway, fmt.Sprintf("read local response: %v", err))
	}
	if len(body) > protocol.MaxBodySize {
		return synthesized(http.StatusBadGateway,
			fmt.Sprintf("local response exceeds %d byte body limit", protocol.MaxBodySize))
	}

	headers := make(http.Header, len(resp.Header))
	copyHeaders(headers, resp.Header)

	return Result{
		Status:  resp.StatusCode,
		Headers: headers,
		Body:    body,
	}
}

func synthesized(status int, message string) Result {
	return Result{
		Status:      status,
		Headers:     http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:        []byte(message),
		Synthesized: true,
	}
}

// Hop-by-hop headers are connection-scoped and must not cross the
// tunnel in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
}
