package tunnel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/HookbaseApp/cli/internal/telemetry/logger"
	"github.com/HookbaseApp/cli/internal/telemetry/metric"
	"github.com/HookbaseApp/cli/internal/tunnel/forward"
	"github.com/HookbaseApp/cli/internal/tunnel/protocol"
	"github.com/HookbaseApp/cli/pkg/cmap"
)

// forwarder is what the multiplexer needs from package forward.
type forwarder interface {
	Forward(ctx context.Context, req protocol.Frame) forward.Result
}

// mux pairs inbound request frames with outbound responses. It owns
// the in-flight registry; entries are removed exactly once, on
// completion or timeout.
type mux struct {
	fwd       forwarder
	send      func(protocol.Frame) error
	onRequest func(RequestStat)
	timeout   time.Duration
	sem       *semaphore.Weighted
	log       logger.Logger
	metrics   *metric.Metrics

	inflight *cmap.Map[string, *inflightRequest]
	wg       sync.WaitGroup
	closed   atomic.Bool
}

// inflightRequest is one registered correlation id.
type inflightRequest struct {
	method     string
	path       string
	receivedAt time.Time
	cancel     context.CancelFunc
}

func newMux(fwd forwarder, send func(protocol.Frame) error, onRequest func(RequestStat),
	timeout time.Duration, maxInFlight int64, log logger.Logger, metrics *metric.Metrics) *mux {
	return &mux{
		fwd:       fwd,
		send:      send,
		onRequest: onRequest,
		timeout:   timeout,
		sem:       semaphore.NewWeighted(maxInFlight),
		log:       log,
		metrics:   metrics,
		inflight:  cmap.New[string, *inflightRequest](),
	}
}

// Handle registers a decoded request frame and dispatches it.
// Duplicate ids already in flight are ignored; this is the
// idempotent-receive guard against relay redelivery.
func (m *mux) Handle(parent context.Context, req protocol.Frame) {
	if m.closed.Load() {
		m.log.Debug("dropping request, multiplexer closed", "id", req.ID)
		return
	}

	ctx, cancel := context.WithTimeout(parent, m.timeout)
	entry := &inflightRequest{
		method:     req.Method,
		path:       req.Path,
		receivedAt: time.Now(),
		cancel:     cancel,
	}

	if _, exists := m.inflight.GetOrSet(req.ID, entry); exists {
		cancel()
		m.log.Debug("ignoring duplicate request frame", "id", req.ID)
		return
	}

	m.wg.Add(1)
	go m.dispatch(ctx, req, cancel)
}

func (m *mux) dispatch(ctx context.Context, req protocol.Frame, cancel context.CancelFunc) {
	defer m.wg.Done()
	defer cancel()

	var res forward.Result
	if err := m.sem.Acquire(ctx, 1); err != nil {
		// The concurrency cap was still saturated when the request
		// timed out; report it the same way as a slow local call.
		res = forward.Result{
			Status:      http.StatusGatewayTimeout,
			Body:        []byte("request timed out waiting for a forward slot"),
			Synthesized: true,
		}
	} else {
		if m.metrics != nil {
			m.metrics.RequestsInFlight.Inc()
		}
		res = m.fwd.Forward(ctx, req)
		if m.metrics != nil {
			m.metrics.RequestsInFlight.Dec()
		}
		m.sem.Release(1)
	}

	m.complete(req.ID, res)
}

// complete sends the response for id and reports the request stat.
// The registry entry is claimed atomically so a request reaches
// exactly one terminal outcome.
func (m *mux) complete(id string, res forward.Result) {
	entry, ok := m.inflight.Pop(id)
	if !ok {
		return
	}

	frame := protocol.NewResponse(id, res.Status, res.Headers, res.Body)
	if err := m.send(frame); err != nil {
		switch {
		case errors.Is(err, protocol.ErrFrameTooLarge), errors.Is(err, protocol.ErrMalformedFrame):
			// The connection is healthy but the response cannot be
			// represented on the wire. Tell the relay the delivery
			// failed instead of leaving it to the redelivery timer.
			m.log.Warn("response unencodable, reporting delivery failure", "id", id, "error", err)
			res = forward.Result{Status: http.StatusBadGateway, Synthesized: true}
			if serr := m.send(protocol.NewError(id, "local response could not be encoded")); serr != nil {
				m.log.Warn("dropping error frame, send failed", "id", id, "error", serr)
			}
		default:
			// Hard disconnect mid-request: the relay marks the delivery
			// failed and redelivers; dropping here is the contract.
			m.log.Warn("dropping response, send failed", "id", id, "error", err)
		}
	}

	stat := RequestStat{
		Method:   entry.method,
		Path:     entry.path,
		Status:   res.Status,
		Duration: time.Since(entry.receivedAt),
	}
	if m.metrics != nil {
		m.metrics.ObserveRequest(stat.Method, stat.Status, stat.Duration)
	}
	if m.onRequest != nil {
		m.onRequest(stat)
	}
}

// CloseAccepting stops Handle from registering new requests.
func (m *mux) CloseAccepting() {
	m.closed.Store(true)
}

// Drain waits until all dispatched requests complete or ctx expires.
func (m *mux) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll aborts outstanding local calls, best effort.
func (m *mux) CancelAll() {
	m.inflight.Range(func(_ string, entry *inflightRequest) bool {
		entry.cancel()
		return true
	})
}

// InFlight returns the number of registered requests.
func (m *mux) InFlight() int {
	return m.inflight.Count()
}
