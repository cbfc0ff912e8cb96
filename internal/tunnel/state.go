package tunnel

import "time"

// State is the client lifecycle state.
type State int32

// Client states. Idle is initial; Closed is terminal.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// RequestStat summarizes one completed forwarded request.
type RequestStat struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// Hooks are the observer callbacks exposed to the CLI/TUI layer.
// Each fires at most once per logical transition; nil hooks are
// skipped. Hooks run on client goroutines and must not block.
type Hooks struct {
	// OnConnect fires on entering Connected, both on the first
	// connect and after each successful reconnect.
	OnConnect func()

	// OnDisconnect fires exactly once per unexpected drop. It does
	// not fire on Close.
	OnDisconnect func(err error)

	// OnRequest fires for every completed forwarded request,
	// successful or synthesized.
	OnRequest func(stat RequestStat)

	// OnError fires on terminal or fatal failures only; per-request
	// forwarding errors stay contained as synthesized responses.
	OnError func(err error)
}
