package channel

import (
	"context"
	"errors"
)

// Common errors for channel operations.
var (
	// ErrUnavailable is returned when a channel is not Ready, including pool
	// exhaustion and mid-reconnect windows.
	ErrUnavailable = errors.New("backend channel unavailable")

	// ErrTimeout is returned when a call's deadline expires before resolution.
	ErrTimeout = errors.New("backend call timed out")

	// ErrProtocol is returned for malformed or absent backend payloads.
	ErrProtocol = errors.New("backend protocol error")

	// ErrClosed is returned after a channel has been stopped.
	ErrClosed = errors.New("channel closed")

	// ErrOperationFailed wraps backend-reported operation failures: the call
	// completed, the operation did not. Distinguishes tool-level failures
	// from transport-level ones at the channel boundary.
	ErrOperationFailed = errors.New("operation failed")
)

// Kind identifies one backend connection kind.
type Kind string

// The closed set of channel kinds.
const (
	KindHeadless Kind = "headless"
	KindEditor   Kind = "editor"
	KindScript   Kind = "script"
	KindDebug    Kind = "debug"
)

// State describes the lifecycle of a backend connection.
type State int32

// Connection states. Only the supervisor transitions a persistent channel
// between them; every other component reads a snapshot.
const (
	Disconnected State = iota
	Connecting
	Ready
	Degraded
	Closed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is the common contract all backend kinds implement.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Call must honor cancellation and deadlines; a dispatch never
//   waits unboundedly.
// - Errors: implementations translate transport failures into
//   ErrUnavailable/ErrTimeout/ErrProtocol before they cross the boundary.
type Channel interface {
	// Kind returns the channel kind.
	Kind() Kind

	// State returns a snapshot of the connection state.
	State() State

	// Call executes one backend method with the given parameters and returns
	// the decoded result payload.
	Call(ctx context.Context, method string, params map[string]any) (any, error)

	// Start brings the channel up (dial, handshake). For per-call kinds it
	// only verifies preconditions.
	Start(ctx context.Context) error

	// Stop tears the channel down and fails any in-flight requests.
	Stop() error
}

// EventHandler receives unsolicited backend events.
//
// Contract:
// - Handlers must not block; slow consumers should hand off to their own
//   goroutine.
type EventHandler func(event Event)

// Event is an unsolicited message from a persistent backend. Events never
// resolve a pending request; they are distinguished from responses
// structurally by each wire protocol, not inferred from timing.
type Event struct {
	// Channel is the kind that produced the event.
	Channel Kind

	// Name is the protocol-level event name (e.g. "stopped", "scene_changed").
	Name string

	// Body is the decoded event payload.
	Body map[string]any
}

// EventSource is implemented by channels that surface unsolicited events.
type EventSource interface {
	// Subscribe registers a handler and returns a function that removes it.
	Subscribe(fn EventHandler) (cancel func())
}

// Persistent is a Channel whose connection outlives individual calls. The
// supervisor owns its lifecycle and is the only component allowed to call
// Transition.
type Persistent interface {
	Channel
	EventSource

	// Transition sets the connection state. Supervisor use only.
	Transition(s State)

	// OnDisconnect sets the callback invoked when the connection fails. The
	// supervisor wires this before the first Connect.
	OnDisconnect(fn func(error))

	// Connect dials the backend endpoint and performs any handshake. It does
	// not change State; the supervisor transitions around it.
	Connect(ctx context.Context) error

	// FailPending fails every in-flight request on this connection with the
	// given error.
	FailPending(err error)
}
