// Package editor provides the persistent command/event channel to the Godot
// editor addon.
//
// The addon listens on a loopback TCP port and speaks newline-delimited JSON.
// Every inbound frame is either a response, carrying the correlation id of an
// in-flight command, or an event, delivered to subscribers and never matched
// against a pending command.
package editor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// ErrCommandFailed is returned when the addon reports a command-level
// error. It wraps channel.ErrOperationFailed: the call completed, the
// command did not.
var ErrCommandFailed = fmt.Errorf("%w: editor command", channel.ErrOperationFailed)

// Config configures the editor channel.
type Config struct {
	// Addr is the loopback address of the editor addon, e.g. "127.0.0.1:9080".
	Addr string

	// Logger is an optional logger for channel events.
	Logger channel.Logger
}

// Editor is the persistent socket channel to the editor addon.
type Editor struct {
	*channel.Session

	addr    string
	nextID  atomic.Uint64
	pending *channel.Table[json.RawMessage]
}

// New creates an editor channel. The supervisor owns Connect/Transition.
func New(cfg Config) *Editor {
	return &Editor{
		Session: channel.NewSession(channel.KindEditor, cfg.Logger),
		addr:    cfg.Addr,
		pending: channel.NewTable[json.RawMessage](),
	}
}

// message is one wire frame of the addon protocol. Responses and events are
// distinguished by Type, never by timing.
type message struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params map[string]any  `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connect dials the addon and starts the read loop for that connection.
func (e *Editor) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("dial editor addon at %s: %w", e.addr, err)
	}
	e.SetConn(conn)
	go e.readLoop(conn)
	return nil
}

// Start implements channel.Channel. The supervisor drives the actual
// connection; Start only validates configuration.
func (e *Editor) Start(context.Context) error {
	if e.addr == "" {
		return errors.New("editor: address is required")
	}
	return nil
}

// Stop tears the channel down and fails any in-flight commands.
func (e *Editor) Stop() error {
	e.MarkClosed()
	err := e.CloseConn()
	e.pending.FailAll(channel.ErrClosed)
	return err
}

// FailPending fails every in-flight command with err.
func (e *Editor) FailPending(err error) {
	e.pending.FailAll(err)
}

// Call sends one command and suspends the caller until the matching response,
// the deadline, or a channel failure, whichever comes first.
func (e *Editor) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	if e.State() != channel.Ready {
		return nil, fmt.Errorf("%w: editor channel is %s", channel.ErrUnavailable, e.State())
	}

	id := e.nextID.Add(1)
	payload, err := json.Marshal(message{Type: "command", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode editor command: %w", err)
	}

	waiter := e.pending.Register(id)
	if err := e.Write(payload, channel.WriteLine); err != nil {
		e.pending.Discard(id)
		e.ReportDown(err)
		return nil, fmt.Errorf("%w: write failed: %v", channel.ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		// A late response for this id is received and discarded, not
		// misrouted to the next command.
		e.pending.Discard(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: editor command %s", channel.ErrTimeout, method)
		}
		return nil, ctx.Err()
	case out := <-waiter:
		if out.Err != nil {
			return nil, out.Err
		}
		return decodeResult(out.Value)
	}
}

func decodeResult(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: undecodable result payload", channel.ErrProtocol)
	}
	return v, nil
}

func (e *Editor) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, err := channel.ReadLine(r)
		if err != nil {
			if !e.IsClosed() {
				e.ReportDown(err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(frame, &msg); err != nil {
			e.Log().Warn("editor: dropping malformed frame", "error", err, "payload", string(frame))
			continue
		}

		switch msg.Type {
		case "response":
			if msg.Error != nil {
				if !e.pending.Fail(msg.ID, fmt.Errorf("%w: %s (%s)", ErrCommandFailed, msg.Error.Message, msg.Error.Code)) {
					e.Log().Info("editor: discarding late error response", "id", msg.ID)
				}
				continue
			}
			if !e.pending.Resolve(msg.ID, msg.Result) {
				e.Log().Info("editor: discarding late response", "id", msg.ID)
			}
		case "event":
			var body map[string]any
			if len(msg.Result) > 0 {
				_ = json.Unmarshal(msg.Result, &body)
			}
			if body == nil && msg.Params != nil {
				body = msg.Params
			}
			e.Emit(channel.Event{Name: msg.Method, Body: body})
		default:
			e.Log().Warn("editor: unknown frame type", "type", msg.Type)
		}
	}
}

var _ channel.Persistent = (*Editor)(nil)
