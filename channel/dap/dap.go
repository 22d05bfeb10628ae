// Package dap provides the persistent channel to the Godot debug adapter.
//
// The adapter speaks the Debug Adapter Protocol with Content-Length framing
// on a loopback port. Connect runs the initialize/launch sequence once before
// any tool-bound request may be sent. Lifecycle events (stopped, continued,
// terminated) are distinguished from responses structurally by the frame's
// type field, never inferred from timing, and flow to event subscribers
// without touching the pending-request table.
package dap

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// ErrRequestFailed is returned when the adapter reports an unsuccessful
// response. It wraps channel.ErrOperationFailed.
var ErrRequestFailed = fmt.Errorf("%w: debug adapter request", channel.ErrOperationFailed)

const defaultHandshakeTimeout = 10 * time.Second

// Config configures the debug-adapter channel.
type Config struct {
	// Addr is the loopback address of the debug adapter, e.g. "127.0.0.1:6006".
	Addr string

	// ProjectPath is the project launched during the handshake.
	ProjectPath string

	// HandshakeTimeout bounds the initialize/launch sequence. Default 10s.
	HandshakeTimeout time.Duration

	// Logger is an optional logger for channel events.
	Logger channel.Logger
}

// Client is the debug-adapter channel.
type Client struct {
	*channel.Session

	addr             string
	projectPath      string
	handshakeTimeout time.Duration

	nextSeq atomic.Uint64
	pending *channel.Table[response]
}

// New creates a debug-adapter channel. The supervisor owns
// Connect/Transition.
func New(cfg Config) *Client {
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	return &Client{
		Session:          channel.NewSession(channel.KindDebug, cfg.Logger),
		addr:             cfg.Addr,
		projectPath:      cfg.ProjectPath,
		handshakeTimeout: timeout,
		pending:          channel.NewTable[response](),
	}
}

// request is an outbound DAP frame.
type request struct {
	Seq       uint64         `json:"seq"`
	Type      string         `json:"type"`
	Command   string         `json:"command"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// inbound is any DAP frame; Type discriminates request/response/event.
type inbound struct {
	Seq        uint64          `json:"seq"`
	Type       string          `json:"type"`
	RequestSeq uint64          `json:"request_seq,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Command    string          `json:"command,omitempty"`
	Message    string          `json:"message,omitempty"`
	Event      string          `json:"event,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

type response struct {
	success bool
	message string
	body    json.RawMessage
}

// Connect dials the adapter, starts the read loop, and runs the
// initialize/launch sequence.
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial debug adapter at %s: %w", c.addr, err)
	}
	c.SetConn(conn)
	go c.readLoop(conn)

	if err := c.handshake(ctx); err != nil {
		_ = c.CloseConn()
		return err
	}
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	if _, err := c.send(ctx, "initialize", map[string]any{
		"clientID":        "godot-mcp",
		"adapterID":       "godot",
		"linesStartAt1":   true,
		"columnsStartAt1": true,
	}); err != nil {
		return fmt.Errorf("debug adapter initialize: %w", err)
	}

	args := map[string]any{"noDebug": false}
	if c.projectPath != "" {
		args["project"] = c.projectPath
	}
	if _, err := c.send(ctx, "launch", args); err != nil {
		return fmt.Errorf("debug adapter launch: %w", err)
	}
	return nil
}

// Start implements channel.Channel. Connection is supervisor-driven.
func (c *Client) Start(context.Context) error {
	if c.addr == "" {
		return errors.New("dap: address is required")
	}
	return nil
}

// Stop tears the channel down and fails any in-flight requests.
func (c *Client) Stop() error {
	c.MarkClosed()
	err := c.CloseConn()
	c.pending.FailAll(channel.ErrClosed)
	return err
}

// FailPending fails every in-flight request with err.
func (c *Client) FailPending(err error) {
	c.pending.FailAll(err)
}

// Call sends one DAP command once the channel is Ready.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	if c.State() != channel.Ready {
		return nil, fmt.Errorf("%w: debug channel is %s", channel.ErrUnavailable, c.State())
	}
	return c.send(ctx, method, params)
}

// send runs the request/response cycle keyed by the protocol seq. Used both
// by Call and by the handshake, which runs before the channel is Ready.
func (c *Client) send(ctx context.Context, command string, args map[string]any) (any, error) {
	seq := c.nextSeq.Add(1)
	payload, err := json.Marshal(request{Seq: seq, Type: "request", Command: command, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	waiter := c.pending.Register(seq)
	if err := c.Write(payload, channel.WriteFrame); err != nil {
		c.pending.Discard(seq)
		c.ReportDown(err)
		return nil, fmt.Errorf("%w: write failed: %v", channel.ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		c.pending.Discard(seq)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", channel.ErrTimeout, command)
		}
		return nil, ctx.Err()
	case out := <-waiter:
		if out.Err != nil {
			return nil, out.Err
		}
		resp := out.Value
		if !resp.success {
			msg := resp.message
			if msg == "" {
				msg = command
			}
			return nil, fmt.Errorf("%w: %s", ErrRequestFailed, msg)
		}
		if len(resp.body) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(resp.body, &v); err != nil {
			return nil, fmt.Errorf("%w: undecodable response body", channel.ErrProtocol)
		}
		return v, nil
	}
}

func (c *Client) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, err := channel.ReadFrame(r)
		if err != nil {
			if !c.IsClosed() {
				c.ReportDown(err)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(frame, &msg); err != nil {
			c.Log().Warn("dap: dropping malformed frame", "error", err)
			continue
		}

		switch msg.Type {
		case "response":
			delivered := c.pending.Resolve(msg.RequestSeq, response{
				success: msg.Success,
				message: msg.Message,
				body:    msg.Body,
			})
			if !delivered {
				c.Log().Info("dap: discarding late response", "request_seq", msg.RequestSeq)
			}
		case "event":
			var body map[string]any
			if len(msg.Body) > 0 {
				_ = json.Unmarshal(msg.Body, &body)
			}
			c.Emit(channel.Event{Name: msg.Event, Body: body})
		default:
			c.Log().Warn("dap: unexpected frame type", "type", msg.Type)
		}
	}
}

var _ channel.Persistent = (*Client)(nil)
