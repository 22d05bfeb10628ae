// Package lsp provides the persistent channel to the Godot script language
// server.
//
// The language server speaks JSON-RPC 2.0 with Content-Length framing on a
// loopback port. After the connection comes up, a capability-negotiation
// handshake (initialize request, initialized notification) runs once before
// any tool-bound request may be sent. Server notifications (diagnostics and
// friends) flow to event subscribers; they carry no id and never resolve a
// pending request.
package lsp

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

// ErrRequestFailed is returned when the language server reports a
// request-level error. It wraps channel.ErrOperationFailed.
var ErrRequestFailed = fmt.Errorf("%w: language server request", channel.ErrOperationFailed)

// defaultHandshakeTimeout bounds the initialize exchange.
const defaultHandshakeTimeout = 10 * time.Second

// Config configures the language-server channel.
type Config struct {
	// Addr is the loopback address of the language server, e.g. "127.0.0.1:6005".
	Addr string

	// RootPath is the project root announced during initialize.
	RootPath string

	// HandshakeTimeout bounds the initialize exchange. Default 10s.
	HandshakeTimeout time.Duration

	// Logger is an optional logger for channel events.
	Logger channel.Logger
}

// Client is the language-server channel.
type Client struct {
	*channel.Session

	addr             string
	rootPath         string
	handshakeTimeout time.Duration

	nextID  atomic.Uint64
	pending *channel.Table[json.RawMessage]

	capabilities atomic.Value // map[string]any from the initialize result
}

// New creates a language-server channel. The supervisor owns
// Connect/Transition.
func New(cfg Config) *Client {
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	return &Client{
		Session:          channel.NewSession(channel.KindScript, cfg.Logger),
		addr:             cfg.Addr,
		rootPath:         cfg.RootPath,
		handshakeTimeout: timeout,
		pending:          channel.NewTable[json.RawMessage](),
	}
}

// message is one JSON-RPC 2.0 frame. Requests carry ID and Method; responses
// carry ID and Result or Error; notifications carry Method only and are
// surfaced as events.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Connect dials the language server, starts the read loop, and performs the
// initialize handshake.
func (c *Client) Connect(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial language server at %s: %w", c.addr, err)
	}
	c.SetConn(conn)
	go c.readLoop(conn)

	if err := c.handshake(ctx); err != nil {
		_ = c.CloseConn()
		return err
	}
	return nil
}

// handshake negotiates capabilities once per connection.
func (c *Client) handshake(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()

	result, err := c.request(ctx, "initialize", map[string]any{
		"processId": nil,
		"rootUri":   fileURI(c.rootPath),
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"documentSymbol": map[string]any{},
				"hover":          map[string]any{},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("language server initialize: %w", err)
	}
	if caps, ok := result.(map[string]any); ok {
		c.capabilities.Store(caps)
	}

	return c.notify("initialized", map[string]any{})
}

// Capabilities returns the server capabilities from the last handshake, or
// nil before the first successful connect.
func (c *Client) Capabilities() map[string]any {
	caps, _ := c.capabilities.Load().(map[string]any)
	return caps
}

// Start implements channel.Channel. Connection is supervisor-driven.
func (c *Client) Start(context.Context) error {
	if c.addr == "" {
		return errors.New("lsp: address is required")
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

// Call sends one request once the channel is Ready.
func (c *Client) Call(ctx context.Context, method string, params map[string]any) (any, error) {
	if c.State() != channel.Ready {
		return nil, fmt.Errorf("%w: script channel is %s", channel.ErrUnavailable, c.State())
	}
	return c.request(ctx, method, params)
}

// request runs the JSON-RPC request/response cycle. Used both by Call and by
// the handshake, which runs before the channel is Ready.
func (c *Client) request(ctx context.Context, method string, params any) (any, error) {
	id := c.nextID.Add(1)
	payload, err := json.Marshal(message{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	waiter := c.pending.Register(id)
	if err := c.Write(payload, channel.WriteFrame); err != nil {
		c.pending.Discard(id)
		c.ReportDown(err)
		return nil, fmt.Errorf("%w: write failed: %v", channel.ErrUnavailable, err)
	}

	select {
	case <-ctx.Done():
		c.pending.Discard(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", channel.ErrTimeout, method)
		}
		return nil, ctx.Err()
	case out := <-waiter:
		if out.Err != nil {
			return nil, out.Err
		}
		if len(out.Value) == 0 {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal(out.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: undecodable result payload", channel.ErrProtocol)
		}
		return v, nil
	}
}

// notify sends a notification (no id, no response).
func (c *Client) notify(method string, params any) error {
	payload, err := json.Marshal(message{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return c.Write(payload, channel.WriteFrame)
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

		var msg message
		if err := json.Unmarshal(frame, &msg); err != nil {
			c.Log().Warn("lsp: dropping malformed frame", "error", err)
			continue
		}

		switch {
		case msg.ID != nil && msg.Method == "":
			// Response.
			if msg.Error != nil {
				if !c.pending.Fail(*msg.ID, fmt.Errorf("%w: %s (%d)", ErrRequestFailed, msg.Error.Message, msg.Error.Code)) {
					c.Log().Info("lsp: discarding late error response", "id", *msg.ID)
				}
				continue
			}
			if !c.pending.Resolve(*msg.ID, msg.Result) {
				c.Log().Info("lsp: discarding late response", "id", *msg.ID)
			}
		case msg.Method != "":
			// Server notification or server-to-client request; surfaced as an
			// event either way. Godot's server does not require client replies.
			body, _ := msg.Params.(map[string]any)
			c.Emit(channel.Event{Name: msg.Method, Body: body})
		default:
			c.Log().Warn("lsp: frame with neither id nor method")
		}
	}
}

func fileURI(path string) any {
	if path == "" {
		return nil
	}
	return "file://" + path
}

var _ channel.Persistent = (*Client)(nil)
