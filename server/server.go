// Package server exposes the bridge over the Model Context Protocol.
//
// The advertised tool list is the registry surface for the active profile,
// each tool under its profile-specific name, plus two meta-tools that make
// the rest of the surface reachable: search_tools queries the catalog across
// every tool regardless of profile, and call_tool dispatches any tool by
// canonical name or alias. Together they keep the compact surface small
// without making it a cage.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HaD0Yun/godot-mcp/bridge"
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/router"
	"github.com/HaD0Yun/godot-mcp/schema"
)

// Implementation identity advertised during the MCP handshake.
const (
	serverName    = "godot-mcp"
	serverVersion = "0.3.0"
)

// Options configures a Server.
type Options struct {
	// Bridge is the assembled dispatch core. Required.
	Bridge *bridge.Bridge

	// Logger is an optional logger for serve-time events.
	Logger channel.Logger
}

// Server is the MCP-facing surface over one bridge.
type Server struct {
	bridge *bridge.Bridge
	mcp    *mcp.Server
	log    channel.Logger
}

// New builds the MCP server and registers the advertised surface plus the
// meta-tools.
func New(opts Options) (*Server, error) {
	if opts.Bridge == nil {
		return nil, errors.New("server: Bridge is required")
	}
	log := opts.Logger
	if log == nil {
		log = channel.NopLogger{}
	}

	s := &Server{
		bridge: opts.Bridge,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil),
		log:    log,
	}

	for _, def := range opts.Bridge.Advertised() {
		parsed, err := schema.Parse(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		name := def.AdvertisedName(opts.Bridge.Profile())
		canonical := def.Name
		s.mcp.AddTool(&mcp.Tool{
			Name:        name,
			Description: def.Description,
			InputSchema: parsed,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return s.handleCall(ctx, canonical, req.Params.Arguments)
		})
	}

	if err := s.registerMetaTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the bridge, serves MCP on stdio, and tears the bridge down when
// the transport or the context ends.
func (s *Server) Run(ctx context.Context) error {
	if err := s.bridge.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.bridge.Stop(); err != nil {
			s.log.Warn("bridge stop", "error", err)
		}
	}()
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// handleCall dispatches one tool call and renders the outcome as a
// CallToolResult. Dispatch taxonomy failures become IsError results carrying
// the structured error; only transport-level problems (a broken stdio
// session, a cancelled context) surface as Go errors.
func (s *Server) handleCall(ctx context.Context, toolName string, rawArgs json.RawMessage) (*mcp.CallToolResult, error) {
	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return errorResult(&router.Error{
				Kind:    router.KindValidation,
				Tool:    toolName,
				Message: fmt.Sprintf("arguments are not a JSON object: %v", err),
			}), nil
		}
	}

	result, err := s.bridge.Dispatch(ctx, toolName, args)
	if err != nil {
		var derr *router.Error
		if errors.As(err, &derr) {
			return errorResult(derr), nil
		}
		return nil, err
	}
	return callResult(result), nil
}

// callResult renders a dispatch result: text content for human readers,
// structured content for programmatic ones.
func callResult(r router.Result) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: compactJSON(r.Content)}},
		StructuredContent: r.Content,
		IsError:           r.IsError,
	}
}

// errorResult renders a taxonomy error as an IsError result.
func errorResult(derr *router.Error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: compactJSON(derr)}},
		StructuredContent: derr,
		IsError:           true,
	}
}

func compactJSON(v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(encoded)
}
