package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HaD0Yun/godot-mcp/router"
	"github.com/HaD0Yun/godot-mcp/schema"
)

// Meta-tool names. These are always advertised, whatever the profile.
const (
	searchToolName = "search_tools"
	callToolName   = "call_tool"
)

var searchToolsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Keywords to match against tool names, aliases, and descriptions.",
		},
	},
	"required":             []any{"query"},
	"additionalProperties": false,
}

var callToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name": map[string]any{
			"type":        "string",
			"description": "Tool to call, by canonical name or any alias.",
		},
		"arguments": map[string]any{
			"type":        "object",
			"description": "Arguments for the tool.",
		},
	},
	"required":             []any{"name"},
	"additionalProperties": false,
}

// registerMetaTools adds search_tools and call_tool. Search covers the whole
// registry, not the advertised slice, so hidden tools are discoverable; each
// hit flags whether it is part of the current surface. call_tool dispatches
// by any name, which is what makes a search hit actionable.
func (s *Server) registerMetaTools() error {
	searchSchema, err := schema.Parse(searchToolsSchema)
	if err != nil {
		return fmt.Errorf("search_tools: %w", err)
	}
	s.mcp.AddTool(&mcp.Tool{
		Name:        searchToolName,
		Description: "Search every available tool by keyword, including tools hidden from the current profile.",
		InputSchema: searchSchema,
	}, s.handleSearchTools)

	callSchema, err := schema.Parse(callToolSchema)
	if err != nil {
		return fmt.Errorf("call_tool: %w", err)
	}
	s.mcp.AddTool(&mcp.Tool{
		Name:        callToolName,
		Description: "Call any tool by canonical name or alias, whether or not it is advertised.",
		InputSchema: callSchema,
	}, s.handleCallTool)
	return nil
}

func (s *Server) handleSearchTools(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &in); err != nil || in.Query == "" {
		return errorResult(&router.Error{
			Kind:    router.KindValidation,
			Tool:    searchToolName,
			Message: "query is required",
			Fields:  []string{"query"},
		}), nil
	}

	matches := s.bridge.Search(in.Query)
	payload := map[string]any{"matches": matches, "profile": string(s.bridge.Profile())}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: compactJSON(payload)}},
		StructuredContent: payload,
	}, nil
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &in); err != nil || in.Name == "" {
		return errorResult(&router.Error{
			Kind:    router.KindValidation,
			Tool:    callToolName,
			Message: "name is required",
			Fields:  []string{"name"},
		}), nil
	}
	return s.handleCall(ctx, in.Name, in.Arguments)
}
