package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HaD0Yun/godot-mcp/bridge"
	"github.com/HaD0Yun/godot-mcp/config"
	"github.com/HaD0Yun/godot-mcp/router"
)

func testBridge(t *testing.T, profile string) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New(bridge.Options{Config: config.Config{
		Profile:     profile,
		GodotBin:    "godot",
		ProjectPath: t.TempDir(),
		SpawnPool:   1,
		EditorAddr:  "127.0.0.1:0",
		LSPAddr:     "127.0.0.1:0",
		DAPAddr:     "127.0.0.1:0",
	}})
	if err != nil {
		t.Fatalf("bridge.New() error = %v", err)
	}
	return b
}

func callReq(args any) *mcp.CallToolRequest {
	raw, _ := json.Marshal(args)
	return &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: raw}}
}

func structuredError(t *testing.T, res *mcp.CallToolResult) *router.Error {
	t.Helper()
	if !res.IsError {
		t.Fatal("result.IsError = false, want true")
	}
	derr, ok := res.StructuredContent.(*router.Error)
	if !ok {
		t.Fatalf("StructuredContent is %T, want *router.Error", res.StructuredContent)
	}
	return derr
}

func TestNew_RequiresBridge(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("New() succeeded without a bridge")
	}
}

func TestNew_BuildsAdvertisedSurface(t *testing.T) {
	if _, err := New(Options{Bridge: testBridge(t, "full")}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := New(Options{Bridge: testBridge(t, "legacy")}); err != nil {
		t.Fatalf("New(legacy) error = %v", err)
	}
}

func TestHandleCall_MalformedArguments(t *testing.T) {
	s, err := New(Options{Bridge: testBridge(t, "full")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := s.handleCall(context.Background(), "scene.create", json.RawMessage(`[1,2]`))
	if err != nil {
		t.Fatalf("handleCall() error = %v, want IsError result", err)
	}
	derr := structuredError(t, res)
	if derr.Kind != router.KindValidation {
		t.Errorf("Kind = %s, want %s", derr.Kind, router.KindValidation)
	}
}

func TestHandleCall_UnknownToolBecomesResult(t *testing.T) {
	s, err := New(Options{Bridge: testBridge(t, "full")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := s.handleCall(context.Background(), "no.such.tool", nil)
	if err != nil {
		t.Fatalf("handleCall() error = %v, want IsError result", err)
	}
	derr := structuredError(t, res)
	if derr.Kind != router.KindUnknownTool {
		t.Errorf("Kind = %s, want %s", derr.Kind, router.KindUnknownTool)
	}
	if len(res.Content) == 0 {
		t.Fatal("result has no text content")
	}
}

func TestHandleSearchTools(t *testing.T) {
	s, err := New(Options{Bridge: testBridge(t, "compact")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := s.handleSearchTools(context.Background(), callReq(map[string]any{"query": "tilemap"}))
	if err != nil {
		t.Fatalf("handleSearchTools() error = %v", err)
	}
	if res.IsError {
		t.Fatal("search returned IsError")
	}
	payload, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent is %T, want map", res.StructuredContent)
	}
	if payload["profile"] != "compact" {
		t.Errorf("profile = %v, want compact", payload["profile"])
	}
}

func TestHandleSearchTools_RequiresQuery(t *testing.T) {
	s, err := New(Options{Bridge: testBridge(t, "full")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := s.handleSearchTools(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatalf("handleSearchTools() error = %v", err)
	}
	derr := structuredError(t, res)
	if derr.Kind != router.KindValidation {
		t.Errorf("Kind = %s, want %s", derr.Kind, router.KindValidation)
	}
}

func TestHandleCallTool_DispatchesByAlias(t *testing.T) {
	// The editor backend is down, so an alias that resolves correctly comes
	// back unavailable rather than unknown.
	s, err := New(Options{Bridge: testBridge(t, "compact")})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := s.handleCallTool(context.Background(), callReq(map[string]any{
		"name": "inspect_runtime_tree",
	}))
	if err != nil {
		t.Fatalf("handleCallTool() error = %v", err)
	}
	derr := structuredError(t, res)
	if derr.Kind != router.KindUnavailable {
		t.Errorf("Kind = %s, want %s", derr.Kind, router.KindUnavailable)
	}
}
