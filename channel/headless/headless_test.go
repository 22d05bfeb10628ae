package headless

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/HaD0Yun/godot-mcp/channel"
)

// fakeEngine writes a shell script standing in for the engine binary. The
// script body sees the spawn arguments as "$@".
func fakeEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script engine stub requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "godot")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write engine stub: %v", err)
	}
	return path
}

func TestRunner_Call(t *testing.T) {
	bin := fakeEngine(t, `echo '{"godot_mcp":{"ok":true,"result":{"version":"4.4"}}}'`)
	r := New(Config{GodotBin: bin, BridgeScript: "bridge.gd"})

	got, err := r.Call(context.Background(), "project.version", nil)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	m, ok := got.(map[string]any)
	if !ok || m["version"] != "4.4" {
		t.Errorf("Call() = %v, want version map", got)
	}
}

func TestRunner_OperationFailure(t *testing.T) {
	bin := fakeEngine(t, `echo '{"godot_mcp":{"ok":false,"error":"no such scene"}}'`)
	r := New(Config{GodotBin: bin, BridgeScript: "bridge.gd"})

	_, err := r.Call(context.Background(), "scene.tree", map[string]any{"path": "res://nope.tscn"})
	if !errors.Is(err, channel.ErrOperationFailed) {
		t.Fatalf("Call() error = %v, want ErrOperationFailed", err)
	}
	// An operation failure is not a transport failure.
	if errors.Is(err, channel.ErrProtocol) {
		t.Error("operation failure should not be ErrProtocol")
	}
}

func TestRunner_ProtocolError(t *testing.T) {
	bin := fakeEngine(t, `echo 'just engine noise'`)
	r := New(Config{GodotBin: bin, BridgeScript: "bridge.gd"})

	_, err := r.Call(context.Background(), "project.info", nil)
	if !errors.Is(err, channel.ErrProtocol) {
		t.Errorf("Call() error = %v, want ErrProtocol", err)
	}
}

func TestRunner_Timeout(t *testing.T) {
	bin := fakeEngine(t, `sleep 5; echo '{"godot_mcp":{"ok":true}}'`)
	r := New(Config{GodotBin: bin, BridgeScript: "bridge.gd"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Call(ctx, "scene.save", map[string]any{"path": "res://main.tscn"})
	if !errors.Is(err, channel.ErrTimeout) {
		t.Errorf("Call() error = %v, want ErrTimeout", err)
	}
}

func TestRunner_PoolExhaustion(t *testing.T) {
	bin := fakeEngine(t, `sleep 2; echo '{"godot_mcp":{"ok":true}}'`)
	r := New(Config{GodotBin: bin, BridgeScript: "bridge.gd", MaxProcesses: 1})

	slow := make(chan struct{})
	go func() {
		defer close(slow)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = r.Call(ctx, "asset.import", nil)
	}()

	// Give the first call time to take the only slot.
	time.Sleep(200 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Call(ctx, "asset.import", nil)
	if !errors.Is(err, channel.ErrUnavailable) {
		t.Errorf("Call() error = %v, want ErrUnavailable", err)
	}
	<-slow
}

func TestRunner_Start(t *testing.T) {
	bin := fakeEngine(t, `true`)
	if err := New(Config{GodotBin: bin, BridgeScript: "bridge.gd"}).Start(context.Background()); err != nil {
		t.Errorf("Start() error = %v", err)
	}
	if err := New(Config{GodotBin: "", BridgeScript: "bridge.gd"}).Start(context.Background()); err == nil {
		t.Error("Start() should fail without a binary")
	}
	if err := New(Config{GodotBin: bin}).Start(context.Background()); err == nil {
		t.Error("Start() should fail without a bridge script")
	}
	if err := New(Config{GodotBin: "/does/not/exist", BridgeScript: "bridge.gd"}).Start(context.Background()); err == nil {
		t.Error("Start() should fail for an unresolvable binary")
	}
}

func TestRunner_AlwaysReady(t *testing.T) {
	r := New(Config{GodotBin: "godot", BridgeScript: "bridge.gd"})
	if r.State() != channel.Ready {
		t.Errorf("State() = %s, want Ready", r.State())
	}
	if r.Kind() != channel.KindHeadless {
		t.Errorf("Kind() = %s, want %s", r.Kind(), channel.KindHeadless)
	}
}
