package router

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/HaD0Yun/godot-mcp/catalog"
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/registry"
	"github.com/HaD0Yun/godot-mcp/supervisor"
)

// scriptedChannel returns canned outcomes and records the dispatched method.
type scriptedChannel struct {
	kind  channel.Kind
	state channel.State

	lastMethod string
	lastParams map[string]any
	result     any
	err        error
}

func (c *scriptedChannel) Kind() channel.Kind   { return c.kind }
func (c *scriptedChannel) State() channel.State { return c.state }
func (c *scriptedChannel) Call(_ context.Context, method string, params map[string]any) (any, error) {
	c.lastMethod = method
	c.lastParams = params
	return c.result, c.err
}
func (c *scriptedChannel) Start(context.Context) error { return nil }
func (c *scriptedChannel) Stop() error                 { return nil }

func testDefs() []registry.Definition {
	sceneSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"root_type": map[string]any{"type": "string"},
		},
		"required":             []any{"path", "root_type"},
		"additionalProperties": false,
	}
	return []registry.Definition{
		{
			Name:        "scene.create",
			Description: "Create a scene.",
			LegacyAlias: "create_scene",
			Visibility:  registry.Visibility{Compact: true, Full: true, Legacy: true},
			Backend:     channel.KindHeadless,
			InputSchema: sceneSchema,
			Keywords:    []string{"scene", "create"},
		},
		{
			Name:        "runtime.inspect_tree",
			Description: "Inspect the live tree.",
			LegacyAlias: "inspect_runtime_tree",
			Visibility:  registry.Visibility{Full: true, Legacy: true},
			Backend:     channel.KindEditor,
		},
		{
			Name:        "tilemap.paint",
			Description: "Paint tilemap cells.",
			Visibility:  registry.Visibility{Full: true},
			Backend:     channel.KindHeadless,
			Bulk:        true,
		},
	}
}

type fixture struct {
	router   *Router
	headless *scriptedChannel
	editor   *scriptedChannel
}

func newFixture(t *testing.T, profile registry.Profile) *fixture {
	t.Helper()

	reg, err := registry.New(testDefs())
	if err != nil {
		t.Fatalf("registry.New() error = %v", err)
	}

	headless := &scriptedChannel{kind: channel.KindHeadless, state: channel.Ready}
	ed := &scriptedChannel{kind: channel.KindEditor, state: channel.Ready}

	sup := supervisor.New(supervisor.Config{})
	if err := sup.Register(headless); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := sup.Register(ed); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	r, err := New(Config{
		Registry:   reg,
		Catalog:    catalog.New(reg),
		Supervisor: sup,
		Profile:    profile,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{router: r, headless: headless, editor: ed}
}

func dispatchErr(t *testing.T, f *fixture, tool string, args map[string]any) *Error {
	t.Helper()
	_, err := f.router.Dispatch(context.Background(), tool, args)
	if err == nil {
		t.Fatalf("Dispatch(%s) succeeded, want error", tool)
	}
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("Dispatch(%s) error = %T, want *Error", tool, err)
	}
	if derr.RequestID == "" {
		t.Errorf("Dispatch(%s) error carries no request id", tool)
	}
	return derr
}

func TestDispatch_Success(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.headless.result = map[string]any{"path": "res://main.tscn"}

	args := map[string]any{"path": "res://main.tscn", "root_type": "Node2D"}
	res, err := f.router.Dispatch(context.Background(), "scene.create", args)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.IsError {
		t.Error("Result.IsError = true, want false")
	}
	if f.headless.lastMethod != "scene.create" {
		t.Errorf("dispatched method = %q, want scene.create", f.headless.lastMethod)
	}
}

func TestDispatch_AliasEquivalence(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.headless.result = map[string]any{"path": "res://main.tscn"}
	args := map[string]any{"path": "res://main.tscn", "root_type": "Node2D"}

	canonical, err := f.router.Dispatch(context.Background(), "scene.create", args)
	if err != nil {
		t.Fatalf("Dispatch(canonical) error = %v", err)
	}
	methodViaCanonical := f.headless.lastMethod

	legacy, err := f.router.Dispatch(context.Background(), "create_scene", args)
	if err != nil {
		t.Fatalf("Dispatch(legacy alias) error = %v", err)
	}

	if f.headless.lastMethod != methodViaCanonical {
		t.Errorf("alias dispatched method %q, canonical dispatched %q", f.headless.lastMethod, methodViaCanonical)
	}
	if !reflect.DeepEqual(canonical, legacy) {
		t.Errorf("alias result %+v differs from canonical result %+v", legacy, canonical)
	}
}

func TestDispatch_HiddenToolStillDispatchable(t *testing.T) {
	// Compact profile does not advertise runtime.inspect_tree; dispatch by
	// name must work anyway.
	f := newFixture(t, registry.ProfileCompact)
	f.editor.result = map[string]any{"node_count": 1}

	res, err := f.router.Dispatch(context.Background(), "inspect_runtime_tree", nil)
	if err != nil {
		t.Fatalf("Dispatch(hidden tool) error = %v", err)
	}
	if res.IsError {
		t.Error("Result.IsError = true, want false")
	}
}

func TestDispatch_UnknownToolWithSuggestion(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)

	derr := dispatchErr(t, f, "scene_create", nil)
	if derr.Kind != KindUnknownTool {
		t.Errorf("Kind = %s, want %s", derr.Kind, KindUnknownTool)
	}
	if derr.Suggestion != "scene.create" {
		t.Errorf("Suggestion = %q, want scene.create", derr.Suggestion)
	}
}

func TestDispatch_ValidationErrorNamesFields(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)

	derr := dispatchErr(t, f, "scene.create", map[string]any{"path": "res://main.tscn"})
	if derr.Kind != KindValidation {
		t.Errorf("Kind = %s, want %s", derr.Kind, KindValidation)
	}
	if !reflect.DeepEqual(derr.Fields, []string{"root_type"}) {
		t.Errorf("Fields = %v, want [root_type]", derr.Fields)
	}
	// Validation fails locally; nothing reaches the backend.
	if f.headless.lastMethod != "" {
		t.Errorf("backend was called with %q during a validation failure", f.headless.lastMethod)
	}
}

func TestDispatch_BackendUnavailable(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.editor.state = channel.Degraded

	derr := dispatchErr(t, f, "runtime.inspect_tree", nil)
	if derr.Kind != KindUnavailable {
		t.Errorf("Kind = %s, want %s", derr.Kind, KindUnavailable)
	}
}

func TestDispatch_ErrorTranslation(t *testing.T) {
	tests := []struct {
		name    string
		callErr error
		want    ErrorKind
	}{
		{"timeout", channel.ErrTimeout, KindTimeout},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"unavailable", channel.ErrUnavailable, KindUnavailable},
		{"closed", channel.ErrClosed, KindUnavailable},
		{"protocol", channel.ErrProtocol, KindProtocol},
		{"unclassified", errors.New("mystery"), KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, registry.ProfileFull)
			f.editor.err = tt.callErr

			derr := dispatchErr(t, f, "runtime.inspect_tree", nil)
			if derr.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", derr.Kind, tt.want)
			}
			if !errors.Is(derr, tt.callErr) {
				t.Errorf("cause %v not preserved", tt.callErr)
			}
		})
	}
}

func TestDispatch_OperationFailureIsResultNotError(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.editor.err = &wrapErr{msg: "no node at path", inner: channel.ErrOperationFailed}

	res, err := f.router.Dispatch(context.Background(), "runtime.inspect_tree", nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want IsError result", err)
	}
	if !res.IsError {
		t.Fatal("Result.IsError = false, want true")
	}
}

type wrapErr struct {
	msg   string
	inner error
}

func (e *wrapErr) Error() string { return e.inner.Error() + ": " + e.msg }
func (e *wrapErr) Unwrap() error { return e.inner }

func TestDispatch_ContextCanceledPassesThrough(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.editor.err = context.Canceled

	_, err := f.router.Dispatch(context.Background(), "runtime.inspect_tree", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Dispatch() error = %v, want context.Canceled", err)
	}
	var derr *Error
	if errors.As(err, &derr) {
		t.Error("cancellation should not be wrapped in the taxonomy")
	}
}

func TestDispatch_BulkAllOK(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.headless.result = map[string]any{
		"items": []any{
			map[string]any{"index": float64(0), "ok": true},
			map[string]any{"index": float64(1), "ok": true},
		},
	}

	res, err := f.router.Dispatch(context.Background(), "tilemap.paint", nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.IsError {
		t.Error("Result.IsError = true, want false")
	}
}

func TestDispatch_BulkPartialFailure(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.headless.result = map[string]any{
		"items": []any{
			map[string]any{"index": float64(0), "ok": true},
			map[string]any{"index": float64(1), "ok": false, "error": "cell out of bounds"},
			map[string]any{"index": float64(2), "ok": true},
		},
	}

	derr := dispatchErr(t, f, "tilemap.paint", nil)
	if derr.Kind != KindPartialFailure {
		t.Fatalf("Kind = %s, want %s", derr.Kind, KindPartialFailure)
	}
	if len(derr.Items) != 3 {
		t.Fatalf("Items = %d entries, want 3", len(derr.Items))
	}
	want := ItemStatus{Index: 1, OK: false, Error: "cell out of bounds"}
	if derr.Items[1] != want {
		t.Errorf("Items[1] = %+v, want %+v", derr.Items[1], want)
	}
}

func TestNew_RequiresComponents(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() should fail without components")
	}
}

func TestDispatch_ExactlyOneOutcome(t *testing.T) {
	f := newFixture(t, registry.ProfileFull)
	f.headless.result = map[string]any{"ok": true}

	res, err := f.router.Dispatch(context.Background(), "scene.create",
		map[string]any{"path": "res://a.tscn", "root_type": "Node2D"})
	if err != nil && res.Content != nil {
		t.Error("Dispatch() returned both a result and an error")
	}
	if err == nil && res.Content == nil {
		t.Error("Dispatch() returned neither a result nor an error")
	}
}
