// Package router resolves tool calls and dispatches them to backend
// channels.
//
// The dispatch pipeline is: resolve the name (canonical first, then alias) →
// validate arguments against the tool's schema → acquire the bound channel
// from the supervisor → execute under a mandatory deadline → normalize the
// channel's output into a Result.
//
// The active profile restricts the advertised surface, not the dispatchable
// surface: a tool hidden from the current profile is still dispatchable by
// canonical name or any alias if the caller already knows it. That asymmetry
// is what makes catalog discovery actionable.
package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HaD0Yun/godot-mcp/catalog"
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/registry"
	"github.com/HaD0Yun/godot-mcp/schema"
	"github.com/HaD0Yun/godot-mcp/supervisor"
)

// DefaultTimeout bounds a dispatch when the caller supplies no deadline.
const DefaultTimeout = 30 * time.Second

// Result is the normalized outcome of a successful dispatch. Exactly one of
// a Result or an *Error comes back from Dispatch, never both, never neither.
type Result struct {
	// Content is the normalized backend payload.
	Content any `json:"content"`

	// IsError marks a tool-level failure reported by the backend; the call
	// itself completed.
	IsError bool `json:"isError"`
}

// Config configures a Router.
type Config struct {
	// Registry is the tool table. Required.
	Registry *registry.Registry

	// Catalog supplies suggestions for unknown names. Required.
	Catalog *catalog.Index

	// Supervisor owns the backend channels. Required.
	Supervisor *supervisor.Supervisor

	// Profile is the immutable exposure profile selected at startup.
	Profile registry.Profile

	// Timeout is the default dispatch deadline. Default 30s.
	Timeout time.Duration

	// Logger is an optional logger for dispatch events.
	Logger channel.Logger
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("router: Registry is required")
	}
	if c.Catalog == nil {
		return errors.New("router: Catalog is required")
	}
	if c.Supervisor == nil {
		return errors.New("router: Supervisor is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Profile == "" {
		c.Profile = registry.ProfileFull
	}
	if c.Logger == nil {
		c.Logger = channel.NopLogger{}
	}
}

// Router dispatches tool calls under one exposure profile.
type Router struct {
	reg     *registry.Registry
	idx     *catalog.Index
	sup     *supervisor.Supervisor
	schemas map[string]*schema.Compiled
	profile registry.Profile
	timeout time.Duration
	log     channel.Logger
}

// New creates a router and compiles every tool's input schema.
func New(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	schemas := make(map[string]*schema.Compiled)
	for _, def := range cfg.Registry.All() {
		compiled, err := schema.Compile(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", def.Name, err)
		}
		schemas[def.Name] = compiled
	}

	return &Router{
		reg:     cfg.Registry,
		idx:     cfg.Catalog,
		sup:     cfg.Supervisor,
		schemas: schemas,
		profile: cfg.Profile,
		timeout: cfg.Timeout,
		log:     cfg.Logger,
	}, nil
}

// Profile returns the active exposure profile.
func (r *Router) Profile() registry.Profile { return r.profile }

// Dispatch resolves toolName, validates args, and executes the call on the
// bound backend channel. It returns exactly one of a Result or an error;
// taxonomy failures are *Error.
func (r *Router) Dispatch(ctx context.Context, toolName string, args map[string]any) (Result, error) {
	rid := uuid.NewString()

	def, err := r.reg.Lookup(toolName)
	if err != nil {
		suggestion := r.idx.Suggest(toolName)
		r.log.Info("dispatch: unknown tool", "request_id", rid, "tool", toolName, "suggestion", suggestion)
		return Result{}, &Error{
			Kind:       KindUnknownTool,
			RequestID:  rid,
			Tool:       toolName,
			Message:    fmt.Sprintf("no tool named %q", toolName),
			Suggestion: suggestion,
			cause:      err,
		}
	}

	if !def.Visibility.In(r.profile) {
		// Dispatchable anyway; the profile only governs advertising.
		r.log.Info("dispatch: tool hidden from active profile", "request_id", rid, "tool", def.Name, "profile", string(r.profile))
	}

	if err := r.schemas[def.Name].Validate(args); err != nil {
		var fieldErr *schema.FieldError
		fields := []string(nil)
		if errors.As(err, &fieldErr) {
			fields = fieldErr.Fields
		}
		return Result{}, &Error{
			Kind:      KindValidation,
			RequestID: rid,
			Tool:      toolName,
			Message:   err.Error(),
			Fields:    fields,
			cause:     err,
		}
	}

	ch, err := r.sup.Acquire(def.Backend)
	if err != nil {
		return Result{}, &Error{
			Kind:      KindUnavailable,
			RequestID: rid,
			Tool:      toolName,
			Message:   err.Error(),
			cause:     err,
		}
	}

	callCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	started := time.Now()
	value, err := ch.Call(callCtx, def.Method, args)
	elapsed := time.Since(started)
	if err != nil {
		if errors.Is(err, channel.ErrOperationFailed) {
			// The call completed; the operation failed backend-side. That is
			// a tool-level outcome, not a taxonomy failure.
			r.log.Info("dispatch: operation failed", "request_id", rid, "tool", def.Name, "backend", string(def.Backend), "elapsed", elapsed.String(), "error", err)
			return Result{Content: map[string]any{"error": err.Error()}, IsError: true}, nil
		}
		return Result{}, r.translate(rid, def, err, elapsed)
	}

	r.log.Info("dispatch: ok", "request_id", rid, "tool", def.Name, "backend", string(def.Backend), "elapsed", elapsed.String())
	if def.Bulk {
		return r.normalizeBulk(rid, toolName, value)
	}
	return Result{Content: value}, nil
}

// translate maps channel-boundary errors into the taxonomy. Everything that
// reaches here prevented the call from completing; backend-reported
// operation failures were already peeled off in Dispatch.
func (r *Router) translate(rid string, def *registry.Definition, err error, elapsed time.Duration) error {
	r.log.Warn("dispatch: failed", "request_id", rid, "tool", def.Name, "backend", string(def.Backend), "elapsed", elapsed.String(), "error", err)

	switch {
	case errors.Is(err, channel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Error{
			Kind:      KindTimeout,
			RequestID: rid,
			Tool:      def.Name,
			Message:   fmt.Sprintf("deadline exceeded on the %s channel", def.Backend),
			cause:     err,
		}
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, channel.ErrUnavailable), errors.Is(err, channel.ErrClosed):
		return &Error{
			Kind:      KindUnavailable,
			RequestID: rid,
			Tool:      def.Name,
			Message:   fmt.Sprintf("the %s channel is unavailable", def.Backend),
			cause:     err,
		}
	case errors.Is(err, channel.ErrProtocol):
		// Raw payloads were already logged at the channel; keep the caller
		// message generic.
		return &Error{
			Kind:      KindProtocol,
			RequestID: rid,
			Tool:      def.Name,
			Message:   fmt.Sprintf("the %s backend returned an unusable payload", def.Backend),
			cause:     err,
		}
	default:
		return &Error{
			Kind:      KindProtocol,
			RequestID: rid,
			Tool:      def.Name,
			Message:   err.Error(),
			cause:     err,
		}
	}
}

// normalizeBulk turns a bulk backend payload into either a Result carrying
// the per-item list or a PartialFailure error when items failed.
func (r *Router) normalizeBulk(rid, toolName string, value any) (Result, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return Result{Content: value}, nil
	}
	rawItems, ok := obj["items"].([]any)
	if !ok {
		return Result{Content: value}, nil
	}

	statuses := make([]ItemStatus, 0, len(rawItems))
	failed := 0
	for i, raw := range rawItems {
		st := ItemStatus{Index: i, OK: true}
		if m, ok := raw.(map[string]any); ok {
			if okVal, present := m["ok"].(bool); present {
				st.OK = okVal
			}
			if msg, present := m["error"].(string); present {
				st.Error = msg
			}
			if idx, present := m["index"].(float64); present {
				st.Index = int(idx)
			}
		}
		if !st.OK {
			failed++
		}
		statuses = append(statuses, st)
	}

	if failed == 0 {
		return Result{Content: value}, nil
	}
	return Result{}, &Error{
		Kind:      KindPartialFailure,
		RequestID: rid,
		Tool:      toolName,
		Message:   fmt.Sprintf("%d of %d items failed", failed, len(statuses)),
		Items:     statuses,
	}
}
