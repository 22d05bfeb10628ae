// Package bridge assembles the whole Godot surface behind one facade: the
// tool registry, the catalog index, the four backend channels, their
// supervisor, and the dispatch router.
//
// The bridge owns lifecycle. Start brings the supervisor (and through it the
// persistent connections) up; Stop tears everything down. Between the two,
// Dispatch, Search, and Advertised are safe for concurrent use.
package bridge

import (
	"context"

	"github.com/HaD0Yun/godot-mcp/catalog"
	"github.com/HaD0Yun/godot-mcp/channel"
	"github.com/HaD0Yun/godot-mcp/channel/dap"
	"github.com/HaD0Yun/godot-mcp/channel/editor"
	"github.com/HaD0Yun/godot-mcp/channel/headless"
	"github.com/HaD0Yun/godot-mcp/channel/lsp"
	"github.com/HaD0Yun/godot-mcp/config"
	"github.com/HaD0Yun/godot-mcp/godot"
	"github.com/HaD0Yun/godot-mcp/registry"
	"github.com/HaD0Yun/godot-mcp/router"
	"github.com/HaD0Yun/godot-mcp/supervisor"
)

// Options configures a Bridge.
type Options struct {
	// Config is the environment-derived server configuration. Required.
	Config config.Config

	// Tools overrides the built-in tool table. Mostly for tests.
	Tools []registry.Definition

	// Logger is an optional logger shared by every component.
	Logger channel.Logger
}

func (o *Options) applyDefaults() {
	if o.Tools == nil {
		o.Tools = godot.Tools()
	}
	if o.Logger == nil {
		o.Logger = channel.NopLogger{}
	}
}

// Bridge is the assembled server core.
type Bridge struct {
	reg     *registry.Registry
	idx     *catalog.Index
	sup     *supervisor.Supervisor
	rtr     *router.Router
	profile registry.Profile
	log     channel.Logger
}

// New wires a bridge from options. Nothing is connected until Start.
func New(opts Options) (*Bridge, error) {
	opts.applyDefaults()
	cfg := opts.Config

	profile, err := registry.ParseProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(opts.Tools)
	if err != nil {
		return nil, err
	}
	idx := catalog.New(reg)

	sup := supervisor.New(supervisor.Config{
		HealthInterval:   cfg.HealthInterval,
		ReconnectInitial: cfg.ReconnectInitial,
		ReconnectMax:     cfg.ReconnectMax,
		ReconnectRetries: uint(cfg.ReconnectRetries),
		Logger:           opts.Logger,
	})

	channels := []channel.Channel{
		headless.New(headless.Config{
			GodotBin:     cfg.GodotBin,
			ProjectPath:  cfg.ProjectPath,
			BridgeScript: cfg.BridgeScript,
			MaxProcesses: int64(cfg.SpawnPool),
			Logger:       opts.Logger,
		}),
		editor.New(editor.Config{
			Addr:   cfg.EditorAddr,
			Logger: opts.Logger,
		}),
		lsp.New(lsp.Config{
			Addr:     cfg.LSPAddr,
			RootPath: cfg.ProjectPath,
			Logger:   opts.Logger,
		}),
		dap.New(dap.Config{
			Addr:        cfg.DAPAddr,
			ProjectPath: cfg.ProjectPath,
			Logger:      opts.Logger,
		}),
	}
	for _, c := range channels {
		if err := sup.Register(c); err != nil {
			return nil, err
		}
	}

	rtr, err := router.New(router.Config{
		Registry:   reg,
		Catalog:    idx,
		Supervisor: sup,
		Profile:    profile,
		Timeout:    cfg.Timeout,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Bridge{
		reg:     reg,
		idx:     idx,
		sup:     sup,
		rtr:     rtr,
		profile: profile,
		log:     opts.Logger,
	}, nil
}

// Start brings the backend channels up. Persistent backends that are down
// stay Disconnected and are retried by the supervisor's health tick.
func (b *Bridge) Start(ctx context.Context) error {
	return b.sup.Start(ctx)
}

// Stop tears down every channel and stops the supervisor.
func (b *Bridge) Stop() error {
	return b.sup.Stop()
}

// Profile returns the active exposure profile.
func (b *Bridge) Profile() registry.Profile { return b.profile }

// Advertised returns the tool definitions visible under the active profile.
func (b *Bridge) Advertised() []*registry.Definition {
	return b.reg.Advertised(b.profile)
}

// Dispatch routes one tool call. The name may be canonical or any alias,
// visible or not.
func (b *Bridge) Dispatch(ctx context.Context, toolName string, args map[string]any) (router.Result, error) {
	return b.rtr.Dispatch(ctx, toolName, args)
}

// Search queries the catalog. Results include tools hidden from the active
// profile, each flagged with its visibility.
func (b *Bridge) Search(query string) []catalog.Match {
	return b.idx.Search(query, b.profile)
}

// Subscribe registers fn for events from every persistent backend. The
// returned cancel removes the handler. Subscribe before Start to observe
// connection-time events.
func (b *Bridge) Subscribe(fn channel.EventHandler) (cancel func()) {
	cancels := make([]func(), 0, 3)
	for _, src := range b.sup.EventSources() {
		cancels = append(cancels, src.Subscribe(fn))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
