// Package config loads the server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Every field has a usable default
// except ProjectPath, which must point at a Godot project.
type Config struct {
	// Profile selects the advertised tool surface: compact, full, or legacy.
	Profile string `env:"GODOT_MCP_PROFILE" envDefault:"full"`

	// GodotBin is the engine binary used for headless spawns.
	GodotBin string `env:"GODOT_BIN" envDefault:"godot"`

	// ProjectPath is the directory holding project.godot.
	ProjectPath string `env:"GODOT_PROJECT_PATH"`

	// BridgeScript is the GDScript entry point executed by headless spawns.
	BridgeScript string `env:"GODOT_MCP_BRIDGE_SCRIPT" envDefault:"addons/godot_mcp/bridge.gd"`

	// EditorAddr is the editor addon's command socket.
	EditorAddr string `env:"GODOT_MCP_EDITOR_ADDR" envDefault:"127.0.0.1:9080"`

	// LSPAddr is the engine's language server port.
	LSPAddr string `env:"GODOT_MCP_LSP_ADDR" envDefault:"127.0.0.1:6005"`

	// DAPAddr is the engine's debug adapter port.
	DAPAddr string `env:"GODOT_MCP_DAP_ADDR" envDefault:"127.0.0.1:6006"`

	// Timeout is the default per-dispatch deadline.
	Timeout time.Duration `env:"GODOT_MCP_TIMEOUT" envDefault:"30s"`

	// SpawnPool caps concurrent headless engine processes.
	SpawnPool int `env:"GODOT_MCP_SPAWN_POOL" envDefault:"4"`

	// ReconnectInitial is the first reconnect backoff interval.
	ReconnectInitial time.Duration `env:"GODOT_MCP_RECONNECT_INITIAL" envDefault:"250ms"`

	// ReconnectMax caps the reconnect backoff interval.
	ReconnectMax time.Duration `env:"GODOT_MCP_RECONNECT_MAX" envDefault:"5s"`

	// ReconnectRetries bounds one reconnect round.
	ReconnectRetries int `env:"GODOT_MCP_RECONNECT_RETRIES" envDefault:"8"`

	// HealthInterval paces the recovery ticker for downed connections.
	HealthInterval time.Duration `env:"GODOT_MCP_HEALTH_INTERVAL" envDefault:"15s"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ProjectPath == "" {
		return Config{}, fmt.Errorf("GODOT_PROJECT_PATH is required")
	}
	if cfg.SpawnPool < 1 {
		return Config{}, fmt.Errorf("GODOT_MCP_SPAWN_POOL must be at least 1, got %d", cfg.SpawnPool)
	}
	return cfg, nil
}
