// Command godot-mcp serves the Godot tool surface over MCP on stdio.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/HaD0Yun/godot-mcp/bridge"
	"github.com/HaD0Yun/godot-mcp/config"
	"github.com/HaD0Yun/godot-mcp/server"
)

func main() {
	// stdout carries the MCP session; diagnostics go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bridge.New(bridge.Options{Config: cfg, Logger: log})
	if err != nil {
		log.Error("build bridge", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(server.Options{Bridge: b, Logger: log})
	if err != nil {
		log.Error("build server", "error", err)
		os.Exit(1)
	}

	log.Info("serving", "profile", cfg.Profile, "project", cfg.ProjectPath)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}
