// ares-mcp is a standalone MCP server for the ARES setup engine. It reads and
// writes the same config file, training script and history database as
// ares-setup, serving configuration tools over stdio.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aresml/arescfg"
	"github.com/aresml/arescfg/internal/logging"
	"github.com/aresml/arescfg/internal/storage"
)

func main() {
	_ = godotenv.Load()

	settingsPath := flag.String("settings", storage.DefaultSettingsFile, "path to settings file (YAML or TOML)")
	pollInterval := flag.Duration("poll", 0, "check the configured feeds in the background at this interval (0 disables)")
	flag.Parse()

	logger := logging.New(os.Stderr, "ares-mcp")

	settings, err := storage.LoadSettings(*settingsPath)
	if err != nil {
		logger.Error("load settings", "error", err)
		os.Exit(1)
	}
	settings.ApplyEnv(os.Getenv)

	// stdout carries the protocol, so the engine never prompts or prints.
	engine, err := arescfg.NewEngine(arescfg.EngineConfig{
		Settings: settings,
		In:       strings.NewReader(""),
		Out:      io.Discard,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	srv := newServer(engine, logger)
	if *pollInterval > 0 {
		srv.poller.start(ctx, *pollInterval)
	}

	err = srv.run(ctx, &mcp.StdioTransport{})
	stop()
	srv.poller.stop()
	engine.Close()
	if err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
