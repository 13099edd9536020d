package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/bol-extractor/internal/adapters/mcp"
	"github.com/kirillkom/bol-extractor/internal/bootstrap"
	"github.com/kirillkom/bol-extractor/internal/config"
	"github.com/kirillkom/bol-extractor/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the protocol; logs go to stderr.
	slog.SetDefault(logging.New(os.Stderr, "mcp", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := bootstrap.New(context.Background(), cfg, nil)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.Intake, app.Configurator, app.Questions)
	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
	}
}
