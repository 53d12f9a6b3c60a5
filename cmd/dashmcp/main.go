package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sabio/insight-dash/pkg/app"
	"github.com/sabio/insight-dash/pkg/config"
	"github.com/sabio/insight-dash/pkg/logging"
	"github.com/sabio/insight-dash/pkg/mcpserver"
)

var (
	configFile = flag.String("config", "", "Path to a config file (default: insight-dash.yaml in . or ./configs)")
	transport  = flag.String("transport", "", "Transport mode: stdio or sse (overrides mcp.transport)")
	addr       = flag.String("addr", "", "Address to listen on in SSE mode (overrides mcp.addr)")
)

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if *transport != "" {
		cfg.MCP.Transport = *transport
	}
	if *addr != "" {
		cfg.MCP.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logging.Sync(logger)

	logger.Info("Starting insight-dash MCP server", "backend", cfg.Backend.BaseURL, "transport", cfg.MCP.Transport)

	a, err := app.New(cfg, logger, app.Views{})
	if err != nil {
		return err
	}

	opts := mcpserver.Options{
		RateLimitRPS:   cfg.MCP.RateLimitRPS,
		RateLimitBurst: cfg.MCP.RateLimitBurst,
		Logger:         logger,
	}
	if lister, ok := a.Charts.(mcpserver.ChartLister); ok {
		opts.Charts = lister
	}
	srv := mcpserver.NewMCPServer(a.Coordinator, opts)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cfg.MCP.Transport {
	case "stdio":
		err = srv.ServeStdio(ctx, os.Stdin, os.Stdout)
	case "sse":
		err = srv.ServeSSE(ctx, cfg.MCP.Addr)
	default:
		return fmt.Errorf("unknown transport mode: %s (must be stdio or sse)", cfg.MCP.Transport)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "insight-dash-mcp: %v\n", err)
		os.Exit(1)
	}
}
