package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/config"
	"github.com/ironsheep/ui-locate-mcp/internal/logging"
	"github.com/ironsheep/ui-locate-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `ui-locate-mcp - MCP server that locates UI elements in screenshots

Usage: ui-locate-mcp [options]

Options:
  --config <path>  YAML configuration file (optional)
  --version, -v    Print version information
  --help, -h       Print this help message

Environment variables override configuration keys, for example:
  UILOCATE_LOG_LEVEL=debug               Enable debug logging
  UILOCATE_PERCEPTION_BASE_URL=<url>     Perception service endpoint
  UILOCATE_CACHE_BACKEND=redis           Share hierarchies through Redis

This server communicates via MCP protocol over stdin/stdout.
Configure it in your MCP client (e.g., Claude Desktop).
`

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&showVersion, "v", false, "print version information")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion || flag.Arg(0) == "version" {
		fmt.Printf("ui-locate-mcp %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ui-locate-mcp: %v\n", err)
		os.Exit(1)
	}

	// stdout is for MCP protocol
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ui-locate-mcp: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		logging.Sync(logger)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting ui-locate-mcp",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("detector_mode", cfg.Detector.Mode),
		zap.String("cache_backend", cfg.Cache.Backend))

	wired, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer wired.Close()

	srv := server.New(wired.service, server.Options{
		Version:     Version,
		MaxFileSize: cfg.Images.MaxFileSize,
	}, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("ui-locate-mcp stopped")
	return nil
}
