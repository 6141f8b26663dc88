package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/metabase-mcp/internal/common"
	"github.com/bobmcallan/metabase-mcp/internal/config"
	"github.com/bobmcallan/metabase-mcp/internal/metabase"
	httpserver "github.com/bobmcallan/metabase-mcp/internal/server"
)

func main() {
	stdio := flag.Bool("stdio", false, "Use stdio transport (for Claude Desktop)")
	configFile := flag.String("config", "metabase-mcp.toml", "Path to config file")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	showVersion := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("metabase-mcp version %s\n", config.GetFullVersion())
		os.Exit(0)
	}

	// .env is best-effort; deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	config.ApplyFlagOverrides(cfg, *stdio, *port)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := common.NewLoggerFromConfig(cfg.Logging)

	client := metabase.New(metabase.Options{
		BaseURL:        cfg.Metabase.URL,
		APIKey:         cfg.Metabase.APIKey,
		ConnectTimeout: cfg.HTTP.ConnectTimeout(),
		ReadTimeout:    cfg.HTTP.ReadTimeout(),
		EnableHTTP2:    cfg.HTTP.EnableHTTP2,
	}, logger)

	// Create MCP server with tool definitions
	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		config.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register all MCP tools
	registerTools(mcpServer, client, logger)

	if cfg.Server.Transport == config.TransportStdio {
		// Stdio transport reads stdin and writes stdout.
		if err := server.ServeStdio(mcpServer); err != nil {
			fmt.Fprintf(os.Stderr, "stdio server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Streamable HTTP transport, stateless so each call stands alone
	streamable := server.NewStreamableHTTPServer(mcpServer,
		server.WithStateLess(true),
	)

	srv := httpserver.New(cfg, logger, streamable)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
			os.Exit(1)
		}
	}
}
