package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/tools/debug"
	transporthttp "github.com/cocos-mcp/cocos-mcp-go/transport/http"
	"github.com/cocos-mcp/cocos-mcp-go/transport/shared"
	"github.com/cocos-mcp/cocos-mcp-go/transport/stdio"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	stdio bool
	port  int
	debug bool
}

var serveFlags serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server",
	Long: "Runs the streamable HTTP endpoint the Cocos Creator extension connects to. " +
		"With --stdio, MCP clients are also served over stdin/stdout.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, serveFlags)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.stdio, "stdio", false, "Serve MCP clients over stdin/stdout as well")
	serveCmd.Flags().IntVar(&serveFlags.port, "port", 0, "Override the configured HTTP port")
	serveCmd.Flags().BoolVar(&serveFlags.debug, "debug", false, "Enable debug logging")
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}
	if opts.debug {
		cfg.Server.Debug = true
	}
	level := cfg.Logging.Level
	if cfg.Server.Debug {
		level = "debug"
	}
	if err := logger.Init(logger.GetLevelFromString(level), logger.Format(cfg.Logging.Format), cfg.Logging.Path); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	console := debug.NewConsole()
	logger.SetSink(console.LoggerSink())
	logger.Info("Configuration loaded", "path", path, "port", cfg.Server.Port, "editor_bridge", cfg.Editor.Bridge)

	rt, err := newRuntime(cfg, console)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Failed to close tool runtime", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := transporthttp.NewServer(cfg, rt.manager, rt.broker)
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- server.Start()
	}()

	var stdioErr chan error
	if opts.stdio {
		stdioServer, err := stdio.NewStdioServer(rt.manager, stdio.Options{
			Hidden:       rt.isInternal,
			ReadResource: shared.NewResourceReader(rt.manager, presenceOf(rt)),
		})
		if err != nil {
			return err
		}
		stdioErr = make(chan error, 1)
		go func() {
			logger.Info("Starting MCP server in stdio mode")
			stdioErr <- stdioServer.Listen(ctx, os.Stdin, os.Stdout)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-httpErr:
	case runErr = <-stdioErr:
		if runErr == nil || errors.Is(runErr, context.Canceled) {
			logger.Info("Stdio client disconnected")
			runErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", "error", err)
	}
	return runErr
}
