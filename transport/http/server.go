package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/cocos-mcp/cocos-mcp-go/config"
	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/transport/shared"
)

const (
	sessionIdleTimeout     = 10 * time.Minute
	sessionCleanupInterval = time.Minute
)

// Server is the Streamable HTTP endpoint. MCP clients and the editor
// extension both connect here; with the broker bridge, editor commands are
// pushed down the extension's SSE stream.
type Server struct {
	toolManager    *tools.Manager
	sessionManager *SessionManager
	broker         *editorbus.Broker
	readResource   shared.ResourceReader
	config         *config.Config
	echo           *echo.Echo

	stopOnce sync.Once
	stop     chan struct{}
}

// NewServer wires the HTTP transport. broker may be nil when the editor is
// reached through the HTTP bridge.
func NewServer(cfg *config.Config, toolManager *tools.Manager, broker *editorbus.Broker) *Server {
	var presence *editorbus.Presence
	if broker != nil {
		presence = broker.Presence()
	}

	s := &Server{
		toolManager:  toolManager,
		broker:       broker,
		readResource: shared.NewResourceReader(toolManager, presence),
		config:       cfg,
		echo:         echo.New(),
		stop:         make(chan struct{}),
	}
	s.sessionManager = NewSessionManager(func(sessionID string) {
		if presence != nil {
			presence.Remove(sessionID)
		}
	})
	if broker != nil {
		broker.SetSender(s.sessionManager.Notify)
	}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				logger.Warn("HTTP request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			logger.Debug("HTTP request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, headerSessionID, headerProtocolVersion, "Last-Event-ID"},
		ExposeHeaders: []string{headerSessionID},
	}))
	RegisterRoutes(s.echo, s)
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	go s.startCleanupGoroutine()

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	logger.Info("Streamable HTTP server starting to listen", "address", addr, "editor_bridge", s.bridgeMode())
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.echo.Shutdown(ctx)
}

func (s *Server) startCleanupGoroutine() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := s.sessionManager.CleanupSessions(sessionIdleTimeout); removed > 0 {
				logger.Info("Expired idle MCP sessions", "count", removed)
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Server) bridgeMode() string {
	if s.broker == nil {
		return config.EditorBridgeHTTP
	}
	return config.EditorBridgeBroker
}

// presence is nil on the HTTP bridge.
func (s *Server) presence() *editorbus.Presence {
	if s.broker == nil {
		return nil
	}
	return s.broker.Presence()
}

func (s *Server) GetToolManager() *tools.Manager {
	return s.toolManager
}

func (s *Server) GetSessionManager() *SessionManager {
	return s.sessionManager
}

func (s *Server) GetConfig() *config.Config {
	return s.config
}
