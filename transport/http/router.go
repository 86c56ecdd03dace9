package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcp/jsonrpc"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
	"github.com/cocos-mcp/cocos-mcp-go/transport/shared"
)

const maxJSONRPCBodyBytes = 1 << 20

const (
	headerSessionID       = "MCP-Session-Id"
	headerProtocolVersion = "MCP-Protocol-Version"
)

var supportedProtocolVersions = map[string]struct{}{
	"2024-11-05": {},
	"2025-03-26": {},
	"2025-06-18": {},
	"2025-11-25": {},
}

func RegisterRoutes(e *echo.Echo, s *Server) {
	e.GET("/", s.handleHTTPInfo)
	e.POST("/mcp", s.handleStreamableHTTPPost)
	e.GET("/mcp", s.handleStreamableHTTPGet)
	e.DELETE("/mcp", s.handleStreamableHTTPDelete)
	e.OPTIONS("/mcp", s.handleOptions)
}

// rejectRequest writes a JSON-RPC invalid-request error without an id.
func rejectRequest(c echo.Context, status int, message string) error {
	return c.JSON(status, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrInvalidRequest), message, nil))
}

func (s *Server) handleHTTPInfo(c echo.Context) error {
	logger.Debug("HTTP info requested", "remote_addr", c.RealIP())
	info := map[string]any{
		"name":    mcp.ServerName,
		"version": mcp.ServerVersion,
		"type":    "cocos-mcp",
		"capabilities": map[string]any{
			"stdio":           true,
			"streamable_http": true,
		},
		"streamable_http_endpoint": "/mcp",
		"editor_bridge":            s.bridgeMode(),
		"editor":                   s.editorStatus(),
		"sessions":                 s.sessionManager.Count(),
		"tools":                    len(s.toolManager.ListTools()),
	}
	if s.broker != nil {
		info["pending_editor_commands"] = s.broker.PendingCount()
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleOptions(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (s *Server) handleStreamableHTTPPost(c echo.Context) error {
	logger.Debug("Streamable HTTP POST request", "remote_addr", c.RealIP())

	limitedBody := http.MaxBytesReader(c.Response(), c.Request().Body, maxJSONRPCBodyBytes)
	defer limitedBody.Close()

	body, err := io.ReadAll(limitedBody)
	if err != nil {
		if _, ok := errors.AsType[*http.MaxBytesError](err); ok {
			logger.Warn("Request body too large", "limit_bytes", maxJSONRPCBodyBytes, "remote_addr", c.RealIP())
			return rejectRequest(c, http.StatusRequestEntityTooLarge, "Request body too large")
		}
		logger.Error("Failed to read request body", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrParseError), "Parse error", nil))
	}

	frame, err := shared.ParseFrame(body)
	if err != nil {
		logger.Error("Failed to parse JSON-RPC request", "error", err)
		return c.JSON(http.StatusBadRequest, jsonrpc.NewErrorResponse(nil, int(jsonrpc.ErrParseError), "Parse error", nil))
	}
	if frame.Rejected != nil {
		return c.JSON(http.StatusBadRequest, frame.Rejected)
	}

	requestedVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if requestedVersion != "" && !isSupportedProtocolVersion(requestedVersion) {
		return rejectRequest(c, http.StatusBadRequest, "Unsupported MCP-Protocol-Version header")
	}

	initializing := frame.Request != nil && frame.Request.Method == "initialize"
	sessionID := c.Request().Header.Get(headerSessionID)
	switch {
	case initializing && sessionID == "":
		sessionID = generateSessionID()
		s.sessionManager.CreateSession(sessionID)
		logger.Debug("Created MCP session", "session_id", sessionID)
	case sessionID == "":
		return rejectRequest(c, http.StatusBadRequest, "Missing MCP-Session-Id header")
	case !s.sessionManager.TouchSession(sessionID):
		return rejectRequest(c, http.StatusNotFound, "Unknown MCP session")
	}

	if message := s.protocolVersionProblem(sessionID, requestedVersion, !initializing); message != "" {
		return rejectRequest(c, http.StatusBadRequest, message)
	}
	c.Response().Header().Set(headerSessionID, sessionID)

	if frame.Reply {
		return c.NoContent(http.StatusAccepted)
	}

	request := *frame.Request
	logger.Debug("Streamable HTTP request received", "method", request.Method, "id", request.ID, "session_id", sessionID)
	response, err := s.handleMessage(c.Request().Context(), request, sessionID)
	if err != nil {
		logger.Error("Error handling message", "error", err, "method", request.Method)
		if request.ID == nil {
			return c.NoContent(http.StatusAccepted)
		}
		response = jsonrpc.NewErrorResponse(request.ID, int(jsonrpc.ErrInternalError), "Internal error", nil)
	}
	if request.ID == nil || response == nil {
		return c.NoContent(http.StatusAccepted)
	}
	return c.JSON(http.StatusOK, response)
}

// checkSession validates the session and protocol headers shared by GET and
// DELETE, returning the session id or having already written the error.
func (s *Server) checkSession(c echo.Context) (string, bool, error) {
	sessionID := c.Request().Header.Get(headerSessionID)
	if sessionID == "" {
		return "", false, rejectRequest(c, http.StatusBadRequest, "Missing MCP-Session-Id header")
	}
	if !s.sessionManager.HasSession(sessionID) {
		return "", false, rejectRequest(c, http.StatusNotFound, "Unknown MCP session")
	}
	requestedVersion := strings.TrimSpace(c.Request().Header.Get(headerProtocolVersion))
	if message := s.protocolVersionProblem(sessionID, requestedVersion, true); message != "" {
		return "", false, rejectRequest(c, http.StatusBadRequest, message)
	}
	return sessionID, true, nil
}

func (s *Server) handleStreamableHTTPGet(c echo.Context) error {
	logger.Info("Streamable HTTP GET request", "remote_addr", c.RealIP())

	sessionID, ok, err := s.checkSession(c)
	if !ok {
		return err
	}
	if !acceptsEventStream(c.Request().Header.Get(echo.HeaderAccept)) {
		return rejectRequest(c, http.StatusBadRequest, "Accept header must include text/event-stream")
	}

	streamCtx, stopStream := context.WithCancel(c.Request().Context())
	defer stopStream()

	c.Response().Header().Set(headerSessionID, sessionID)
	transport, err := NewStreamableHTTPTransport(c.Response(), c.Request(), stopStream)
	if err != nil {
		logger.Warn("SSE stream is not available", "session_id", sessionID, "error", err)
		return rejectRequest(c, http.StatusMethodNotAllowed, "SSE stream is not available")
	}
	if err := transport.SendComment("stream opened"); err != nil {
		logger.Warn("Failed to write initial SSE comment", "session_id", sessionID, "error", err)
		return nil
	}

	// Bind only after the first frame is out so editor commands never
	// interleave with stream setup.
	if !s.sessionManager.SetTransport(sessionID, transport) {
		transport.Close()
		logger.Warn("SSE session disappeared before stream binding", "session_id", sessionID)
		return nil
	}
	defer s.sessionManager.ClearTransportIfMatch(sessionID, transport)
	logger.Debug("SSE stream bound", "session_id", sessionID, "editor", s.isEditorSession(sessionID))

	<-streamCtx.Done()
	return nil
}

func (s *Server) handleStreamableHTTPDelete(c echo.Context) error {
	logger.Info("Streamable HTTP DELETE request", "remote_addr", c.RealIP())

	sessionID, ok, err := s.checkSession(c)
	if !ok {
		return err
	}
	if s.isEditorSession(sessionID) {
		logger.Info("Editor session closed by client", "session_id", sessionID)
	}
	s.sessionManager.RemoveSession(sessionID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleMessage(ctx context.Context, msg jsonrpc.Request, sessionID string) (any, error) {
	switch msg.Method {
	case "initialize":
		logger.Debug("Handling initialize message", "request_id", msg.ID)
		return s.handleInit(msg, sessionID), nil
	case "initialized", "notifications/initialized":
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil), nil
		}
		s.sessionManager.MarkInitialized(sessionID)
		return nil, nil
	default:
		opts := shared.CallOptions{
			Session: &types.MCPContext{
				SessionID:          sessionID,
				SessionInitialized: s.sessionManager.IsInitialized(sessionID),
			},
		}
		return shared.DispatchStandardMethod(ctx, msg, s.toolManager, s.readResource, opts), nil
	}
}

func (s *Server) handleInit(msg jsonrpc.Request, sessionID string) *jsonrpc.Response {
	negotiated := negotiateProtocolVersion(msg.Params)
	s.sessionManager.SetProtocolVersion(sessionID, negotiated)

	return jsonrpc.NewResponse(msg.ID, map[string]any{
		"type":            string(mcp.TypeInit),
		"protocolVersion": negotiated,
		"capabilities":    shared.ServerCapabilities(),
		"serverInfo":      shared.ServerInfo(),
		"instructions":    s.instructions(),
		"sessionId":       sessionID,
	})
}

// instructions tells a new client whether editor tools can reach Cocos
// Creator right now.
func (s *Server) instructions() string {
	status := s.editorStatus()
	if connected, _ := status["connected"].(bool); connected {
		if info, ok := status["editor"].(editorbus.EditorInfo); ok && info.ProjectPath != "" {
			return fmt.Sprintf("Cocos Creator %s is connected with project %s.", info.Version, info.ProjectPath)
		}
		return "Cocos Creator is connected."
	}
	if s.broker == nil {
		return "Editor tools are relayed to the Cocos Creator extension at " + s.config.Editor.BridgeURL + "."
	}
	return "No Cocos Creator editor is registered yet. Editor tools fail until the cocos-mcp extension connects; validation tools work without it."
}

func (s *Server) editorStatus() map[string]any {
	return shared.EditorStatus(s.presence(), time.Now().UTC())
}

func (s *Server) isEditorSession(sessionID string) bool {
	presence := s.presence()
	if presence == nil {
		return false
	}
	reg, ok := presence.Latest()
	return ok && reg.SessionID == sessionID
}

func generateSessionID() string {
	return "session_" + uuid.NewString()
}

// protocolVersionProblem returns the rejection message for the
// MCP-Protocol-Version header, or "" when the header is acceptable. Once a
// session has negotiated a version the header must repeat it.
func (s *Server) protocolVersionProblem(sessionID, requested string, requireHeader bool) string {
	negotiated, _ := s.sessionManager.GetProtocolVersion(sessionID)
	negotiated = strings.TrimSpace(negotiated)
	if requested == "" {
		if requireHeader && negotiated == "" {
			return "Missing MCP-Protocol-Version header"
		}
		return ""
	}
	if !isSupportedProtocolVersion(requested) || (negotiated != "" && negotiated != requested) {
		return "Invalid MCP-Protocol-Version header"
	}
	return ""
}

func isSupportedProtocolVersion(version string) bool {
	if version == mcp.ProtocolVersion {
		return true
	}
	_, ok := supportedProtocolVersions[version]
	return ok
}

func acceptsEventStream(acceptHeader string) bool {
	for _, part := range strings.Split(acceptHeader, ",") {
		mime, _, _ := strings.Cut(part, ";")
		if strings.EqualFold(strings.TrimSpace(mime), "text/event-stream") {
			return true
		}
	}
	return false
}

func negotiateProtocolVersion(paramsRaw json.RawMessage) string {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err == nil && isSupportedProtocolVersion(params.ProtocolVersion) {
		return params.ProtocolVersion
	}
	return mcp.ProtocolVersion
}
