package shared

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcp/jsonrpc"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const pageSize = 50

// Resource URIs served by every transport.
const (
	ResourceEditorStatus = "cocos://editor/status"
	ResourceToolAliases  = "cocos://tools/aliases"
)

// ResourceReader resolves a resource URI to a JSON-encodable value.
type ResourceReader func(uri string) (any, error)

func BuildToolsListResponse(msg jsonrpc.Request, tools []mcp.Tool) *jsonrpc.Response {
	sorted := append([]mcp.Tool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return paginate(msg, "tools", sorted)
}

func BuildResourcesListResponse(msg jsonrpc.Request) *jsonrpc.Response {
	return paginate(msg, "resources", defaultResources())
}

// paginate answers a list request with one page of items under key and a
// nextCursor holding the offset of the following page.
func paginate[T any](msg jsonrpc.Request, key string, items []T) *jsonrpc.Response {
	offset, err := ParseCursor(msg.Params, len(items))
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), err.Error(), nil)
	}
	next := min(offset+pageSize, len(items))
	result := map[string]any{key: items[offset:next]}
	if next < len(items) {
		result["nextCursor"] = strconv.Itoa(next)
	}
	return jsonrpc.NewResponse(msg.ID, result)
}

func BuildResourcesReadResponse(msg jsonrpc.Request, readResource ResourceReader) *jsonrpc.Response {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), "Invalid resources/read payload", nil)
	}
	if params.URI == "" {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), "Resource URI is required", nil)
	}
	if readResource == nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), "Resource handler is not configured", nil)
	}

	result, err := readResource(params.URI)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), err.Error(), nil)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInternalError), "Failed to encode resource result", nil)
	}

	return jsonrpc.NewResponse(msg.ID, map[string]any{
		"contents": []map[string]any{
			{
				"uri":      params.URI,
				"mimeType": "application/json",
				"text":     string(resultJSON),
			},
		},
	})
}

func BuildPingResponse(msg jsonrpc.Request) *jsonrpc.Response {
	return jsonrpc.NewResponse(msg.ID, map[string]any{})
}

// CallOptions carry per-transport adjustments to tools/call.
type CallOptions struct {
	// Session is injected into the arguments under "_mcp" when set.
	Session *types.MCPContext
	// Hidden tools are reported as unknown.
	Hidden func(name string) bool
}

// DispatchStandardMethod handles shared non-initialize JSON-RPC methods for all transports.
func DispatchStandardMethod(ctx context.Context, msg jsonrpc.Request, toolManager *tools.Manager, readResource ResourceReader, opts CallOptions) any {
	switch msg.Method {
	case "tools/list":
		return BuildToolsListResponse(msg, VisibleTools(toolManager, opts.Hidden))
	case "resources/list":
		return BuildResourcesListResponse(msg)
	case "resources/read":
		return BuildResourcesReadResponse(msg, readResource)
	case "tools/call":
		return BuildToolCallResponse(ctx, msg, toolManager, opts)
	case "ping":
		return BuildPingResponse(msg)
	case "notifications/cancelled", "notifications/progress":
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidRequest), "Invalid request", nil)
		}
		return nil
	default:
		if msg.ID != nil {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrMethodNotFound), "Method not found", map[string]any{
				"method": msg.Method,
			})
		}
		return nil
	}
}

// VisibleTools lists registered tools minus the hidden ones.
func VisibleTools(toolManager *tools.Manager, hidden func(string) bool) []mcp.Tool {
	all := toolManager.GetTools()
	if hidden == nil {
		return all
	}
	visible := make([]mcp.Tool, 0, len(all))
	for _, tool := range all {
		if !hidden(tool.Name) {
			visible = append(visible, tool)
		}
	}
	return visible
}

// WithMCPContext returns a copy of arguments carrying session under "_mcp".
func WithMCPContext(arguments map[string]any, session types.MCPContext) map[string]any {
	out := make(map[string]any, len(arguments)+1)
	for key, value := range arguments {
		out[key] = value
	}
	out[types.MCPContextKey] = map[string]any{
		"session_id":          session.SessionID,
		"session_initialized": session.SessionInitialized,
	}
	return out
}

func BuildToolCallResponse(ctx context.Context, msg jsonrpc.Request, toolManager *tools.Manager, opts CallOptions) *jsonrpc.Response {
	var toolCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &toolCall); err != nil {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), "Invalid tool call payload", nil)
	}

	toolName := strings.TrimSpace(toolCall.Name)
	if toolName == "" {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), "Tool name is required", nil)
	}
	if opts.Hidden != nil && opts.Hidden(toolName) {
		return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), fmt.Sprintf("%s: %s", tools.ErrToolNotFound, toolName), nil)
	}

	arguments := toolCall.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}
	// Clients cannot supply the session context themselves.
	arguments = types.StripMCPContext(arguments)
	if opts.Session != nil {
		arguments = WithMCPContext(arguments, *opts.Session)
	}

	result, err := toolManager.CallTool(ctx, toolName, arguments)
	if err != nil {
		if tools.IsToolNotFound(err) {
			return jsonrpc.NewErrorResponse(msg.ID, int(jsonrpc.ErrInvalidParams), err.Error(), nil)
		}
		return jsonrpc.NewResponse(msg.ID, BuildToolErrorResult(toolName, err))
	}

	return jsonrpc.NewResponse(msg.ID, BuildToolSuccessResult(toolName, result))
}

// BuildToolErrorResult renders a failed call as an isError result. Semantic
// errors keep their kind and data in structuredContent.
func BuildToolErrorResult(toolName string, err error) map[string]any {
	result := map[string]any{
		"type":    string(mcp.TypeResult),
		"tool":    toolName,
		"content": []map[string]any{{"type": "text", "text": err.Error()}},
		"isError": true,
	}
	if semanticErr, ok := types.AsSemanticError(err); ok {
		structured := map[string]any{
			"kind":    semanticErr.Kind,
			"message": semanticErr.Error(),
		}
		for key, value := range semanticErr.Data {
			structured[key] = value
		}
		result["structuredContent"] = structured
	}
	return result
}

func BuildToolSuccessResult(toolName string, result any) map[string]any {
	return map[string]any{
		"type":              string(mcp.TypeResult),
		"tool":              toolName,
		"content":           ToolContentFromResult(result),
		"structuredContent": result,
		"isError":           false,
	}
}

func ToolContentFromResult(result any) []map[string]any {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return []map[string]any{{"type": "text", "text": "tool call completed"}}
	}
	return []map[string]any{{"type": "text", "text": string(resultJSON)}}
}

func ServerCapabilities() map[string]any {
	return map[string]any{
		"tools":     map[string]any{"listChanged": false},
		"resources": map[string]any{},
	}
}

func ServerInfo() map[string]any {
	return map[string]any{
		"name":    mcp.ServerName,
		"version": mcp.ServerVersion,
	}
}

var errInvalidCursor = errors.New("invalid cursor value")

// ParseCursor reads the list offset from params. A missing or blank cursor
// is the first page; anything past total is rejected.
func ParseCursor(paramsRaw json.RawMessage, total int) (int, error) {
	if len(paramsRaw) == 0 {
		return 0, nil
	}
	var params struct {
		Cursor string `json:"cursor"`
	}
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return 0, errors.New("invalid params payload")
	}
	cursor := strings.TrimSpace(params.Cursor)
	if cursor == "" {
		return 0, nil
	}
	if offset, err := strconv.Atoi(cursor); err == nil && offset >= 0 && offset <= total {
		return offset, nil
	}
	return 0, errInvalidCursor
}

func defaultResources() []map[string]any {
	return []map[string]any{
		{
			"uri":         ResourceEditorStatus,
			"name":        "Editor Status",
			"description": "Registered Cocos Creator editor session and its freshness",
			"mimeType":    "application/json",
		},
		{
			"uri":         ResourceToolAliases,
			"name":        "Legacy Tool Names",
			"description": "Legacy flat tool names and the tool and action each resolves to",
			"mimeType":    "application/json",
		},
	}
}

// Frame is one decoded inbound message. Exactly one of Request, Rejected or
// Reply is set.
type Frame struct {
	Request  *jsonrpc.Request
	Rejected *jsonrpc.Response
	// Reply marks a client response to a server-initiated request.
	Reply bool
}

// ParseFrame decodes a single JSON-RPC message. Batches are rejected.
// An error is returned only for an empty frame.
func ParseFrame(frame []byte) (Frame, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return Frame{}, fmt.Errorf("empty message")
	}
	reject := func(id any, code jsonrpc.ErrorCode, message string) (Frame, error) {
		return Frame{Rejected: jsonrpc.NewErrorResponse(id, int(code), message, nil)}, nil
	}
	if trimmed[0] == '[' {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request")
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return reject(nil, jsonrpc.ErrParseError, "Parse error")
	}
	id, hasID, validID := parseIDFromEnvelope(envelope)
	if !validID {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request")
	}

	var msg jsonrpc.Request
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request")
	}

	if msg.Method == "" {
		_, hasResult := envelope["result"]
		_, hasErr := envelope["error"]
		switch {
		case !hasResult && !hasErr:
			return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request")
		case msg.JSONRPC != jsonrpc.Version || !hasID || (hasResult && hasErr):
			return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request")
		}
		return Frame{Reply: true}, nil
	}

	if msg.JSONRPC != jsonrpc.Version {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request")
	}
	if rawParams, ok := envelope["params"]; ok && !isValidParamsValue(rawParams) {
		return reject(id, jsonrpc.ErrInvalidRequest, "Invalid request")
	}
	if msg.Method == "initialize" && msg.ID == nil {
		return reject(nil, jsonrpc.ErrInvalidRequest, "Invalid request")
	}
	return Frame{Request: &msg}, nil
}

// parseIDFromEnvelope returns the request id, whether one was present, and
// whether it is usable. Ids must be strings or integers.
func parseIDFromEnvelope(envelope map[string]json.RawMessage) (id any, present bool, valid bool) {
	rawID, present := envelope["id"]
	if !present {
		return nil, false, true
	}
	decoder := json.NewDecoder(bytes.NewReader(bytes.TrimSpace(rawID)))
	decoder.UseNumber()
	if err := decoder.Decode(&id); err != nil {
		return nil, true, false
	}
	switch v := id.(type) {
	case string:
		return v, true, true
	case json.Number:
		if isJSONInteger(v) {
			return v, true, true
		}
	}
	return nil, true, false
}

func isValidParamsValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// isJSONInteger accepts any integer that fits in int64 or uint64.
func isJSONInteger(n json.Number) bool {
	if strings.ContainsAny(n.String(), ".eE") {
		return false
	}
	if _, err := n.Int64(); err == nil {
		return true
	}
	_, err := strconv.ParseUint(n.String(), 10, 64)
	return err == nil
}
