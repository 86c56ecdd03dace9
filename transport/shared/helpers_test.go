package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcp/jsonrpc"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

type rawTool struct {
	name    string
	execute func(json.RawMessage) ([]byte, error)
}

func (t rawTool) Name() string        { return t.name }
func (t rawTool) Description() string { return "raw " + t.name }
func (t rawTool) InputSchema() mcp.InputSchema {
	return mcp.ObjectSchema(t.name, nil)
}
func (t rawTool) Execute(_ context.Context, raw json.RawMessage) ([]byte, error) {
	return t.execute(raw)
}

func newTestManager(t *testing.T) *tools.Manager {
	t.Helper()
	manager := tools.NewManager()
	require.NoError(t, manager.RegisterTool(types.NewFuncTool("echo", "Echo arguments", mcp.ObjectSchema("echo", map[string]any{
		"text": map[string]any{"type": "string"},
	}), func(_ context.Context, args types.Args) types.Response {
		return types.OK(map[string]any{"text": args.StringOr("text", "")}, "")
	})))
	require.NoError(t, manager.RegisterTool(rawTool{name: "whoami", execute: func(raw json.RawMessage) ([]byte, error) {
		return json.Marshal(types.DecodeMCPContext(raw))
	}}))
	require.NoError(t, manager.RegisterTool(rawTool{name: "unavailable", execute: func(json.RawMessage) ([]byte, error) {
		return nil, types.NewNotAvailableError("editor is gone", map[string]any{"reason": "editor_not_registered"})
	}}))
	require.NoError(t, manager.RegisterTool(rawTool{name: "broken", execute: func(json.RawMessage) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	}}))
	require.NoError(t, manager.RegisterAlias("say", types.Alias{Tool: "echo"}))
	return manager
}

func request(t *testing.T, id any, method string, params any) jsonrpc.Request {
	t.Helper()
	msg := jsonrpc.Request{JSONRPC: jsonrpc.Version, ID: id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = raw
	}
	return msg
}

func resultMap(t *testing.T, response any) map[string]any {
	t.Helper()
	resp, ok := response.(*jsonrpc.Response)
	require.True(t, ok, "expected *jsonrpc.Response, got %T", response)
	require.Nil(t, resp.Error, "unexpected error: %+v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestToolsListPaginates(t *testing.T) {
	list := make([]mcp.Tool, 0, 120)
	for i := 0; i < 120; i++ {
		list = append(list, mcp.Tool{Name: fmt.Sprintf("tool_%03d", i), InputSchema: mcp.ObjectSchema("", nil)})
	}

	first := resultMap(t, BuildToolsListResponse(request(t, 1, "tools/list", nil), list))
	assert.Len(t, first["tools"], pageSize)
	assert.Equal(t, "50", first["nextCursor"])

	last := resultMap(t, BuildToolsListResponse(request(t, 2, "tools/list", map[string]any{"cursor": "100"}), list))
	assert.Len(t, last["tools"], 20)
	assert.NotContains(t, last, "nextCursor")

	resp := BuildToolsListResponse(request(t, 3, "tools/list", map[string]any{"cursor": "bogus"}), list)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrInvalidParams), resp.Error.Code)
}

func TestDispatchHidesTools(t *testing.T) {
	manager := newTestManager(t)
	hidden := func(name string) bool { return name == "whoami" }

	result := resultMap(t, DispatchStandardMethod(context.Background(), request(t, 1, "tools/list", nil), manager, nil, CallOptions{Hidden: hidden}))
	names := []string{}
	for _, entry := range result["tools"].([]any) {
		names = append(names, entry.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"broken", "echo", "unavailable"}, names)

	resp := DispatchStandardMethod(context.Background(), request(t, 2, "tools/call", map[string]any{"name": "whoami"}), manager, nil, CallOptions{Hidden: hidden}).(*jsonrpc.Response)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrInvalidParams), resp.Error.Code)
}

func TestToolCallSuccessAndAlias(t *testing.T) {
	manager := newTestManager(t)

	result := resultMap(t, BuildToolCallResponse(context.Background(), request(t, 1, "tools/call", map[string]any{
		"name":      "say",
		"arguments": map[string]any{"text": "hi"},
	}), manager, CallOptions{}))

	assert.Equal(t, false, result["isError"])
	assert.Equal(t, "say", result["tool"])
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, true, structured["success"])
	assert.Equal(t, "hi", structured["data"].(map[string]any)["text"])
	content := result["content"].([]any)
	require.Len(t, content, 1)
	assert.Contains(t, content[0].(map[string]any)["text"], `"text":"hi"`)
}

func TestToolCallInjectsSessionContext(t *testing.T) {
	manager := newTestManager(t)
	session := types.MCPContext{SessionID: "sess-1", SessionInitialized: true}

	result := resultMap(t, BuildToolCallResponse(context.Background(), request(t, 1, "tools/call", map[string]any{
		"name": "whoami",
		"arguments": map[string]any{
			"_mcp": map[string]any{"session_id": "forged", "session_initialized": true},
		},
	}), manager, CallOptions{Session: &session}))
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, "sess-1", structured["session_id"])
	assert.Equal(t, true, structured["session_initialized"])

	// Without a transport session the client-supplied context is dropped.
	result = resultMap(t, BuildToolCallResponse(context.Background(), request(t, 2, "tools/call", map[string]any{
		"name": "whoami",
		"arguments": map[string]any{
			"_mcp": map[string]any{"session_id": "forged", "session_initialized": true},
		},
	}), manager, CallOptions{}))
	structured = result["structuredContent"].(map[string]any)
	assert.Equal(t, "", structured["session_id"])
}

func TestToolCallErrors(t *testing.T) {
	manager := newTestManager(t)

	resp := BuildToolCallResponse(context.Background(), request(t, 1, "tools/call", map[string]any{"name": "missing"}), manager, CallOptions{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrInvalidParams), resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "tool not found")

	resp = BuildToolCallResponse(context.Background(), request(t, 2, "tools/call", map[string]any{"name": "  "}), manager, CallOptions{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Tool name is required", resp.Error.Message)

	result := resultMap(t, BuildToolCallResponse(context.Background(), request(t, 3, "tools/call", map[string]any{"name": "unavailable"}), manager, CallOptions{}))
	assert.Equal(t, true, result["isError"])
	structured := result["structuredContent"].(map[string]any)
	assert.Equal(t, "not_available", structured["kind"])
	assert.Equal(t, "editor_not_registered", structured["reason"])
	assert.Equal(t, "editor is gone", structured["message"])

	result = resultMap(t, BuildToolCallResponse(context.Background(), request(t, 4, "tools/call", map[string]any{"name": "broken"}), manager, CallOptions{}))
	assert.Equal(t, true, result["isError"])
	assert.NotContains(t, result, "structuredContent")
	assert.Equal(t, "boom", result["content"].([]any)[0].(map[string]any)["text"])
}

func TestDispatchUnknownMethods(t *testing.T) {
	manager := newTestManager(t)

	resp := DispatchStandardMethod(context.Background(), request(t, 1, "prompts/list", nil), manager, nil, CallOptions{}).(*jsonrpc.Response)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(jsonrpc.ErrMethodNotFound), resp.Error.Code)

	assert.Nil(t, DispatchStandardMethod(context.Background(), request(t, nil, "notifications/whatever", nil), manager, nil, CallOptions{}))
	assert.Nil(t, DispatchStandardMethod(context.Background(), request(t, nil, "notifications/cancelled", nil), manager, nil, CallOptions{}))

	pong := resultMap(t, DispatchStandardMethod(context.Background(), request(t, 2, "ping", nil), manager, nil, CallOptions{}))
	assert.Empty(t, pong)
}

func TestResources(t *testing.T) {
	manager := newTestManager(t)
	presence := editorbus.NewPresence(time.Minute)
	presence.Register("sess-1", editorbus.EditorInfo{Version: "3.8.2", ProjectName: "demo"}, time.Now().UTC())
	reader := NewResourceReader(manager, presence)

	list := resultMap(t, BuildResourcesListResponse(request(t, 1, "resources/list", nil)))
	assert.Len(t, list["resources"], 2)

	status := resultMap(t, BuildResourcesReadResponse(request(t, 2, "resources/read", map[string]any{"uri": ResourceEditorStatus}), reader))
	contents := status["contents"].([]any)
	require.Len(t, contents, 1)
	var editor map[string]any
	require.NoError(t, json.Unmarshal([]byte(contents[0].(map[string]any)["text"].(string)), &editor))
	assert.Equal(t, true, editor["connected"])
	assert.Equal(t, "sess-1", editor["session_id"])
	assert.Equal(t, "3.8.2", editor["editor"].(map[string]any)["version"])

	aliases := resultMap(t, BuildResourcesReadResponse(request(t, 3, "resources/read", map[string]any{"uri": ResourceToolAliases}), reader))
	text := aliases["contents"].([]any)[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, `"name":"say"`)

	resp := BuildResourcesReadResponse(request(t, 4, "resources/read", map[string]any{"uri": "cocos://nope"}), reader)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Unknown resource: cocos://nope", resp.Error.Message)
}

func TestEditorStatusWithoutBroker(t *testing.T) {
	status := EditorStatus(nil, time.Now())
	assert.Equal(t, false, status["connected"])
	assert.Equal(t, "http", status["bridge"])

	presence := editorbus.NewPresence(time.Second)
	now := time.Now().UTC()
	presence.Register("sess-1", editorbus.EditorInfo{}, now.Add(-time.Minute))
	status = EditorStatus(presence, now)
	assert.Equal(t, false, status["connected"])
	assert.Equal(t, "editor_registration_stale", status["reason"])
	assert.Equal(t, "sess-1", status["session_id"])
}

func TestParseFrame(t *testing.T) {
	frame, err := ParseFrame([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.NoError(t, err)
	require.NotNil(t, frame.Request)
	assert.Equal(t, "ping", frame.Request.Method)
	assert.Nil(t, frame.Rejected)
	assert.False(t, frame.Reply)

	cases := []struct {
		name  string
		input string
		code  jsonrpc.ErrorCode
	}{
		{"batch", `[{"jsonrpc":"2.0","id":1,"method":"ping"}]`, jsonrpc.ErrInvalidRequest},
		{"fractional id", `{"jsonrpc":"2.0","id":1.5,"method":"ping"}`, jsonrpc.ErrInvalidRequest},
		{"not json", `{"jsonrpc":`, jsonrpc.ErrParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"ping"}`, jsonrpc.ErrInvalidRequest},
		{"array params", `{"jsonrpc":"2.0","id":1,"method":"ping","params":[]}`, jsonrpc.ErrInvalidRequest},
		{"initialize without id", `{"jsonrpc":"2.0","method":"initialize"}`, jsonrpc.ErrInvalidRequest},
		{"no method", `{"jsonrpc":"2.0","id":1}`, jsonrpc.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, err := ParseFrame([]byte(tc.input))
			require.NoError(t, err)
			assert.Nil(t, frame.Request)
			require.NotNil(t, frame.Rejected)
			assert.Equal(t, int(tc.code), frame.Rejected.Error.Code)
		})
	}

	frame, err = ParseFrame([]byte(`{"jsonrpc":"2.0","id":"x","result":{}}`))
	require.NoError(t, err)
	assert.True(t, frame.Reply)

	_, err = ParseFrame([]byte("   "))
	assert.Error(t, err)
}
