package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcp/jsonrpc"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/transport/shared"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type stdioClient struct {
	stdin  *io.PipeWriter
	stdout *bufio.Scanner
	nextID int
}

func startStdio(t *testing.T, bus editorbus.Bus, hidden func(string) bool) *stdioClient {
	t.Helper()
	suite, err := tools.NewSuite(tools.Dependencies{Bus: bus, ProjectPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = suite.Close() })

	manager := tools.NewManager()
	require.NoError(t, suite.Register(manager))

	server, err := NewStdioServer(manager, Options{
		Hidden:       hidden,
		ReadResource: shared.NewResourceReader(manager, nil),
	})
	require.NoError(t, err)

	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Listen(ctx, stdinR, stdoutW)
	}()
	t.Cleanup(func() {
		cancel()
		_ = stdinW.Close()
		_ = stdoutR.Close()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	scanner := bufio.NewScanner(stdoutR)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	client := &stdioClient{stdin: stdinW, stdout: scanner}

	init := client.request(t, "initialize", map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.1.0"},
	})
	require.Nil(t, init["error"])
	client.notify(t, "notifications/initialized")
	return client
}

func (c *stdioClient) notify(t *testing.T, method string) {
	t.Helper()
	frame, err := json.Marshal(map[string]any{"jsonrpc": jsonrpc.Version, "method": method})
	require.NoError(t, err)
	_, err = c.stdin.Write(append(frame, '\n'))
	require.NoError(t, err)
}

func (c *stdioClient) request(t *testing.T, method string, params any) map[string]any {
	t.Helper()
	c.nextID++
	frame, err := json.Marshal(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      c.nextID,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)
	_, err = c.stdin.Write(append(frame, '\n'))
	require.NoError(t, err)

	require.True(t, c.stdout.Scan(), "no response for %s", method)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(c.stdout.Bytes(), &resp))
	require.EqualValues(t, c.nextID, resp["id"])
	return resp
}

func toolNames(t *testing.T, resp map[string]any) map[string]bool {
	t.Helper()
	names := map[string]bool{}
	for _, entry := range resp["result"].(map[string]any)["tools"].([]any) {
		names[entry.(map[string]any)["name"].(string)] = true
	}
	return names
}

func TestStdioListsCanonicalToolsOnly(t *testing.T) {
	client := startStdio(t, editorbus.NewRecorder(), func(name string) bool { return name == "safe_string_value" })

	names := toolNames(t, client.request(t, "tools/list", map[string]any{}))
	assert.True(t, names["scene_query"])
	assert.True(t, names["validate_json_params"])
	assert.False(t, names["safe_string_value"])
	assert.False(t, names["query_scene_ready"])
}

func TestStdioCallsToolsAndAliases(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceScene, "query-is-ready", editorbus.Reply{Result: true})
	client := startStdio(t, bus, nil)

	for _, call := range []struct {
		name string
		args map[string]any
	}{
		{name: "scene_query", args: map[string]any{"action": "is_ready"}},
		{name: "query_scene_ready", args: map[string]any{}},
	} {
		resp := client.request(t, "tools/call", map[string]any{"name": call.name, "arguments": call.args})
		require.Nil(t, resp["error"], call.name)
		result := resp["result"].(map[string]any)
		assert.NotEqual(t, true, result["isError"], call.name)
		structured := result["structuredContent"].(map[string]any)
		assert.Equal(t, true, structured["success"], call.name)
		assert.Equal(t, true, structured["data"].(map[string]any)["ready"], call.name)
	}
	assert.Len(t, bus.Calls(), 2)
}

func TestStdioReportsInvalidArguments(t *testing.T) {
	client := startStdio(t, editorbus.NewRecorder(), nil)

	resp := client.request(t, "tools/call", map[string]any{
		"name":      "scene_query",
		"arguments": map[string]any{"action": 42},
	})
	require.Nil(t, resp["error"])
	result := resp["result"].(map[string]any)
	assert.Equal(t, true, result["isError"])
	assert.Equal(t, "invalid_argument", result["structuredContent"].(map[string]any)["kind"])

	resp = client.request(t, "tools/call", map[string]any{"name": "no_such_tool", "arguments": map[string]any{}})
	assert.NotNil(t, resp["error"])
}

func TestStdioReadsResources(t *testing.T) {
	client := startStdio(t, editorbus.NewRecorder(), nil)

	resp := client.request(t, "resources/read", map[string]any{"uri": shared.ResourceToolAliases})
	require.Nil(t, resp["error"])
	contents := resp["result"].(map[string]any)["contents"].([]any)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(map[string]any)["text"], "soft_reload_scene")
}

func TestWithoutAction(t *testing.T) {
	schema := mcp.ObjectSchema("Scene Query", map[string]any{
		"action": map[string]any{"type": "string"},
		"uuid":   map[string]any{"type": "string"},
	}, "action", "uuid")

	trimmed := withoutAction(schema)
	assert.NotContains(t, trimmed.Properties, "action")
	assert.Contains(t, trimmed.Properties, "uuid")
	assert.Equal(t, []string{"uuid"}, trimmed.Required)
	assert.Contains(t, schema.Properties, "action")
}
