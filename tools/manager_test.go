package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcplog"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.GetLevelFromString("debug"), logger.FormatJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// TestTool implements Tool interface for testing
type TestTool struct {
	name     string
	schema   mcp.InputSchema
	executor func(args json.RawMessage) ([]byte, error)
}

func (t *TestTool) Name() string                 { return t.name }
func (t *TestTool) Description() string          { return "Test tool " + t.name }
func (t *TestTool) InputSchema() mcp.InputSchema { return t.schema }

func (t *TestTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	return t.executor(args)
}

func emptySchema() mcp.InputSchema {
	return mcp.InputSchema{Type: "object", Properties: map[string]any{}, Required: []string{}}
}

func TestToolManager(t *testing.T) {
	manager := NewManager()

	require.NoError(t, manager.RegisterTool(&TestTool{
		name:   "testTool",
		schema: emptySchema(),
		executor: func(json.RawMessage) ([]byte, error) {
			return json.Marshal("test result")
		},
	}))

	result, err := manager.CallTool(context.Background(), "testTool", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "test result", result)

	_, err = manager.CallTool(context.Background(), "nonExistentTool", map[string]any{})
	assert.True(t, IsToolNotFound(err))

	require.NoError(t, manager.RegisterTool(&TestTool{
		name:   "errorTool",
		schema: emptySchema(),
		executor: func(json.RawMessage) ([]byte, error) {
			return nil, fmt.Errorf("test error")
		},
	}))
	_, err = manager.CallTool(context.Background(), "errorTool", nil)
	assert.EqualError(t, err, "test error")

	assert.Error(t, manager.RegisterTool(nil))
	assert.Error(t, manager.RegisterTool(&TestTool{schema: emptySchema()}))
}

func TestConcurrentToolExecution(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.RegisterTool(&TestTool{
		name:   "slowTool",
		schema: emptySchema(),
		executor: func(json.RawMessage) ([]byte, error) {
			time.Sleep(50 * time.Millisecond)
			return json.Marshal("slow result")
		},
	}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := manager.CallTool(context.Background(), "slowTool", map[string]any{})
			assert.NoError(t, err)
			assert.Equal(t, "slow result", result)
		}()
	}
	wg.Wait()
}

func echoActionTool() *types.ActionTool {
	echo := func(_ context.Context, args types.Args) types.Response {
		return types.OK(map[string]any(args), "")
	}
	return types.NewActionTool("echo_tool", "Echo",
		mcp.ObjectSchema("Echo", map[string]any{
			"count": map[string]any{"type": "integer", "minimum": 1},
			"label": map[string]any{"type": "string"},
		}),
		map[string]types.Handler{"first": echo, "second": echo})
}

func TestManagerValidatesArguments(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.RegisterTool(echoActionTool()))

	_, err := manager.ExecuteTool(context.Background(), "echo_tool", json.RawMessage(`{"action":"first","count":0}`))
	semanticErr, ok := types.AsSemanticError(err)
	require.True(t, ok, "expected semantic error, got %v", err)
	assert.Equal(t, types.SemanticKindInvalidArgument, semanticErr.Kind)
	assert.Contains(t, semanticErr.Message, "Invalid arguments for echo_tool")
	assert.Equal(t, "echo_tool", semanticErr.Data["tool"])

	_, err = manager.ExecuteTool(context.Background(), "echo_tool", json.RawMessage(`{"action":"third"}`))
	assert.True(t, types.IsInvalidArgument(err))

	_, err = manager.ExecuteTool(context.Background(), "echo_tool", json.RawMessage(`{"count":2}`))
	assert.True(t, types.IsInvalidArgument(err), "action is required")

	_, err = manager.ExecuteTool(context.Background(), "echo_tool", json.RawMessage(`{"action":`))
	assert.True(t, types.IsInvalidArgument(err))

	out, err := manager.ExecuteTool(context.Background(), "echo_tool", json.RawMessage(`{
		"action": "second",
		"count": 2,
		"_mcp": {"session_id": "s1", "session_initialized": true}
	}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"success":true`)
}

func TestManagerResolvesAliases(t *testing.T) {
	manager := NewManager()
	require.NoError(t, manager.RegisterTool(echoActionTool()))
	require.NoError(t, manager.RegisterAlias("legacy_second", types.Alias{Tool: "echo_tool", Action: "second"}))

	assert.Error(t, manager.RegisterAlias("echo_tool", types.Alias{Tool: "echo_tool"}))
	assert.Error(t, manager.RegisterAlias("dangling", types.Alias{Tool: "missing_tool"}))

	result, err := manager.CallTool(context.Background(), "legacy_second", map[string]any{"label": "x"})
	require.NoError(t, err)
	data := result.(map[string]any)["data"].(map[string]any)
	assert.Equal(t, "second", data["action"])
	assert.Equal(t, "x", data["label"])

	_, isTool := manager.GetTool("legacy_second")
	assert.False(t, isTool)
	assert.Contains(t, manager.Aliases(), "legacy_second")

	names := []string{}
	for _, tool := range manager.GetTools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"echo_tool"}, names)
}

func TestManagerWritesAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	audit, err := mcplog.Open(path)
	require.NoError(t, err)

	manager := NewManager()
	manager.SetAuditLog(audit)
	require.NoError(t, manager.RegisterTool(echoActionTool()))
	require.NoError(t, manager.RegisterAlias("legacy_first", types.Alias{Tool: "echo_tool", Action: "first"}))

	_, err = manager.CallTool(context.Background(), "legacy_first", map[string]any{
		"_mcp": map[string]any{"session_id": "s1", "session_initialized": true},
	})
	require.NoError(t, err)
	_, err = manager.CallTool(context.Background(), "echo_tool", map[string]any{"action": "first", "count": -1})
	require.Error(t, err)
	require.NoError(t, audit.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []mcplog.Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry mcplog.Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "legacy_first", entries[0].Tool)
	assert.Equal(t, "echo_tool", entries[0].ResolvedTool)
	assert.Equal(t, "first", entries[0].Action)
	assert.NotContains(t, entries[0].Params, "_mcp")
	require.NotNil(t, entries[0].Success)
	assert.True(t, *entries[0].Success)
	assert.Nil(t, entries[0].Error)

	assert.Empty(t, entries[1].ResolvedTool)
	require.NotNil(t, entries[1].Error)
	assert.Contains(t, *entries[1].Error, "Invalid arguments")
}

func TestSuiteRegistersEveryModule(t *testing.T) {
	presence := editorbus.NewPresence(time.Second)
	broker := editorbus.NewBroker(presence, time.Second)
	suite, err := NewSuite(Dependencies{Bus: broker, Broker: broker})
	require.NoError(t, err)
	t.Cleanup(func() { _ = suite.Close() })

	manager := NewManager()
	require.NoError(t, suite.Register(manager))

	for _, name := range []string{
		"broadcast_log_management",
		"debug_console",
		"preferences_manage",
		"reference_image_management",
		"scene_management",
		"scene_query",
		"validate_json_params",
		"register-editor",
		"ack-editor-message",
		"emit-editor-console",
	} {
		_, ok := manager.GetTool(name)
		assert.True(t, ok, name)
	}

	aliases := manager.Aliases()
	assert.Equal(t, types.Alias{Tool: "scene_management", Action: "open"}, aliases["open_scene"])
	assert.Equal(t, types.Alias{Tool: "debug_console", Action: "get_logs"}, aliases["get_console_logs"])
	assert.Equal(t, types.Alias{Tool: "preferences_manage", Action: "set_config"}, aliases["set_preferences_config"])
}

func TestSuiteCallsThroughManager(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceAssetDB, "query-uuid", editorbus.Reply{Result: nil})
	suite, err := NewSuite(Dependencies{Bus: bus})
	require.NoError(t, err)
	t.Cleanup(func() { _ = suite.Close() })
	assert.Empty(t, suite.Bridge)

	manager := NewManager()
	require.NoError(t, suite.Register(manager))

	result, err := manager.CallTool(context.Background(), "open_scene", map[string]any{"scenePath": "db://assets/x.scene"})
	require.NoError(t, err)
	envelope := result.(map[string]any)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "Scene not found", envelope["error"])

	_, err = manager.CallTool(context.Background(), "preferences_manage", map[string]any{"action": "get_config", "category": "bogus"})
	assert.True(t, types.IsInvalidArgument(err))

	_, err = NewSuite(Dependencies{})
	assert.Error(t, err)
}
