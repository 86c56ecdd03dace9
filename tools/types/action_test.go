package types

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

func decodeResponse(t *testing.T, raw []byte) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func sampleTool() *ActionTool {
	return NewActionTool("sample_tool", "Sample", mcp.ObjectSchema("Sample", map[string]any{
		"value": map[string]any{"type": "string"},
	}), map[string]Handler{
		"echo": func(_ context.Context, args Args) Response {
			return OK(map[string]any{"value": args.TrimmedString("value")}, "echoed")
		},
	})
}

func TestActionToolSchemaCarriesActionEnum(t *testing.T) {
	schema := sampleTool().InputSchema()
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, []string{"action"}, schema.Required)
	action, ok := schema.Properties["action"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"echo"}, action["enum"])
}

func TestActionToolUnknownAction(t *testing.T) {
	raw, err := sampleTool().Execute(context.Background(), json.RawMessage(`{"action":"nope"}`))
	require.NoError(t, err)
	resp := decodeResponse(t, raw)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action: nope", resp.Error)
}

func TestCatalogResolvesAliases(t *testing.T) {
	catalog := NewCatalog([]Tool{sampleTool()}, map[string]Alias{
		"legacy_echo": {Tool: "sample_tool", Action: "echo"},
	})

	raw, err := catalog.Execute(context.Background(), "legacy_echo", json.RawMessage(`{"value":" hi "}`))
	require.NoError(t, err)
	resp := decodeResponse(t, raw)
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"value": "hi"}, resp.Data)

	raw, err = catalog.Execute(context.Background(), "missing_tool", nil)
	require.NoError(t, err)
	assert.Equal(t, "Unknown tool: missing_tool", decodeResponse(t, raw).Error)
}

func TestArgsHelpers(t *testing.T) {
	args, err := ParseArgs(json.RawMessage(`{"n":3,"flag":true,"paths":["a","b"],"mixed":["a",1]}`))
	require.NoError(t, err)
	assert.Equal(t, 3, args.IntOr("n", 0))
	assert.Equal(t, 7, args.IntOr("missing", 7))
	assert.True(t, args.BoolOr("flag", false))
	paths, ok := args.Strings("paths")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, paths)
	_, ok = args.Strings("mixed")
	assert.False(t, ok)
}
