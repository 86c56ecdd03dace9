package scene

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Warning string          `json:"warning"`
}

func newModule(t *testing.T, bus editorbus.Bus) *Module {
	t.Helper()
	m, err := New(bus)
	require.NoError(t, err)
	return m
}

func run(t *testing.T, m *Module, tool string, args map[string]any) envelope {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	out, err := m.Execute(context.Background(), tool, raw)
	require.NoError(t, err)
	var resp envelope
	require.NoError(t, json.Unmarshal(out, &resp))
	return resp
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestOpenStopsWhenSceneIsMissing(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceAssetDB, "query-uuid", editorbus.Reply{Result: nil})
	m := newModule(t, bus)

	resp := run(t, m, "open_scene", map[string]any{"scenePath": "db://assets/missing.scene"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Scene not found", resp.Error)
	assert.Equal(t, []string{"asset-db/query-uuid"}, bus.Keys())
}

func TestOpenResolvesUUIDFirst(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceAssetDB, "query-uuid", editorbus.Reply{Result: "scene-uuid"})
	m := newModule(t, bus)

	resp := run(t, m, "scene_management", map[string]any{"action": "open", "scenePath": "db://assets/Main.scene"})
	require.True(t, resp.Success)
	assert.Equal(t, []string{"asset-db/query-uuid", "scene/open-scene"}, bus.Keys())
	assert.Equal(t, []any{"scene-uuid"}, bus.Calls()[1].Args)
}

func TestGetCurrentUsesNodeTree(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceScene, "query-node-tree", editorbus.Reply{Result: map[string]any{
		"uuid":     "root",
		"name":     "Main",
		"active":   true,
		"children": []any{map[string]any{}, map[string]any{}},
	}})
	resp := run(t, newModule(t, bus), "get_current_scene", nil)
	require.True(t, resp.Success)

	data := decode(t, resp.Data)
	assert.Equal(t, "Main", data["name"])
	assert.Equal(t, "cc.Scene", data["type"])
	assert.EqualValues(t, 2, data["nodeCount"])
	assert.Equal(t, []string{"scene/query-node-tree"}, bus.Keys())
}

func TestGetCurrentFallsBackToSceneScript(t *testing.T) {
	bus := editorbus.NewRecorder().
		On(editorbus.NamespaceScene, "query-node-tree", editorbus.Reply{Err: errors.New("tree unavailable")}).
		OnFunc(editorbus.NamespaceScene, "execute-scene-script", func(args []any) (any, error) {
			options := args[0].(map[string]any)
			if options["name"] != SceneScriptName || options["method"] != "getCurrentSceneInfo" {
				return nil, errors.New("unexpected script call")
			}
			return map[string]any{"name": "FromScript"}, nil
		})
	resp := run(t, newModule(t, bus), "scene_management", map[string]any{"action": "get_current"})
	require.True(t, resp.Success)
	assert.Equal(t, "FromScript", decode(t, resp.Data)["name"])
}

func TestGetCurrentReportsBothFailures(t *testing.T) {
	bus := editorbus.NewRecorder().
		On(editorbus.NamespaceScene, "query-node-tree", editorbus.Reply{Err: errors.New("tree unavailable")}).
		On(editorbus.NamespaceScene, "execute-scene-script", editorbus.Reply{Err: errors.New("script missing")})
	resp := run(t, newModule(t, bus), "get_current_scene", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Direct API failed: tree unavailable, Scene script failed: script missing", resp.Error)
}

func sceneAssets() []any {
	return []any{
		map[string]any{"name": "Main", "url": "db://assets/scenes/Main.scene", "uuid": "u1"},
		map[string]any{"name": "Boss", "url": "db://assets/levels/boss/Boss.scene", "uuid": "u2"},
		map[string]any{"url": "db://assets/levels/Intro.scene", "uuid": "u3"},
	}
}

func TestGetListFiltersByPattern(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceAssetDB, "query-assets", editorbus.Reply{Result: sceneAssets()})
	m := newModule(t, bus)

	resp := run(t, m, "get_scene_list", nil)
	require.True(t, resp.Success)
	var all []SceneInfo
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	require.Len(t, all, 3)
	assert.Equal(t, "Intro", all[2].Name)

	resp = run(t, m, "get_scene_list", map[string]any{"pattern": "db://assets/levels/**/*.scene"})
	require.True(t, resp.Success)
	var levels []SceneInfo
	require.NoError(t, json.Unmarshal(resp.Data, &levels))
	require.Len(t, levels, 2)
	assert.Equal(t, "u2", levels[0].UUID)
	assert.Equal(t, "u3", levels[1].UUID)

	resp = run(t, m, "get_scene_list", map[string]any{"pattern": "db://assets/[.scene"})
	assert.False(t, resp.Success)
}

func TestCreateRendersTemplateAndVerifies(t *testing.T) {
	var written string
	bus := editorbus.NewRecorder().
		OnFunc(editorbus.NamespaceAssetDB, "create-asset", func(args []any) (any, error) {
			written = args[1].(string)
			return map[string]any{"uuid": "new-uuid", "url": args[0]}, nil
		}).
		On(editorbus.NamespaceAssetDB, "query-assets", editorbus.Reply{Result: []any{
			map[string]any{"name": "Level1", "url": "db://assets/scenes/Level1.scene", "uuid": "new-uuid"},
		}})
	resp := run(t, newModule(t, bus), "create_scene", map[string]any{"sceneName": "Level1", "savePath": "db://assets/scenes"})
	require.True(t, resp.Success, resp.Error)
	assert.Empty(t, resp.Warning)

	data := decode(t, resp.Data)
	assert.Equal(t, "db://assets/scenes/Level1.scene", data["url"])
	assert.Equal(t, true, data["sceneVerified"])
	assert.Equal(t, "db://assets/scenes/Level1.scene", bus.Calls()[0].Args[0])

	var document []map[string]any
	require.NoError(t, json.Unmarshal([]byte(written), &document))
	require.Len(t, document, 7)
	assert.Equal(t, "cc.SceneAsset", document[0]["__type__"])
	assert.Equal(t, "Level1", document[0]["_name"])
	assert.Equal(t, "Level1", document[1]["_name"])
	assert.NotEqual(t, "{{sceneId}}", document[1]["_id"])
	assert.NotContains(t, written, "{{")
}

func TestCreateWarnsWhenUnverified(t *testing.T) {
	bus := editorbus.NewRecorder().
		On(editorbus.NamespaceAssetDB, "create-asset", editorbus.Reply{Result: map[string]any{"uuid": "new-uuid"}}).
		On(editorbus.NamespaceAssetDB, "query-assets", editorbus.Reply{Result: []any{}})
	resp := run(t, newModule(t, bus), "scene_management", map[string]any{
		"action":    "create",
		"sceneName": "Level2",
		"savePath":  "db://assets/custom/Other.scene",
	})
	require.True(t, resp.Success)
	assert.NotEmpty(t, resp.Warning)
	assert.Equal(t, false, decode(t, resp.Data)["sceneVerified"])
	assert.Equal(t, "db://assets/custom/Other.scene", bus.Calls()[0].Args[0])
}

func TestBuildHierarchy(t *testing.T) {
	raw := map[string]any{
		"uuid":   "root",
		"name":   "Main",
		"type":   "cc.Scene",
		"active": true,
		"children": []any{
			map[string]any{
				"uuid":   "camera",
				"name":   "Camera",
				"type":   "cc.Node",
				"active": false,
				"__comps__": []any{
					map[string]any{"__type__": "cc.Camera", "enabled": false},
					map[string]any{},
				},
				"children": []any{},
			},
		},
	}

	tree := BuildHierarchy(raw, true)
	assert.Equal(t, "root", tree.UUID)
	require.Len(t, tree.Children, 1)
	camera := tree.Children[0]
	assert.False(t, camera.Active)
	assert.Equal(t, []ComponentInfo{
		{Type: "cc.Camera", Enabled: false},
		{Type: "Unknown", Enabled: true},
	}, camera.Components)

	plain := BuildHierarchy(raw, false)
	assert.Nil(t, plain.Children[0].Components)
}

func TestGetHierarchyFallback(t *testing.T) {
	bus := editorbus.NewRecorder().
		On(editorbus.NamespaceScene, "query-node-tree", editorbus.Reply{Err: errors.New("not ready")}).
		On(editorbus.NamespaceScene, "execute-scene-script", editorbus.Reply{Result: map[string]any{"name": "Scripted"}})
	resp := run(t, newModule(t, bus), "get_scene_hierarchy", map[string]any{"includeComponents": true})
	require.True(t, resp.Success)
	options := bus.Calls()[1].Args[0].(map[string]any)
	assert.Equal(t, "getSceneHierarchy", options["method"])
	assert.Equal(t, []any{true}, options["args"])
}

func TestRelayActions(t *testing.T) {
	tests := []struct {
		tool string
		args map[string]any
		want string
		sent []any
	}{
		{"save_scene", nil, "scene/save-scene", nil},
		{"close_scene", nil, "scene/close-scene", nil},
		{"soft_reload_scene", nil, "scene/soft-reload", nil},
		{"scene_snapshot", nil, "scene/snapshot", nil},
		{"scene_snapshot_abort", nil, "scene/snapshot-abort", nil},
		{"begin_undo_recording", map[string]any{"nodeUuid": "n1"}, "scene/begin-recording", []any{"n1"}},
		{"end_undo_recording", map[string]any{"undoId": "r1"}, "scene/end-recording", []any{"r1"}},
		{"cancel_undo_recording", map[string]any{"undoId": "r1"}, "scene/cancel-recording", []any{"r1"}},
		{"query_scene_ready", nil, "scene/query-is-ready", nil},
		{"query_scene_dirty", nil, "scene/query-dirty", nil},
		{"query_scene_components", nil, "scene/query-components", nil},
		{"query_component_has_script", map[string]any{"className": "Player"}, "scene/query-component-has-script", []any{"Player"}},
		{"query_nodes_by_asset_uuid", map[string]any{"assetUuid": "a1"}, "scene/query-nodes-by-asset-uuid", []any{"a1"}},
	}
	for _, tc := range tests {
		t.Run(tc.tool, func(t *testing.T) {
			bus := editorbus.NewRecorder()
			resp := run(t, newModule(t, bus), tc.tool, tc.args)
			require.True(t, resp.Success, resp.Error)
			calls := bus.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tc.want, calls[0].Key())
			if tc.sent != nil {
				assert.Equal(t, tc.sent, calls[0].Args)
			}
		})
	}
}

func TestRelayRequiresArguments(t *testing.T) {
	bus := editorbus.NewRecorder()
	m := newModule(t, bus)

	resp := run(t, m, "end_undo_recording", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "undoId is required", resp.Error)

	resp = run(t, m, "execute_component_method", map[string]any{"uuid": "c1"})
	assert.False(t, resp.Success)
	assert.Empty(t, bus.Calls())
}

func TestExecuteComponentMethodForwardsArgs(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceScene, "execute-component-method", editorbus.Reply{Result: 42.0})
	resp := run(t, newModule(t, bus), "scene_execution_control", map[string]any{
		"action": "execute_component_method",
		"uuid":   "c1",
		"name":   "jump",
		"args":   []any{1, "high"},
	})
	require.True(t, resp.Success)
	assert.Equal(t, map[string]any{"uuid": "c1", "name": "jump", "args": []any{1.0, "high"}}, bus.Calls()[0].Args[0])
	assert.EqualValues(t, 42, decode(t, resp.Data)["result"])
}

func TestClassesPassesFilter(t *testing.T) {
	bus := editorbus.NewRecorder().On(editorbus.NamespaceScene, "query-classes", editorbus.Reply{Result: []any{"A", "B"}})
	resp := run(t, newModule(t, bus), "query_scene_classes", map[string]any{"extends": "cc.Component"})
	require.True(t, resp.Success)
	assert.Equal(t, map[string]any{"extends": "cc.Component"}, bus.Calls()[0].Args[0])
	assert.EqualValues(t, 2, decode(t, resp.Data)["count"])
}

func TestUnknownToolAndAction(t *testing.T) {
	m := newModule(t, editorbus.NewRecorder())
	assert.Equal(t, "Unknown tool: scene_nope", run(t, m, "scene_nope", nil).Error)
	assert.Equal(t, "Unknown action: fly", run(t, m, "scene_query", map[string]any{"action": "fly"}).Error)
}

func TestEveryAliasTargetsARegisteredAction(t *testing.T) {
	m := newModule(t, editorbus.NewRecorder())
	actions := map[string]map[string]bool{}
	for _, tool := range m.Tools() {
		schema := tool.InputSchema()
		action := schema.Properties["action"].(map[string]any)
		set := map[string]bool{}
		for _, name := range action["enum"].([]string) {
			set[name] = true
		}
		actions[tool.Name()] = set
	}
	for name, alias := range m.Aliases() {
		assert.True(t, actions[alias.Tool][alias.Action], name)
	}
}
