// Package scene relays scene lifecycle, hierarchy, execution and undo
// operations to the editor's scene process.
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const (
	// SceneScriptName is the scene script package registered by the editor extension.
	SceneScriptName = "cocos-mcp-server"

	sceneAssetPattern = "db://assets/**/*.scene"
	sceneExtension    = ".scene"
)

// Module implements the scene tools.
type Module struct {
	bus      editorbus.Bus
	template *Template
	catalog  *types.Catalog
}

// New builds the module around the embedded scene template.
func New(bus editorbus.Bus) (*Module, error) {
	tmpl, err := DefaultTemplate()
	if err != nil {
		return nil, err
	}
	return NewWithTemplate(bus, tmpl), nil
}

func NewWithTemplate(bus editorbus.Bus, tmpl *Template) *Module {
	m := &Module{bus: bus, template: tmpl}

	str := func(description string) map[string]any {
		return map[string]any{"type": "string", "description": description}
	}
	m.catalog = types.NewCatalog([]types.Tool{
		types.NewActionTool("scene_management",
			"SCENE MANAGEMENT: inspect the open scene, list scene assets, and open, save, create, save-as or close scenes.",
			mcp.ObjectSchema("Scene Management", map[string]any{
				"scenePath": str("Scene asset url such as db://assets/scenes/Main.scene (open)"),
				"sceneName": str("Name of the new scene (create)"),
				"savePath":  str("Folder url or full .scene url for the new scene (create)"),
				"pattern":   str("Glob filter over scene urls (get_list)"),
				"path":      str("Target url (save_as)"),
			}),
			map[string]types.Handler{
				"get_current": m.getCurrent,
				"get_list":    m.getList,
				"open":        m.open,
				"save":        m.save,
				"create":      m.create,
				"save_as":     m.saveAs,
				"close":       m.close,
			}),
		types.NewActionTool("scene_hierarchy",
			"SCENE HIERARCHY: the node tree of the open scene, optionally with each node's components.",
			mcp.ObjectSchema("Scene Hierarchy", map[string]any{
				"includeComponents": map[string]any{
					"type":        "boolean",
					"default":     false,
					"description": "Include component type and enabled state per node",
				},
			}),
			map[string]types.Handler{
				"get_hierarchy": m.getHierarchy,
			}),
		types.NewActionTool("scene_execution_control",
			"SCENE EXECUTION CONTROL: call a component method, run a scene script method, or soft-reload the scene.",
			mcp.ObjectSchema("Scene Execution Control", map[string]any{
				"uuid":       str("Component uuid (execute_component_method)"),
				"name":       str("Method name (execute_component_method) or scene script name (execute_scene_script)"),
				"methodName": str("Scene script method (execute_scene_script)"),
				"args": map[string]any{
					"type":        "array",
					"description": "Method arguments",
				},
			}),
			map[string]types.Handler{
				"execute_component_method": m.executeComponentMethod,
				"execute_scene_script":     m.executeSceneScript,
				"soft_reload":              m.relay("soft-reload", "Scene soft reloaded successfully"),
			}),
		types.NewActionTool("scene_state_management",
			"SCENE STATE MANAGEMENT: scene snapshots and undo recording.",
			mcp.ObjectSchema("Scene State Management", map[string]any{
				"nodeUuid": str("Node to record (begin_undo)"),
				"undoId":   str("Recording id returned by begin_undo (end_undo, cancel_undo)"),
			}),
			map[string]types.Handler{
				"snapshot":       m.relay("snapshot", "Scene snapshot created"),
				"snapshot_abort": m.relay("snapshot-abort", "Scene snapshot aborted"),
				"begin_undo":     m.beginUndo,
				"end_undo":       m.relay("end-recording", "Undo recording ended", "undoId"),
				"cancel_undo":    m.relay("cancel-recording", "Undo recording cancelled", "undoId"),
			}),
		types.NewActionTool("scene_query",
			"SCENE QUERY: readiness, dirty state, registered classes and components, script components and asset usage.",
			mcp.ObjectSchema("Scene Query", map[string]any{
				"extends":   str("Base class filter (classes)"),
				"className": str("Component class name (component_has_script)"),
				"assetUuid": str("Asset uuid (nodes_by_asset)"),
			}),
			map[string]types.Handler{
				"is_ready":             m.isReady,
				"is_dirty":             m.isDirty,
				"classes":              m.classes,
				"components":           m.components,
				"component_has_script": m.componentHasScript,
				"nodes_by_asset":       m.nodesByAsset,
			}),
	}, legacyAliases)
	return m
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }

func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	return m.catalog.Execute(ctx, toolName, args)
}

func (m *Module) scene(ctx context.Context, action string, args ...any) (any, error) {
	return m.bus.Request(ctx, editorbus.NamespaceScene, action, args...)
}

func (m *Module) sceneScript(ctx context.Context, method string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	return m.scene(ctx, "execute-scene-script", map[string]any{
		"name":   SceneScriptName,
		"method": method,
		"args":   args,
	})
}

func (m *Module) getCurrent(ctx context.Context, _ types.Args) types.Response {
	tree, err := m.scene(ctx, "query-node-tree")
	if err == nil {
		if node, ok := tree.(map[string]any); ok && node["uuid"] != nil {
			children, _ := node["children"].([]any)
			return types.OK(map[string]any{
				"name":      node["name"],
				"uuid":      node["uuid"],
				"type":      valueOr(node["type"], "cc.Scene"),
				"active":    valueOr(node["active"], true),
				"nodeCount": len(children),
			}, "")
		}
		err = fmt.Errorf("no scene data available")
	}

	info, scriptErr := m.sceneScript(ctx, "getCurrentSceneInfo")
	if scriptErr != nil {
		return types.Failf("Direct API failed: %s, Scene script failed: %s", err, scriptErr)
	}
	return types.OK(info, "")
}

// SceneInfo is one scene asset.
type SceneInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	UUID string `json:"uuid"`
}

func (m *Module) sceneList(ctx context.Context, pattern string) ([]SceneInfo, error) {
	if pattern == "" {
		pattern = sceneAssetPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid scene pattern: %s", pattern)
	}
	result, err := m.bus.Request(ctx, editorbus.NamespaceAssetDB, "query-assets", map[string]any{
		"pattern": sceneAssetPattern,
	})
	if err != nil {
		return nil, err
	}
	items, _ := result.([]any)
	scenes := make([]SceneInfo, 0, len(items))
	for _, item := range items {
		asset, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, _ := asset["url"].(string)
		if url == "" {
			continue
		}
		if matched, _ := doublestar.Match(pattern, url); !matched {
			continue
		}
		name, _ := asset["name"].(string)
		if name == "" {
			name = strings.TrimSuffix(path.Base(url), sceneExtension)
		}
		id, _ := asset["uuid"].(string)
		scenes = append(scenes, SceneInfo{Name: name, URL: url, UUID: id})
	}
	return scenes, nil
}

func (m *Module) getList(ctx context.Context, args types.Args) types.Response {
	scenes, err := m.sceneList(ctx, args.TrimmedString("pattern"))
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(scenes, "")
}

func (m *Module) open(ctx context.Context, args types.Args) types.Response {
	scenePath := args.TrimmedString("scenePath")
	if scenePath == "" {
		return types.Fail("scenePath is required")
	}
	result, err := m.bus.Request(ctx, editorbus.NamespaceAssetDB, "query-uuid", scenePath)
	if err != nil {
		return types.FailErr(err)
	}
	id, _ := result.(string)
	if id == "" {
		return types.Fail("Scene not found")
	}
	if _, err := m.scene(ctx, "open-scene", id); err != nil {
		return types.FailErr(err)
	}
	return types.OK(nil, "Scene opened: "+scenePath)
}

func (m *Module) save(ctx context.Context, _ types.Args) types.Response {
	if _, err := m.scene(ctx, "save-scene"); err != nil {
		return types.FailErr(err)
	}
	return types.OK(nil, "Scene saved successfully")
}

func (m *Module) saveAs(ctx context.Context, args types.Args) types.Response {
	var (
		result any
		err    error
	)
	if target := args.TrimmedString("path"); target != "" {
		result, err = m.scene(ctx, "save-as-scene", target)
	} else {
		result, err = m.scene(ctx, "save-as-scene")
	}
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(result, "Scene save-as dialog opened")
}

func (m *Module) close(ctx context.Context, _ types.Args) types.Response {
	if _, err := m.scene(ctx, "close-scene"); err != nil {
		return types.FailErr(err)
	}
	return types.OK(nil, "Scene closed successfully")
}

// scenePath returns the asset url for a new scene.
func scenePath(savePath, sceneName string) string {
	if strings.HasSuffix(savePath, sceneExtension) {
		return savePath
	}
	return strings.TrimSuffix(savePath, "/") + "/" + sceneName + sceneExtension
}

func (m *Module) create(ctx context.Context, args types.Args) types.Response {
	sceneName := args.TrimmedString("sceneName")
	savePath := args.TrimmedString("savePath")
	if sceneName == "" || savePath == "" {
		return types.Fail("sceneName and savePath are required")
	}
	fullPath := scenePath(savePath, sceneName)

	content, err := m.template.Render(sceneName)
	if err != nil {
		return types.FailErr(err)
	}
	result, err := m.bus.Request(ctx, editorbus.NamespaceAssetDB, "create-asset", fullPath, string(content))
	if err != nil {
		return types.FailErr(err)
	}

	created, _ := result.(map[string]any)
	id, _ := created["uuid"].(string)
	url, _ := created["url"].(string)
	if url == "" {
		url = fullPath
	}

	verified := false
	if scenes, err := m.sceneList(ctx, ""); err == nil {
		for _, scene := range scenes {
			if (id != "" && scene.UUID == id) || scene.URL == url {
				verified = true
				break
			}
		}
	}

	data := map[string]any{
		"uuid":          id,
		"url":           url,
		"name":          sceneName,
		"sceneVerified": verified,
	}
	response := types.OK(data, fmt.Sprintf("Scene '%s' created successfully", sceneName))
	if !verified {
		response = response.WithWarning("Scene was created but did not appear in the scene list yet")
	}
	return response
}

// HierarchyNode is one node of a rebuilt scene tree.
type HierarchyNode struct {
	UUID       string          `json:"uuid"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Active     bool            `json:"active"`
	Children   []HierarchyNode `json:"children"`
	Components []ComponentInfo `json:"components,omitempty"`
}

type ComponentInfo struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// BuildHierarchy rebuilds a plain tree from the editor's raw node tree.
func BuildHierarchy(raw map[string]any, includeComponents bool) HierarchyNode {
	node := HierarchyNode{
		Children: []HierarchyNode{},
	}
	node.UUID, _ = raw["uuid"].(string)
	node.Name, _ = raw["name"].(string)
	node.Type, _ = raw["type"].(string)
	node.Active, _ = valueOr(raw["active"], false).(bool)

	if includeComponents {
		if comps, ok := raw["__comps__"].([]any); ok {
			node.Components = make([]ComponentInfo, 0, len(comps))
			for _, item := range comps {
				comp, _ := item.(map[string]any)
				info := ComponentInfo{Type: "Unknown", Enabled: true}
				if typeName, ok := comp["__type__"].(string); ok && typeName != "" {
					info.Type = typeName
				}
				if enabled, ok := comp["enabled"].(bool); ok {
					info.Enabled = enabled
				}
				node.Components = append(node.Components, info)
			}
		}
	}

	if children, ok := raw["children"].([]any); ok {
		for _, item := range children {
			child, ok := item.(map[string]any)
			if !ok {
				continue
			}
			node.Children = append(node.Children, BuildHierarchy(child, includeComponents))
		}
	}
	return node
}

func (m *Module) getHierarchy(ctx context.Context, args types.Args) types.Response {
	includeComponents := args.BoolOr("includeComponents", false)

	tree, err := m.scene(ctx, "query-node-tree")
	if err == nil {
		if root, ok := tree.(map[string]any); ok {
			return types.OK(BuildHierarchy(root, includeComponents), "")
		}
		err = fmt.Errorf("no scene hierarchy available")
	}

	hierarchy, scriptErr := m.sceneScript(ctx, "getSceneHierarchy", includeComponents)
	if scriptErr != nil {
		return types.Failf("Direct API failed: %s, Scene script failed: %s", err, scriptErr)
	}
	return types.OK(hierarchy, "")
}

func methodArgs(args types.Args) []any {
	list, ok := args.List("args")
	if !ok {
		return []any{}
	}
	return list
}

func (m *Module) executeComponentMethod(ctx context.Context, args types.Args) types.Response {
	uuid := args.TrimmedString("uuid")
	name := args.TrimmedString("name")
	if uuid == "" || name == "" {
		return types.Fail("uuid and name are required")
	}
	result, err := m.scene(ctx, "execute-component-method", map[string]any{
		"uuid": uuid,
		"name": name,
		"args": methodArgs(args),
	})
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{"result": result}, fmt.Sprintf("Method '%s' executed successfully", name))
}

func (m *Module) executeSceneScript(ctx context.Context, args types.Args) types.Response {
	name := args.TrimmedString("name")
	method := args.TrimmedString("methodName")
	if name == "" || method == "" {
		return types.Fail("name and methodName are required")
	}
	result, err := m.scene(ctx, "execute-scene-script", map[string]any{
		"name":   name,
		"method": method,
		"args":   methodArgs(args),
	})
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(result, "")
}

// relay forwards the named string arguments, in order, to a scene action.
func (m *Module) relay(action, message string, required ...string) types.Handler {
	return func(ctx context.Context, args types.Args) types.Response {
		values := make([]any, 0, len(required))
		for _, key := range required {
			value := args.TrimmedString(key)
			if value == "" {
				return types.Failf("%s is required", key)
			}
			values = append(values, value)
		}
		result, err := m.scene(ctx, action, values...)
		if err != nil {
			return types.FailErr(err)
		}
		return types.OK(result, message)
	}
}

func (m *Module) beginUndo(ctx context.Context, args types.Args) types.Response {
	nodeUUID := args.TrimmedString("nodeUuid")
	if nodeUUID == "" {
		return types.Fail("nodeUuid is required")
	}
	result, err := m.scene(ctx, "begin-recording", nodeUUID)
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{"undoId": result}, "Undo recording started")
}

func (m *Module) isReady(ctx context.Context, _ types.Args) types.Response {
	result, err := m.scene(ctx, "query-is-ready")
	if err != nil {
		return types.FailErr(err)
	}
	ready, _ := result.(bool)
	message := "Scene is not ready yet"
	if ready {
		message = "Scene is ready"
	}
	return types.OK(map[string]any{"ready": ready}, message)
}

func (m *Module) isDirty(ctx context.Context, _ types.Args) types.Response {
	result, err := m.scene(ctx, "query-dirty")
	if err != nil {
		return types.FailErr(err)
	}
	dirty, _ := result.(bool)
	message := "Scene has no unsaved changes"
	if dirty {
		message = "Scene has unsaved changes"
	}
	return types.OK(map[string]any{"dirty": dirty}, message)
}

func (m *Module) classes(ctx context.Context, args types.Args) types.Response {
	options := map[string]any{}
	if base := args.TrimmedString("extends"); base != "" {
		options["extends"] = base
	}
	result, err := m.scene(ctx, "query-classes", options)
	if err != nil {
		return types.FailErr(err)
	}
	list, _ := result.([]any)
	return types.OK(map[string]any{"classes": result, "count": len(list)}, "")
}

func (m *Module) components(ctx context.Context, _ types.Args) types.Response {
	result, err := m.scene(ctx, "query-components")
	if err != nil {
		return types.FailErr(err)
	}
	list, _ := result.([]any)
	return types.OK(map[string]any{"components": result, "count": len(list)}, "")
}

func (m *Module) componentHasScript(ctx context.Context, args types.Args) types.Response {
	className := args.TrimmedString("className")
	if className == "" {
		return types.Fail("className is required")
	}
	result, err := m.scene(ctx, "query-component-has-script", className)
	if err != nil {
		return types.FailErr(err)
	}
	hasScript, _ := result.(bool)
	return types.OK(map[string]any{"className": className, "hasScript": hasScript}, "")
}

func (m *Module) nodesByAsset(ctx context.Context, args types.Args) types.Response {
	assetUUID := args.TrimmedString("assetUuid")
	if assetUUID == "" {
		return types.Fail("assetUuid is required")
	}
	result, err := m.scene(ctx, "query-nodes-by-asset-uuid", assetUUID)
	if err != nil {
		return types.FailErr(err)
	}
	list, _ := result.([]any)
	return types.OK(map[string]any{"assetUuid": assetUUID, "nodeUuids": result, "count": len(list)}, "")
}

func valueOr(value, fallback any) any {
	if value == nil {
		return fallback
	}
	return value
}
