// Package referenceimage relays scene-view reference image operations.
package referenceimage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

var imageDataKeys = []string{"path", "x", "y", "sx", "sy", "opacity"}

// Module implements the reference image tools.
type Module struct {
	bus     editorbus.Bus
	catalog *types.Catalog
}

func New(bus editorbus.Bus) *Module {
	m := &Module{bus: bus}

	number := func(description string) map[string]any {
		return map[string]any{"type": "number", "description": description}
	}
	m.catalog = types.NewCatalog([]types.Tool{
		types.NewActionTool("reference_image_management",
			"REFERENCE IMAGE MANAGEMENT: add, remove and switch scene-view reference images, edit the current image data, and query the configuration.",
			mcp.ObjectSchema("Reference Image Management", map[string]any{
				"paths": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Absolute image paths (add, remove)",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Image path to switch to (switch)",
				},
				"sceneUUID": map[string]any{
					"type":        "string",
					"description": "Scene the image belongs to (switch)",
				},
				"key": map[string]any{
					"type":        "string",
					"enum":        imageDataKeys,
					"description": "Image property to change (set_data)",
				},
				"value": map[string]any{
					"description": "New property value (set_data)",
				},
			}),
			map[string]types.Handler{
				"add":         m.add,
				"remove":      m.remove,
				"switch":      m.switchImage,
				"set_data":    m.setData,
				"get_config":  m.getConfig,
				"get_current": m.getCurrent,
				"refresh":     m.refresh,
			}),
		types.NewActionTool("reference_image_view",
			"REFERENCE IMAGE VIEW: position, scale and opacity of the current reference image, plus listing and clearing every configured image.",
			mcp.ObjectSchema("Reference Image View", map[string]any{
				"x":  number("Horizontal offset (set_position)"),
				"y":  number("Vertical offset (set_position)"),
				"sx": number("Horizontal scale (set_scale)"),
				"sy": number("Vertical scale (set_scale)"),
				"opacity": map[string]any{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Opacity from 0 to 1 (set_opacity)",
				},
			}),
			map[string]types.Handler{
				"set_position": m.setPosition,
				"set_scale":    m.setScale,
				"set_opacity":  m.setOpacity,
				"list":         m.list,
				"clear_all":    m.clearAll,
			}),
	}, map[string]types.Alias{
		"add_reference_image":           {Tool: "reference_image_management", Action: "add"},
		"remove_reference_image":        {Tool: "reference_image_management", Action: "remove"},
		"switch_reference_image":        {Tool: "reference_image_management", Action: "switch"},
		"set_reference_image_data":      {Tool: "reference_image_management", Action: "set_data"},
		"query_reference_image_config":  {Tool: "reference_image_management", Action: "get_config"},
		"query_current_reference_image": {Tool: "reference_image_management", Action: "get_current"},
		"refresh_reference_image":       {Tool: "reference_image_management", Action: "refresh"},
		"set_reference_image_position":  {Tool: "reference_image_view", Action: "set_position"},
		"set_reference_image_scale":     {Tool: "reference_image_view", Action: "set_scale"},
		"set_reference_image_opacity":   {Tool: "reference_image_view", Action: "set_opacity"},
		"list_reference_images":         {Tool: "reference_image_view", Action: "list"},
		"clear_all_reference_images":    {Tool: "reference_image_view", Action: "clear_all"},
	})
	return m
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }

func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	return m.catalog.Execute(ctx, toolName, args)
}

func (m *Module) request(ctx context.Context, action string, args ...any) (any, error) {
	return m.bus.Request(ctx, editorbus.NamespaceReferenceImage, action, args...)
}

func imagePaths(args types.Args) ([]string, types.Response, bool) {
	list, ok := args.List("paths")
	if !ok || len(list) == 0 {
		return nil, types.Fail("paths must be a non-empty array of image paths"), false
	}
	paths := make([]string, 0, len(list))
	for i, item := range list {
		path, isString := item.(string)
		if !isString || strings.TrimSpace(path) == "" {
			return nil, types.Failf("Invalid image path at index %d: every path must be a non-empty string", i), false
		}
		paths = append(paths, path)
	}
	return paths, types.Response{}, true
}

func (m *Module) add(ctx context.Context, args types.Args) types.Response {
	paths, failure, ok := imagePaths(args)
	if !ok {
		return failure
	}
	if _, err := m.request(ctx, "add-image", paths); err != nil {
		return types.Fail(friendlyAddError(err))
	}
	return types.OK(map[string]any{
		"addedPaths": paths,
		"count":      len(paths),
	}, fmt.Sprintf("Added %d reference image(s)", len(paths)))
}

// friendlyAddError rewrites three common editor failure texts. It matches on
// message substrings only and falls back to the editor's own text.
func friendlyAddError(err error) string {
	message := err.Error()
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "not found"):
		return "Image file not found: " + message
	case strings.Contains(lower, "permission"):
		return "Permission denied when accessing image file: " + message
	case strings.Contains(lower, "format"):
		return "Unsupported image format (use PNG, JPG, JPEG, BMP or GIF): " + message
	default:
		return message
	}
}

func (m *Module) remove(ctx context.Context, args types.Args) types.Response {
	var err error
	var paths []string
	if args.Has("paths") {
		var failure types.Response
		var ok bool
		if paths, failure, ok = imagePaths(args); !ok {
			return failure
		}
		_, err = m.request(ctx, "remove-image", paths)
	} else {
		_, err = m.request(ctx, "remove-image")
	}
	if err != nil {
		return types.FailErr(err)
	}
	if len(paths) == 0 {
		return types.OK(nil, "Current reference image removed")
	}
	return types.OK(map[string]any{"removedPaths": paths}, fmt.Sprintf("Removed %d reference image(s)", len(paths)))
}

func (m *Module) switchImage(ctx context.Context, args types.Args) types.Response {
	path := args.TrimmedString("path")
	if path == "" {
		return types.Fail("path is required")
	}
	callArgs := []any{path}
	sceneUUID := args.TrimmedString("sceneUUID")
	if sceneUUID != "" {
		callArgs = append(callArgs, sceneUUID)
	}

	result, err := m.request(ctx, "switch-image", callArgs...)
	if err != nil {
		return types.Fail(friendlyAddError(err))
	}

	data := map[string]any{"path": path, "result": result}
	if sceneUUID != "" {
		data["sceneUUID"] = sceneUUID
	}
	resp := types.OK(data, "Switched reference image to "+path)
	if switchLooksBlank(result) {
		resp = resp.WithWarning("The reference image may be blank or missing: " + path)
	}
	return resp
}

// switchLooksBlank inspects the editor result for a warning flag or wording
// that suggests the image did not load.
func switchLooksBlank(result any) bool {
	object, ok := result.(map[string]any)
	if !ok {
		return false
	}
	if flag, _ := object["warning"].(bool); flag {
		return true
	}
	message, _ := object["message"].(string)
	lower := strings.ToLower(message)
	return strings.Contains(lower, "blank") || strings.Contains(lower, "not found")
}

func (m *Module) setData(ctx context.Context, args types.Args) types.Response {
	key := args.TrimmedString("key")
	valid := false
	for _, candidate := range imageDataKeys {
		if key == candidate {
			valid = true
			break
		}
	}
	if !valid {
		return types.Failf("Invalid key: %q. Valid keys: %s", key, strings.Join(imageDataKeys, ", "))
	}
	value, defined := args["value"]
	if !defined {
		return types.Fail("value is required")
	}
	if _, err := m.request(ctx, "set-image-data", key, value); err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{"key": key, "value": value}, fmt.Sprintf("Reference image %s updated", key))
}

func (m *Module) getConfig(ctx context.Context, _ types.Args) types.Response {
	config, err := m.request(ctx, "query-config")
	if err != nil {
		return types.FailErr(err)
	}
	issues := checkDataConsistency(config)
	resp := types.OK(map[string]any{
		"config": config,
		"consistency": map[string]any{
			"consistent": len(issues) == 0,
			"issues":     issues,
		},
	}, "")
	if len(issues) > 0 {
		resp = resp.WithWarning(fmt.Sprintf("Reference image configuration has %d consistency issue(s)", len(issues)))
	}
	return resp
}

func (m *Module) getCurrent(ctx context.Context, _ types.Args) types.Response {
	current, err := m.request(ctx, "query-current")
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{"current": current}, "")
}

func (m *Module) refresh(ctx context.Context, _ types.Args) types.Response {
	if _, err := m.request(ctx, "refresh"); err != nil {
		return types.FailErr(err)
	}
	return types.OK(nil, "Reference images refreshed")
}

// setPair issues two sequential updates. A failure on the second leaves the
// first applied.
func (m *Module) setPair(ctx context.Context, args types.Args, firstKey, secondKey, label string) types.Response {
	first, ok := args.Float(firstKey)
	if !ok {
		return types.Failf("%s is required and must be a number", firstKey)
	}
	second, ok := args.Float(secondKey)
	if !ok {
		return types.Failf("%s is required and must be a number", secondKey)
	}
	if _, err := m.request(ctx, "set-image-data", firstKey, first); err != nil {
		return types.FailErr(err)
	}
	if _, err := m.request(ctx, "set-image-data", secondKey, second); err != nil {
		return types.Failf("%s applied but %s failed: %v", firstKey, secondKey, err)
	}
	return types.OK(map[string]any{firstKey: first, secondKey: second},
		fmt.Sprintf("Reference image %s set to (%v, %v)", label, first, second))
}

func (m *Module) setPosition(ctx context.Context, args types.Args) types.Response {
	return m.setPair(ctx, args, "x", "y", "position")
}

func (m *Module) setScale(ctx context.Context, args types.Args) types.Response {
	return m.setPair(ctx, args, "sx", "sy", "scale")
}

func (m *Module) setOpacity(ctx context.Context, args types.Args) types.Response {
	opacity, ok := args.Float("opacity")
	if !ok || opacity < 0 || opacity > 1 {
		return types.Fail("opacity must be a number between 0 and 1")
	}
	if _, err := m.request(ctx, "set-image-data", "opacity", opacity); err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{"opacity": opacity}, fmt.Sprintf("Reference image opacity set to %v", opacity))
}

func (m *Module) list(ctx context.Context, _ types.Args) types.Response {
	config, err := m.request(ctx, "query-config")
	if err != nil {
		return types.FailErr(err)
	}
	current, err := m.request(ctx, "query-current")
	if err != nil {
		return types.FailErr(err)
	}
	images := configuredImages(config)
	return types.OK(map[string]any{
		"images":  images,
		"count":   len(images),
		"current": current,
		"config":  config,
	}, fmt.Sprintf("Found %d reference image(s)", len(images)))
}

func (m *Module) clearAll(ctx context.Context, _ types.Args) types.Response {
	config, err := m.request(ctx, "query-config")
	if err != nil {
		return types.FailErr(err)
	}
	images := configuredImages(config)
	if len(images) == 0 {
		return types.OK(map[string]any{"removedCount": 0}, "No reference images to clear")
	}
	if _, err := m.request(ctx, "remove-image", images); err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{
		"removedPaths": images,
		"removedCount": len(images),
	}, fmt.Sprintf("Cleared %d reference image(s)", len(images)))
}

// configuredImages extracts image paths from a query-config result. Entries
// may be plain paths or objects carrying a path field.
func configuredImages(config any) []string {
	object, ok := config.(map[string]any)
	if !ok {
		return []string{}
	}
	list, _ := object["images"].([]any)
	paths := make([]string, 0, len(list))
	for _, item := range list {
		if path := imagePath(item); path != "" {
			paths = append(paths, path)
		}
	}
	return paths
}

func imagePath(item any) string {
	switch value := item.(type) {
	case string:
		return value
	case map[string]any:
		path, _ := value["path"].(string)
		return path
	}
	return ""
}

// checkDataConsistency reports suspicious configuration entries. It never
// repairs anything.
func checkDataConsistency(config any) []string {
	issues := []string{}
	object, ok := config.(map[string]any)
	if !ok {
		return issues
	}

	seen := map[string]bool{}
	for _, path := range configuredImages(config) {
		lower := strings.ToLower(path)
		if strings.Contains(lower, "deleted") || strings.Contains(lower, "nonexistent") {
			issues = append(issues, "Image path may no longer exist: "+path)
		}
		if seen[path] {
			issues = append(issues, "Duplicate image path: "+path)
		}
		seen[path] = true
	}

	current, present := object["current"]
	if !present || current == nil {
		return issues
	}
	currentPath, isString := current.(string)
	if !isString {
		return append(issues, "Current image reference is not a string")
	}
	if currentPath != "" && !seen[currentPath] {
		issues = append(issues, "Current image is not in the images list: "+currentPath)
	}
	return issues
}
