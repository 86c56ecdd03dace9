package scene

import "github.com/cocos-mcp/cocos-mcp-go/tools/types"

// legacyAliases maps the pre-consolidation flat tool names.
var legacyAliases = map[string]types.Alias{
	"get_current_scene":   {Tool: "scene_management", Action: "get_current"},
	"get_scene_list":      {Tool: "scene_management", Action: "get_list"},
	"open_scene":          {Tool: "scene_management", Action: "open"},
	"save_scene":          {Tool: "scene_management", Action: "save"},
	"create_scene":        {Tool: "scene_management", Action: "create"},
	"save_scene_as":       {Tool: "scene_management", Action: "save_as"},
	"close_scene":         {Tool: "scene_management", Action: "close"},
	"get_scene_hierarchy": {Tool: "scene_hierarchy", Action: "get_hierarchy"},

	"execute_component_method": {Tool: "scene_execution_control", Action: "execute_component_method"},
	"execute_scene_script":     {Tool: "scene_execution_control", Action: "execute_scene_script"},
	"soft_reload_scene":        {Tool: "scene_execution_control", Action: "soft_reload"},

	"scene_snapshot":        {Tool: "scene_state_management", Action: "snapshot"},
	"scene_snapshot_abort":  {Tool: "scene_state_management", Action: "snapshot_abort"},
	"begin_undo_recording":  {Tool: "scene_state_management", Action: "begin_undo"},
	"end_undo_recording":    {Tool: "scene_state_management", Action: "end_undo"},
	"cancel_undo_recording": {Tool: "scene_state_management", Action: "cancel_undo"},

	"query_scene_ready":          {Tool: "scene_query", Action: "is_ready"},
	"query_scene_dirty":          {Tool: "scene_query", Action: "is_dirty"},
	"query_scene_classes":        {Tool: "scene_query", Action: "classes"},
	"query_scene_components":     {Tool: "scene_query", Action: "components"},
	"query_component_has_script": {Tool: "scene_query", Action: "component_has_script"},
	"query_nodes_by_asset_uuid":  {Tool: "scene_query", Action: "nodes_by_asset"},
}
