package types

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

// Handler runs one action of a tool.
type Handler func(ctx context.Context, args Args) Response

// ActionTool is a consolidated tool whose "action" argument selects the handler.
type ActionTool struct {
	name        string
	description string
	schema      mcp.InputSchema
	actions     map[string]Handler
}

// NewActionTool builds a tool from its action table. The schema gains an
// "action" enum property listing every key of actions.
func NewActionTool(name, description string, schema mcp.InputSchema, actions map[string]Handler) *ActionTool {
	names := make([]string, 0, len(actions))
	for action := range actions {
		names = append(names, action)
	}
	sort.Strings(names)

	properties := make(map[string]any, len(schema.Properties)+1)
	for key, value := range schema.Properties {
		properties[key] = value
	}
	properties["action"] = map[string]any{
		"type":        "string",
		"enum":        names,
		"description": "Action to perform",
	}
	schema.Properties = properties
	if schema.Type == "" {
		schema.Type = "object"
	}
	if !contains(schema.Required, "action") {
		schema.Required = append([]string{"action"}, schema.Required...)
	}

	return &ActionTool{
		name:        name,
		description: description,
		schema:      schema,
		actions:     actions,
	}
}

func (t *ActionTool) Name() string                 { return t.name }
func (t *ActionTool) Description() string          { return t.description }
func (t *ActionTool) InputSchema() mcp.InputSchema { return t.schema }

func (t *ActionTool) Actions() []string {
	names := make([]string, 0, len(t.actions))
	for action := range t.actions {
		names = append(names, action)
	}
	sort.Strings(names)
	return names
}

func (t *ActionTool) Execute(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	args, err := ParseArgs(raw)
	if err != nil {
		return nil, err
	}
	action, _ := args.String("action")
	handler, ok := t.actions[action]
	if !ok {
		return UnknownAction(action).Marshal()
	}
	return handler(ctx, args).Marshal()
}

// FuncTool is a flat tool backed by a single handler.
type FuncTool struct {
	name        string
	description string
	schema      mcp.InputSchema
	handler     Handler
}

func NewFuncTool(name, description string, schema mcp.InputSchema, handler Handler) *FuncTool {
	if schema.Type == "" {
		schema.Type = "object"
	}
	return &FuncTool{name: name, description: description, schema: schema, handler: handler}
}

func (t *FuncTool) Name() string                 { return t.name }
func (t *FuncTool) Description() string          { return t.description }
func (t *FuncTool) InputSchema() mcp.InputSchema { return t.schema }

func (t *FuncTool) Execute(ctx context.Context, raw json.RawMessage) ([]byte, error) {
	args, err := ParseArgs(raw)
	if err != nil {
		return nil, err
	}
	return t.handler(ctx, args).Marshal()
}

// Catalog is the lookup table shared by every module: canonical names first,
// then the legacy alias table.
type Catalog struct {
	tools   []Tool
	byName  map[string]Tool
	aliases map[string]Alias
}

func NewCatalog(tools []Tool, aliases map[string]Alias) *Catalog {
	byName := make(map[string]Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}
	if aliases == nil {
		aliases = map[string]Alias{}
	}
	return &Catalog{tools: tools, byName: byName, aliases: aliases}
}

func (c *Catalog) Tools() []Tool {
	return append([]Tool(nil), c.tools...)
}

func (c *Catalog) Aliases() map[string]Alias {
	out := make(map[string]Alias, len(c.aliases))
	for name, alias := range c.aliases {
		out[name] = alias
	}
	return out
}

// Resolve finds the tool serving name and rewrites legacy arguments so that
// they carry the aliased action.
func (c *Catalog) Resolve(name string, raw json.RawMessage) (Tool, json.RawMessage, bool, error) {
	if tool, ok := c.byName[name]; ok {
		return tool, raw, true, nil
	}
	alias, ok := c.aliases[name]
	if !ok {
		return nil, raw, false, nil
	}
	tool, ok := c.byName[alias.Tool]
	if !ok {
		return nil, raw, false, nil
	}
	rewritten, err := ApplyAlias(alias, raw)
	if err != nil {
		return nil, raw, false, err
	}
	return tool, rewritten, true, nil
}

// Execute runs name, returning the "Unknown tool" envelope when nothing matches.
func (c *Catalog) Execute(ctx context.Context, name string, raw json.RawMessage) ([]byte, error) {
	tool, args, ok, err := c.Resolve(name, raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return UnknownTool(name).Marshal()
	}
	return tool.Execute(ctx, args)
}

// ApplyAlias sets the aliased action on raw arguments.
func ApplyAlias(alias Alias, raw json.RawMessage) (json.RawMessage, error) {
	args, err := ParseArgs(raw)
	if err != nil {
		return nil, err
	}
	if alias.Action != "" {
		args["action"] = alias.Action
	}
	out, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode aliased arguments: %w", err)
	}
	return out, nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
