// Package validation helps clients build valid JSON arguments and MCP
// tools/call requests. None of its tools talk to the editor.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

// DefaultEndpoint is the streamable HTTP endpoint used in generated curl commands.
const DefaultEndpoint = "http://127.0.0.1:8585/mcp"

type Option func(*Module)

// WithEndpoint sets the URL embedded in generated curl commands.
func WithEndpoint(endpoint string) Option {
	return func(m *Module) {
		if endpoint != "" {
			m.endpoint = endpoint
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Module) {
		if now != nil {
			m.now = now
		}
	}
}

// Module implements the validation helper tools.
type Module struct {
	endpoint string
	now      func() time.Time
	catalog  *types.Catalog
}

func New(opts ...Option) *Module {
	m := &Module{endpoint: DefaultEndpoint, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	m.catalog = types.NewCatalog([]types.Tool{
		types.NewFuncTool("validate_json_params",
			"Validate a JSON argument string and try to repair common mistakes (trailing commas, stray quotes, single quotes, raw newlines). Optionally checks the result against a shallow schema.",
			mcp.ObjectSchema("Validate JSON Params", map[string]any{
				"jsonString": map[string]any{
					"type":        "string",
					"description": "JSON text to validate",
				},
				"expectedSchema": map[string]any{
					"type":        "object",
					"description": "Optional schema: top-level type, required keys and property types are checked",
				},
			}, "jsonString"),
			m.validateJSONParams),
		types.NewFuncTool("safe_string_value",
			"Escape a string so it can be embedded in a JSON document.",
			mcp.ObjectSchema("Safe String Value", map[string]any{
				"value": map[string]any{
					"type":        "string",
					"description": "Raw string to escape",
				},
			}, "value"),
			m.safeStringValue),
		types.NewFuncTool("format_mcp_request",
			"Wrap a tool name and arguments into a JSON-RPC tools/call request, with a ready-to-run curl command.",
			mcp.ObjectSchema("Format MCP Request", map[string]any{
				"toolName": map[string]any{
					"type":        "string",
					"description": "Tool to call",
				},
				"arguments": map[string]any{
					"type":        []string{"object", "string"},
					"description": "Tool arguments as an object or a JSON string",
				},
			}, "toolName", "arguments"),
			m.formatMCPRequest),
	}, nil)
	return m
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }

func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	return m.catalog.Execute(ctx, toolName, args)
}

func (m *Module) validateJSONParams(_ context.Context, args types.Args) types.Response {
	input, ok := args.String("jsonString")
	if !ok {
		return types.Fail("jsonString is required")
	}

	var parsed any
	parseErr := json.Unmarshal([]byte(input), &parsed)
	fixed := input
	fixesApplied := false
	if parseErr != nil {
		fixed = repairJSON(input)
		if err := json.Unmarshal([]byte(fixed), &parsed); err != nil {
			return types.Response{
				Success: false,
				Error:   "Cannot fix JSON: " + parseErr.Error(),
				Data: map[string]any{
					"originalJson": input,
					"fixedAttempt": fixed,
					"suggestions":  suggestionsFor(input, err),
				},
			}
		}
		fixesApplied = true
	}

	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return types.FailErr(err)
	}
	data := map[string]any{
		"originalJson": input,
		"fixedJson":    string(pretty),
		"parsedJson":   parsed,
		"fixesApplied": fixesApplied,
	}
	if schema, ok := args.Object("expectedSchema"); ok {
		problems := checkShallowSchema(parsed, schema)
		data["schemaValidation"] = map[string]any{
			"isValid": len(problems) == 0,
			"errors":  problems,
		}
	}

	message := "JSON is valid"
	if fixesApplied {
		message = "JSON was repaired"
	}
	return types.OK(data, message)
}

// checkShallowSchema checks the top-level type, required keys and the types
// of top-level properties only.
func checkShallowSchema(value any, schema map[string]any) []string {
	problems := []string{}
	if want, ok := schema["type"].(string); ok && jsonType(value) != want {
		problems = append(problems, fmt.Sprintf("Expected type %s, got %s", want, jsonType(value)))
		return problems
	}
	object, ok := value.(map[string]any)
	if !ok {
		return problems
	}
	if required, ok := schema["required"].([]any); ok {
		for _, item := range required {
			key, _ := item.(string)
			if _, present := object[key]; key != "" && !present {
				problems = append(problems, "Missing required field: "+key)
			}
		}
	}
	if properties, ok := schema["properties"].(map[string]any); ok {
		keys := make([]string, 0, len(properties))
		for key := range properties {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			prop, _ := properties[key].(map[string]any)
			want, _ := prop["type"].(string)
			got, present := object[key]
			if want == "" || !present {
				continue
			}
			if actual := jsonType(got); actual != want && !(want == "integer" && isInteger(got)) {
				problems = append(problems, fmt.Sprintf("Field %s: expected %s, got %s", key, want, actual))
			}
		}
	}
	return problems
}

func jsonType(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func isInteger(value any) bool {
	f, ok := value.(float64)
	return ok && f == float64(int64(f))
}

func (m *Module) safeStringValue(_ context.Context, args types.Args) types.Response {
	value, ok := args.String("value")
	if !ok {
		return types.Fail("value must be a string")
	}
	quoted, err := json.Marshal(value)
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{
		"originalValue":  value,
		"escapedValue":   escapeString(value),
		"jsonReady":      string(quoted),
		"jsonSafeString": string(quoted),
		"usage":          `Embed escapedValue between double quotes, or use jsonReady as-is`,
	}, "")
}

func (m *Module) formatMCPRequest(_ context.Context, args types.Args) types.Response {
	toolName := args.TrimmedString("toolName")
	if toolName == "" {
		return types.Fail("toolName is required")
	}

	var arguments any = map[string]any{}
	switch value := args.Value("arguments").(type) {
	case nil:
	case string:
		if err := json.Unmarshal([]byte(value), &arguments); err != nil {
			return types.Failf("arguments is not valid JSON: %v", err)
		}
	default:
		arguments = value
	}

	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      m.now().UnixMilli(),
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
	pretty, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return types.FailErr(err)
	}
	compact, err := json.Marshal(request)
	if err != nil {
		return types.FailErr(err)
	}

	curl := fmt.Sprintf("curl -X POST %s \\\n  -H \"Content-Type: application/json\" \\\n  -d '%s'", m.endpoint, compact)
	return types.OK(map[string]any{
		"request":       request,
		"formattedJson": string(pretty),
		"compactJson":   string(compact),
		"curlCommand":   curl,
	}, "MCP request formatted")
}
