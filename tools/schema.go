package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const schemaBaseURL = "mem://cocos-mcp/tools/"

func compileInputSchema(toolName string, schema mcp.InputSchema) (*jsonschema.Schema, error) {
	if schema.Type == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = map[string]any{}
	}
	if schema.Required == nil {
		schema.Required = []string{}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("encode input schema: %w", err)
	}

	url := schemaBaseURL + toolName + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load input schema: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return compiled, nil
}

func validateArguments(toolName string, schema *jsonschema.Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}

	var instance any = map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&instance); err != nil {
			return types.NewInvalidArgumentError("Tool arguments are not valid JSON", map[string]any{
				"tool":   toolName,
				"reason": err.Error(),
			})
		}
	}
	if object, ok := instance.(map[string]any); ok {
		instance = types.StripMCPContext(object)
	}

	err := schema.Validate(instance)
	if err == nil {
		return nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return types.NewInvalidArgumentError(err.Error(), map[string]any{"tool": toolName})
	}

	problems := flattenValidationError(validationErr)
	return types.NewInvalidArgumentError(
		fmt.Sprintf("Invalid arguments for %s: %s", toolName, strings.Join(problems, "; ")),
		map[string]any{
			"tool":     toolName,
			"problems": problems,
		},
	)
}

func flattenValidationError(err *jsonschema.ValidationError) []string {
	seen := map[string]bool{}
	var walk func(*jsonschema.ValidationError)
	walk = func(current *jsonschema.ValidationError) {
		if len(current.Causes) == 0 {
			location := current.InstanceLocation
			if location == "" {
				location = "/"
			}
			seen[location+": "+current.Message] = true
			return
		}
		for _, cause := range current.Causes {
			walk(cause)
		}
	}
	walk(err)

	problems := make([]string, 0, len(seen))
	for problem := range seen {
		problems = append(problems, problem)
	}
	sort.Strings(problems)
	return problems
}
