package mcp

// Tool is the discovery record for one MCP tool.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON schema of a tool's arguments.
type InputSchema struct {
	Type                 string         `json:"type"`
	Properties           map[string]any `json:"properties"`
	Required             []string       `json:"required"`
	Title                string         `json:"title,omitempty"`
	AdditionalProperties *bool          `json:"additionalProperties,omitempty"`
}

// ObjectSchema builds an object schema from properties and required names.
func ObjectSchema(title string, properties map[string]any, required ...string) InputSchema {
	if properties == nil {
		properties = map[string]any{}
	}
	if required == nil {
		required = []string{}
	}
	return InputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
		Title:      title,
	}
}
