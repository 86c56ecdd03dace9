package types

import (
	"context"
	"encoding/json"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

// Tool interface defines the contract for all tools
type Tool interface {
	Name() string
	Description() string
	InputSchema() mcp.InputSchema
	Execute(ctx context.Context, args json.RawMessage) ([]byte, error)
}

// ToolRegistry interface defines the contract for tool registries
type ToolRegistry interface {
	RegisterTool(tool Tool) error
	GetTool(name string) (Tool, bool)
	ListTools() []Tool
	ExecuteTool(ctx context.Context, name string, args json.RawMessage) ([]byte, error)
}

// Module is one family of editor tools. Execute dispatches by canonical or
// legacy tool name.
type Module interface {
	Tools() []Tool
	Aliases() map[string]Alias
	Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error)
}

// Alias maps a legacy flat tool name onto a consolidated tool and action.
type Alias struct {
	Tool   string
	Action string
}
