package types

import (
	"encoding/json"
	"strings"
)

// MCPContextKey is the argument key the HTTP transport uses to inject session
// metadata into internal bridge tool calls.
const MCPContextKey = "_mcp"

// MCPContext carries injected transport/session metadata for internal bridge tools.
type MCPContext struct {
	SessionID          string `json:"session_id"`
	SessionInitialized bool   `json:"session_initialized"`
}

func (c MCPContext) Ready() bool {
	return c.SessionID != "" && c.SessionInitialized
}

func ExtractMCPContext(arguments map[string]any) MCPContext {
	if arguments == nil {
		return MCPContext{}
	}
	rawContext, _ := arguments[MCPContextKey].(map[string]any)
	ctx := MCPContext{}
	if rawContext == nil {
		return ctx
	}
	if sessionID, ok := rawContext["session_id"].(string); ok {
		ctx.SessionID = strings.TrimSpace(sessionID)
	}
	if initialized, ok := rawContext["session_initialized"].(bool); ok {
		ctx.SessionInitialized = initialized
	}
	return ctx
}

// DecodeMCPContext reads the injected context straight from raw tool arguments.
func DecodeMCPContext(raw json.RawMessage) MCPContext {
	var envelope struct {
		Context MCPContext `json:"_mcp"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &envelope) != nil {
		return MCPContext{}
	}
	envelope.Context.SessionID = strings.TrimSpace(envelope.Context.SessionID)
	return envelope.Context
}

func StripMCPContext(arguments map[string]any) map[string]any {
	if len(arguments) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(arguments))
	for key, value := range arguments {
		if key == MCPContextKey {
			continue
		}
		out[key] = value
	}
	return out
}
