// Package bridge holds the internal tools the Cocos Creator editor extension
// calls over its own MCP session: registration, liveness, command
// acknowledgements and event ingress.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const feature = "editor_bridge"

// decodePayload reads args into payload and requires the injected session
// context of an initialized HTTP session.
func decodePayload(tool string, raw json.RawMessage, payload any) (types.MCPContext, error) {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, payload); err != nil {
			return types.MCPContext{}, fmt.Errorf("decode %s arguments: %w", tool, err)
		}
	}
	session := types.DecodeMCPContext(raw)
	if !session.Ready() {
		return session, types.NewNotAvailableError(tool+" requires an initialized MCP HTTP session", map[string]any{
			"feature": feature,
			"reason":  "session_not_initialized",
			"tool":    tool,
		})
	}
	return session, nil
}

func notAvailable(tool, reason, message string, extra map[string]any) error {
	data := map[string]any{
		"feature": feature,
		"reason":  reason,
		"tool":    tool,
	}
	for key, value := range extra {
		data[key] = value
	}
	return types.NewNotAvailableError(message, data)
}
