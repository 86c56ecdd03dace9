package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

type ackEditorMessagePayload struct {
	CommandID string `json:"command_id"`
	Success   *bool  `json:"success,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AckEditorMessageTool completes a bus command the editor has executed.
type AckEditorMessageTool struct {
	broker *editorbus.Broker
}

func NewAckEditorMessageTool(broker *editorbus.Broker) *AckEditorMessageTool {
	return &AckEditorMessageTool{broker: broker}
}

func (t *AckEditorMessageTool) Name() string { return "ack-editor-message" }

func (t *AckEditorMessageTool) Description() string {
	return "Acknowledges an editor message bus command with its result (internal bridge tool)"
}

func (t *AckEditorMessageTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"command_id": map[string]any{"type": "string"},
			"success":    map[string]any{"type": "boolean"},
			"result":     map[string]any{"description": "Value returned by the editor"},
			"error":      map[string]any{"type": "string"},
		},
		Required: []string{"command_id"},
		Title:    "Ack Editor Message",
	}
}

func (t *AckEditorMessageTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload ackEditorMessagePayload
	session, err := decodePayload(t.Name(), args, &payload)
	if err != nil {
		return nil, err
	}

	commandID := strings.TrimSpace(payload.CommandID)
	if commandID == "" {
		return nil, notAvailable(t.Name(), "command_id_missing", "Message acknowledgement requires command_id", nil)
	}

	success := true
	if payload.Success != nil {
		success = *payload.Success
	}
	acknowledged := t.broker.Ack(session.SessionID, editorbus.Ack{
		CommandID: commandID,
		Success:   success,
		Result:    payload.Result,
		Error:     strings.TrimSpace(payload.Error),
		AckedAt:   time.Now().UTC(),
	})
	if !acknowledged {
		return nil, notAvailable(t.Name(), "unknown_or_expired_command", "Message acknowledgement rejected", map[string]any{
			"command_id": commandID,
		})
	}

	return json.Marshal(map[string]any{
		"acknowledged": true,
		"command_id":   commandID,
	})
}
