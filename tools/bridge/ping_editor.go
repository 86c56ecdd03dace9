package bridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

// PingEditorTool keeps an editor registration fresh.
type PingEditorTool struct {
	presence *editorbus.Presence
	now      func() time.Time
}

func NewPingEditorTool(presence *editorbus.Presence) *PingEditorTool {
	return &PingEditorTool{presence: presence, now: time.Now}
}

func (t *PingEditorTool) Name() string { return "ping-editor" }

func (t *PingEditorTool) Description() string {
	return "Refreshes the editor registration of the calling session (internal bridge tool)"
}

func (t *PingEditorTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{},
		Required:   []string{},
		Title:      "Ping Editor",
	}
}

func (t *PingEditorTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload struct{}
	session, err := decodePayload(t.Name(), args, &payload)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	if !t.presence.Touch(session.SessionID, now) {
		return nil, notAvailable(t.Name(), "editor_not_registered", "Editor ping requires a prior register-editor call", nil)
	}
	return json.Marshal(map[string]any{
		"ok":         true,
		"session_id": session.SessionID,
		"updated_at": now.Format(time.RFC3339Nano),
	})
}
