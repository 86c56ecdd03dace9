package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

type registerEditorPayload struct {
	Version     string `json:"version"`
	ProjectPath string `json:"project_path"`
	ProjectName string `json:"project_name"`
	Extension   string `json:"extension"`
}

// RegisterEditorTool binds the calling session as the editor that receives
// bus commands.
type RegisterEditorTool struct {
	presence *editorbus.Presence
	now      func() time.Time
}

func NewRegisterEditorTool(presence *editorbus.Presence) *RegisterEditorTool {
	return &RegisterEditorTool{presence: presence, now: time.Now}
}

func (t *RegisterEditorTool) Name() string { return "register-editor" }

func (t *RegisterEditorTool) Description() string {
	return "Registers the calling session as the Cocos Creator editor (internal bridge tool)"
}

func (t *RegisterEditorTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"version":      map[string]any{"type": "string", "description": "Cocos Creator version"},
			"project_path": map[string]any{"type": "string", "description": "Absolute project directory"},
			"project_name": map[string]any{"type": "string"},
			"extension":    map[string]any{"type": "string", "description": "Editor extension version"},
		},
		Required: []string{},
		Title:    "Register Editor",
	}
}

func (t *RegisterEditorTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload registerEditorPayload
	session, err := decodePayload(t.Name(), args, &payload)
	if err != nil {
		return nil, err
	}

	now := t.now().UTC()
	t.presence.Register(session.SessionID, editorbus.EditorInfo{
		Version:     strings.TrimSpace(payload.Version),
		ProjectPath: strings.TrimSpace(payload.ProjectPath),
		ProjectName: strings.TrimSpace(payload.ProjectName),
		Extension:   strings.TrimSpace(payload.Extension),
	}, now)

	return json.Marshal(map[string]any{
		"registered":    true,
		"session_id":    session.SessionID,
		"registered_at": now.Format(time.RFC3339Nano),
		"stale_after_s": int(t.presence.StaleAfter() / time.Second),
	})
}
