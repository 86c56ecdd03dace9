package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

// BroadcastRecorder receives editor broadcast messages.
type BroadcastRecorder interface {
	Record(messageType string, data any) bool
}

// ConsoleCapturer receives editor console lines.
type ConsoleCapturer interface {
	Capture(messageType, message string)
}

type emitBroadcastPayload struct {
	MessageType string `json:"messageType"`
	Data        any    `json:"data"`
}

// EmitEditorBroadcastTool forwards an editor broadcast into the listener registry.
type EmitEditorBroadcastTool struct {
	recorder BroadcastRecorder
}

func NewEmitEditorBroadcastTool(recorder BroadcastRecorder) *EmitEditorBroadcastTool {
	return &EmitEditorBroadcastTool{recorder: recorder}
}

func (t *EmitEditorBroadcastTool) Name() string { return "emit-editor-broadcast" }

func (t *EmitEditorBroadcastTool) Description() string {
	return "Delivers an editor broadcast message to active listeners (internal bridge tool)"
}

func (t *EmitEditorBroadcastTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"messageType": map[string]any{"type": "string"},
			"data":        map[string]any{"description": "Broadcast payload"},
		},
		Required: []string{"messageType"},
		Title:    "Emit Editor Broadcast",
	}
}

func (t *EmitEditorBroadcastTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload emitBroadcastPayload
	if _, err := decodePayload(t.Name(), args, &payload); err != nil {
		return nil, err
	}
	messageType := strings.TrimSpace(payload.MessageType)
	if messageType == "" {
		return nil, notAvailable(t.Name(), "message_type_missing", "Broadcast requires messageType", nil)
	}

	return json.Marshal(map[string]any{
		"messageType": messageType,
		"recorded":    t.recorder.Record(messageType, payload.Data),
	})
}

type emitConsolePayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var consoleTypes = []string{"log", "warn", "error", "info"}

// EmitEditorConsoleTool appends an editor console line to the console buffer.
type EmitEditorConsoleTool struct {
	console ConsoleCapturer
}

func NewEmitEditorConsoleTool(console ConsoleCapturer) *EmitEditorConsoleTool {
	return &EmitEditorConsoleTool{console: console}
}

func (t *EmitEditorConsoleTool) Name() string { return "emit-editor-console" }

func (t *EmitEditorConsoleTool) Description() string {
	return "Captures an editor console message (internal bridge tool)"
}

func (t *EmitEditorConsoleTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"type":    map[string]any{"type": "string", "enum": consoleTypes},
			"message": map[string]any{"type": "string"},
		},
		Required: []string{"type", "message"},
		Title:    "Emit Editor Console",
	}
}

func (t *EmitEditorConsoleTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload emitConsolePayload
	if _, err := decodePayload(t.Name(), args, &payload); err != nil {
		return nil, err
	}
	messageType := strings.ToLower(strings.TrimSpace(payload.Type))
	if messageType == "" {
		messageType = "log"
	}
	t.console.Capture(messageType, payload.Message)
	return json.Marshal(map[string]any{"captured": true, "type": messageType})
}
