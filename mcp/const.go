package mcp

// ProtocolVersion is the preferred MCP protocol revision.
const ProtocolVersion = "2025-11-25"

// ServerName identifies this server in initialize results and tool-call envelopes.
const ServerName = "cocos-mcp-go"

// ServerVersion is overridden at build time by the CLI.
var ServerVersion = "0.1.0"

type MessageType string

const (
	TypeInit   MessageType = "init"
	TypeResult MessageType = "result"
	TypeError  MessageType = "error"
)

// Server-to-client notification methods.
const (
	// NotificationEditorMessage carries one editor message bus command to the editor extension.
	NotificationEditorMessage = "notifications/cocos/message"
	// NotificationToolsListChanged is sent when tools are registered after initialization.
	NotificationToolsListChanged = "notifications/tools/list_changed"
)
