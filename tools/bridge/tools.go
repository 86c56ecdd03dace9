package bridge

import (
	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

// Tools returns the internal bridge tools. Broadcast and console may be nil,
// in which case the matching emit tool is left out.
func Tools(broker *editorbus.Broker, broadcast BroadcastRecorder, console ConsoleCapturer) []types.Tool {
	tools := []types.Tool{
		NewRegisterEditorTool(broker.Presence()),
		NewPingEditorTool(broker.Presence()),
		NewAckEditorMessageTool(broker),
	}
	if broadcast != nil {
		tools = append(tools, NewEmitEditorBroadcastTool(broadcast))
	}
	if console != nil {
		tools = append(tools, NewEmitEditorConsoleTool(console))
	}
	return tools
}
