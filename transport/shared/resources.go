package shared

import (
	"fmt"
	"sort"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
)

// NewResourceReader serves the built-in resources. presence may be nil when
// the server talks to the editor over the HTTP bridge instead of the broker.
func NewResourceReader(toolManager *tools.Manager, presence *editorbus.Presence) ResourceReader {
	return func(uri string) (any, error) {
		switch uri {
		case ResourceEditorStatus:
			return EditorStatus(presence, time.Now().UTC()), nil
		case ResourceToolAliases:
			return aliasTable(toolManager), nil
		default:
			return nil, fmt.Errorf("Unknown resource: %s", uri)
		}
	}
}

// EditorStatus describes the registered editor as of now. With a nil
// presence the server is on the HTTP bridge and cannot observe the editor.
func EditorStatus(presence *editorbus.Presence, now time.Time) map[string]any {
	if presence == nil {
		return map[string]any{
			"connected": false,
			"bridge":    "http",
		}
	}

	status := map[string]any{
		"bridge":        "broker",
		"stale_after_s": int(presence.StaleAfter() / time.Second),
	}
	reg, active, reason := presence.Active(now)
	status["connected"] = active
	if !active {
		status["reason"] = reason
		if latest, ok := presence.Latest(); ok {
			reg = latest
		} else {
			return status
		}
	}
	status["session_id"] = reg.SessionID
	status["editor"] = reg.Info
	status["registered_at"] = reg.RegisteredAt.Format(time.RFC3339)
	status["last_seen"] = reg.LastSeen.Format(time.RFC3339)
	return status
}

func aliasTable(toolManager *tools.Manager) map[string]any {
	aliases := toolManager.Aliases()
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]map[string]string, 0, len(names))
	for _, name := range names {
		alias := aliases[name]
		entries = append(entries, map[string]string{
			"name":   name,
			"tool":   alias.Tool,
			"action": alias.Action,
		})
	}
	return map[string]any{
		"aliases": entries,
		"count":   len(entries),
	}
}
