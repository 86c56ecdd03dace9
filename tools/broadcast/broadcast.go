// Package broadcast keeps a bounded log of editor broadcast messages and the
// registry of message types being listened to.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const (
	MaxLogSize      = 1000
	TrimmedLogSize  = 500
	DefaultLogLimit = 50
)

// ImportantMessageTypes are listened to from construction onwards.
var ImportantMessageTypes = []string{
	"build-worker:ready",
	"build-worker:closed",
	"scene:ready",
	"scene:close",
	"scene:light-probe-edit-mode-changed",
	"scene:light-probe-bounding-box-edit-mode-changed",
	"asset-db:ready",
	"asset-db:close",
	"asset-db:asset-add",
	"asset-db:asset-change",
	"asset-db:asset-delete",
}

// Entry is one observed broadcast.
type Entry struct {
	Message   string
	Data      any
	Timestamp time.Time
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"message":   e.Message,
		"data":      e.Data,
		"timestamp": e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// Listener receives the payload of one broadcast.
type Listener func(data any)

// Module owns the broadcast log and listener registry.
type Module struct {
	mu        sync.Mutex
	log       []Entry
	listeners map[string][]Listener
	now       func() time.Time
	catalog   *types.Catalog
}

type Option func(*Module)

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

func New(opts ...Option) *Module {
	m := &Module{
		listeners: make(map[string][]Listener),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, messageType := range ImportantMessageTypes {
		m.addListener(messageType)
	}

	m.catalog = types.NewCatalog([]types.Tool{
		types.NewActionTool("broadcast_log_management",
			"BROADCAST LOG MANAGEMENT: read or clear the log of editor broadcast messages captured by active listeners. get_log returns the most recent entries, optionally filtered by exact message type.",
			mcp.ObjectSchema("Broadcast Log Management", map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     MaxLogSize,
					"default":     DefaultLogLimit,
					"description": "Number of recent entries to return (get_log)",
				},
				"messageType": map[string]any{
					"type":        "string",
					"description": "Only return entries of this message type (get_log)",
				},
			}),
			map[string]types.Handler{
				"get_log":   m.getLog,
				"clear_log": m.clearLog,
			}),
		types.NewActionTool("broadcast_listener_management",
			"BROADCAST LISTENERS: start or stop capturing a broadcast message type, or list the active listeners with their counts.",
			mcp.ObjectSchema("Broadcast Listener Management", map[string]any{
				"messageType": map[string]any{
					"type":        "string",
					"description": "Broadcast message type, e.g. scene:ready (start_listening, stop_listening)",
				},
			}),
			map[string]types.Handler{
				"start_listening":      m.startListening,
				"stop_listening":       m.stopListening,
				"get_active_listeners": m.getActiveListeners,
			}),
	}, map[string]types.Alias{
		"get_broadcast_log":        {Tool: "broadcast_log_management", Action: "get_log"},
		"clear_broadcast_log":      {Tool: "broadcast_log_management", Action: "clear_log"},
		"listen_broadcast_message": {Tool: "broadcast_listener_management", Action: "start_listening"},
		"stop_listening_broadcast": {Tool: "broadcast_listener_management", Action: "stop_listening"},
		"get_active_listeners":     {Tool: "broadcast_listener_management", Action: "get_active_listeners"},
	})
	return m
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }

func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	return m.catalog.Execute(ctx, toolName, args)
}

// Record delivers one broadcast to the listeners registered for its type.
// It reports whether any listener received it.
func (m *Module) Record(messageType string, data any) bool {
	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners[messageType]...)
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(data)
	}
	return len(listeners) > 0
}

// Len reports the current log length.
func (m *Module) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.log)
}

func (m *Module) addListener(messageType string) {
	listener := func(data any) {
		m.append(messageType, data)
	}
	m.listeners[messageType] = append(m.listeners[messageType], listener)
}

func (m *Module) append(messageType string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log = append(m.log, Entry{Message: messageType, Data: data, Timestamp: m.now()})
	if len(m.log) > MaxLogSize {
		trimmed := make([]Entry, TrimmedLogSize)
		copy(trimmed, m.log[len(m.log)-TrimmedLogSize:])
		m.log = trimmed
	}
	logger.Debug("Broadcast recorded", "type", messageType)
}

func (m *Module) getLog(_ context.Context, args types.Args) types.Response {
	limit := args.IntOr("limit", DefaultLogLimit)
	messageType := args.TrimmedString("messageType")

	m.mu.Lock()
	filtered := make([]Entry, 0, len(m.log))
	for _, entry := range m.log {
		if messageType == "" || entry.Message == messageType {
			filtered = append(filtered, entry)
		}
	}
	m.mu.Unlock()

	totalCount := len(filtered)
	if limit >= 0 && limit < len(filtered) {
		filtered = filtered[len(filtered)-limit:]
	}
	filter := messageType
	if filter == "" {
		filter = "all"
	}

	return types.OK(map[string]any{
		"log":        filtered,
		"count":      len(filtered),
		"totalCount": totalCount,
		"filter":     filter,
	}, fmt.Sprintf("Retrieved %d broadcast messages", len(filtered)))
}

func (m *Module) clearLog(_ context.Context, _ types.Args) types.Response {
	m.mu.Lock()
	previous := len(m.log)
	m.log = nil
	m.mu.Unlock()

	return types.OK(map[string]any{"clearedCount": previous}, "Broadcast log cleared successfully")
}

func (m *Module) startListening(_ context.Context, args types.Args) types.Response {
	messageType := args.TrimmedString("messageType")
	if messageType == "" {
		return types.Fail("messageType is required")
	}

	m.mu.Lock()
	_, exists := m.listeners[messageType]
	if !exists {
		m.addListener(messageType)
	}
	m.mu.Unlock()

	data := map[string]any{"messageType": messageType}
	if exists {
		return types.OK(data, fmt.Sprintf("Already listening for message type: %s", messageType))
	}
	logger.Info("Started listening for broadcast", "type", messageType)
	return types.OK(data, fmt.Sprintf("Started listening for message type: %s", messageType))
}

func (m *Module) stopListening(_ context.Context, args types.Args) types.Response {
	messageType := args.TrimmedString("messageType")
	if messageType == "" {
		return types.Fail("messageType is required")
	}

	m.mu.Lock()
	_, exists := m.listeners[messageType]
	delete(m.listeners, messageType)
	m.mu.Unlock()

	data := map[string]any{"messageType": messageType}
	if !exists {
		return types.OK(data, fmt.Sprintf("No active listeners for message type: %s", messageType))
	}
	logger.Info("Stopped listening for broadcast", "type", messageType)
	return types.OK(data, fmt.Sprintf("Stopped listening for message type: %s", messageType))
}

func (m *Module) getActiveListeners(_ context.Context, _ types.Args) types.Response {
	m.mu.Lock()
	listeners := make([]map[string]any, 0, len(m.listeners))
	for messageType, callbacks := range m.listeners {
		listeners = append(listeners, map[string]any{
			"messageType": messageType,
			"count":       len(callbacks),
		})
	}
	m.mu.Unlock()

	sort.Slice(listeners, func(i, j int) bool {
		return listeners[i]["messageType"].(string) < listeners[j]["messageType"].(string)
	})
	return types.OK(map[string]any{
		"listeners": listeners,
		"count":     len(listeners),
	}, fmt.Sprintf("Found %d active listener types", len(listeners)))
}
