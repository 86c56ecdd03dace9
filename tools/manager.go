package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcplog"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

var ErrToolNotFound = errors.New("tool not found")

func IsToolNotFound(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}

// Manager implements ToolRegistry. Legacy names are resolved through the
// alias table before arguments are validated and dispatched.
type Manager struct {
	mutex      sync.RWMutex
	tools      map[string]types.Tool
	aliases    map[string]types.Alias
	validators map[string]*jsonschema.Schema
	audit      *mcplog.Logger
}

// NewManager creates a new tool manager
func NewManager() *Manager {
	return &Manager{
		tools:      make(map[string]types.Tool),
		aliases:    make(map[string]types.Alias),
		validators: make(map[string]*jsonschema.Schema),
	}
}

// SetAuditLog enables JSONL audit records for every call.
func (m *Manager) SetAuditLog(audit *mcplog.Logger) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.audit = audit
}

// RegisterTool registers a new tool and compiles its input schema.
func (m *Manager) RegisterTool(tool types.Tool) error {
	if tool == nil {
		return errors.New("tool cannot be nil")
	}

	name := tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}

	validator, err := compileInputSchema(name, tool.InputSchema())
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tools[name] = tool
	m.validators[name] = validator
	logger.Debug("Tool registered", "name", name)
	return nil
}

// RegisterAlias maps a legacy tool name onto a registered tool.
func (m *Manager) RegisterAlias(name string, alias types.Alias) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.tools[name]; exists {
		return fmt.Errorf("alias %s shadows a registered tool", name)
	}
	if _, exists := m.tools[alias.Tool]; !exists {
		return fmt.Errorf("alias %s targets unknown tool %s", name, alias.Tool)
	}
	m.aliases[name] = alias
	return nil
}

// RegisterModule registers every tool of a module followed by its aliases.
func (m *Manager) RegisterModule(module types.Module) error {
	for _, tool := range module.Tools() {
		if err := m.RegisterTool(tool); err != nil {
			return err
		}
	}

	aliases := module.Aliases()
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.RegisterAlias(name, aliases[name]); err != nil {
			return err
		}
	}
	return nil
}

// GetTool retrieves a tool by name
func (m *Manager) GetTool(name string) (types.Tool, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tool, exists := m.tools[name]
	return tool, exists
}

// ListTools returns all registered tools ordered by name.
func (m *Manager) ListTools() []types.Tool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tools := make([]types.Tool, 0, len(m.tools))
	for _, tool := range m.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name() < tools[j].Name()
	})
	return tools
}

// Aliases returns a copy of the legacy name table.
func (m *Manager) Aliases() map[string]types.Alias {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make(map[string]types.Alias, len(m.aliases))
	for name, alias := range m.aliases {
		out[name] = alias
	}
	return out
}

// GetTools returns the discovery records of registered tools.
func (m *Manager) GetTools() []mcp.Tool {
	tools := m.ListTools()
	mcpTools := make([]mcp.Tool, 0, len(tools))
	for _, tool := range tools {
		mcpTools = append(mcpTools, mcp.Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: tool.InputSchema(),
		})
	}
	return mcpTools
}

func (m *Manager) resolve(name string) (types.Tool, *jsonschema.Schema, *types.Alias, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if tool, ok := m.tools[name]; ok {
		return tool, m.validators[name], nil, true
	}
	alias, ok := m.aliases[name]
	if !ok {
		return nil, nil, nil, false
	}
	tool, ok := m.tools[alias.Tool]
	if !ok {
		return nil, nil, nil, false
	}
	return tool, m.validators[alias.Tool], &alias, true
}

// ExecuteTool resolves name, validates args against the tool's input schema
// and executes it.
func (m *Manager) ExecuteTool(ctx context.Context, name string, args json.RawMessage) ([]byte, error) {
	started := time.Now()
	tool, validator, alias, exists := m.resolve(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if alias != nil {
		rewritten, err := types.ApplyAlias(*alias, args)
		if err != nil {
			return nil, types.NewInvalidArgumentError(err.Error(), map[string]any{"tool": name})
		}
		args = rewritten
	}

	logger.Debug("Executing tool", "name", name, "resolved", tool.Name())
	var result []byte
	err := validateArguments(tool.Name(), validator, args)
	if err == nil {
		result, err = tool.Execute(ctx, args)
	}
	m.writeAudit(name, tool.Name(), args, result, err, time.Since(started))
	return result, err
}

// CallTool executes a tool with decoded arguments and decodes its result.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	resultJSON, err := m.ExecuteTool(ctx, name, argsJSON)
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (m *Manager) writeAudit(name, resolved string, args json.RawMessage, result []byte, callErr error, elapsed time.Duration) {
	m.mutex.RLock()
	audit := m.audit
	m.mutex.RUnlock()
	if audit == nil {
		return
	}

	params, _ := types.ParseArgs(args)
	entry := mcplog.Entry{
		Tool:          name,
		Params:        mcplog.SanitizeParams(params),
		DurationMs:    elapsed.Milliseconds(),
		ResponseBytes: len(result),
	}
	if resolved != name {
		entry.ResolvedTool = resolved
	}
	if action, ok := params.String("action"); ok {
		entry.Action = action
	}
	if callErr != nil {
		message := callErr.Error()
		entry.Error = &message
	} else {
		var envelope struct {
			Success *bool `json:"success"`
		}
		if json.Unmarshal(result, &envelope) == nil {
			entry.Success = envelope.Success
		}
	}
	if err := audit.Write(entry); err != nil {
		logger.Warn("Failed to write tool audit record", "tool", name, "error", err)
	}
}
