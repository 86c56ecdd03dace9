package commands

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/config"
	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcplog"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/tools/debug"
)

// runtime is everything a transport needs to serve tools.
type runtime struct {
	cfg      *config.Config
	manager  *tools.Manager
	suite    *tools.Suite
	broker   *editorbus.Broker
	audit    *mcplog.Logger
	internal map[string]struct{}
}

func loadConfig() (*config.Config, string, error) {
	path := configFlag
	if path == "" {
		resolved, err := config.ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}
	if err := config.EnsureDefaultConfig(path); err != nil {
		return nil, path, fmt.Errorf("prepare config %s: %w", path, err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

// newRuntime builds the bus, tool suite and manager described by cfg.
func newRuntime(cfg *config.Config, console *debug.Console) (*runtime, error) {
	rt := &runtime{cfg: cfg, internal: make(map[string]struct{})}

	var bus editorbus.Bus
	timeout := time.Duration(cfg.Editor.RequestTimeoutSeconds) * time.Second
	switch cfg.Editor.Bridge {
	case config.EditorBridgeHTTP:
		bus = editorbus.NewHTTPBus(cfg.Editor.BridgeURL, timeout)
	case config.EditorBridgeBroker, "":
		presence := editorbus.NewPresence(time.Duration(cfg.Editor.StaleAfterSeconds) * time.Second)
		rt.broker = editorbus.NewBroker(presence, timeout)
		bus = rt.broker
	default:
		return nil, fmt.Errorf("unsupported editor bridge %q", cfg.Editor.Bridge)
	}

	audit, err := mcplog.Open(cfg.Logging.AuditPath)
	if err != nil {
		return nil, err
	}
	rt.audit = audit

	suite, err := tools.NewSuite(tools.Dependencies{
		Bus:         bus,
		Broker:      rt.broker,
		Console:     console,
		ProjectPath: cfg.Project.Path,
		Endpoint:    endpointURL(cfg),
	})
	if err != nil {
		rt.closeAudit()
		return nil, err
	}
	rt.suite = suite

	rt.manager = tools.NewManager()
	rt.manager.SetAuditLog(audit)
	if err := suite.Register(rt.manager); err != nil {
		_ = rt.Close()
		return nil, err
	}
	for _, tool := range suite.Bridge {
		rt.internal[tool.Name()] = struct{}{}
	}

	logger.Info("Tool suite ready", "tools", len(rt.manager.ListTools()), "aliases", len(rt.manager.Aliases()), "editor_bridge", cfg.Editor.Bridge)
	return rt, nil
}

// isInternal reports the editor bridge tools, which only make sense on an
// HTTP session owned by the editor extension.
func (rt *runtime) isInternal(name string) bool {
	_, ok := rt.internal[name]
	return ok
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.suite != nil {
		errs = append(errs, rt.suite.Close())
	}
	errs = append(errs, rt.closeAudit())
	return errors.Join(errs...)
}

func (rt *runtime) closeAudit() error {
	if rt.audit == nil {
		return nil
	}
	err := rt.audit.Close()
	rt.audit = nil
	return err
}

func endpointURL(cfg *config.Config) string {
	host := cfg.Server.Host
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)) + "/mcp"
}

func presenceOf(rt *runtime) *editorbus.Presence {
	if rt.broker == nil {
		return nil
	}
	return rt.broker.Presence()
}
