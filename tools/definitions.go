package tools

import (
	"errors"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/tools/bridge"
	"github.com/cocos-mcp/cocos-mcp-go/tools/broadcast"
	"github.com/cocos-mcp/cocos-mcp-go/tools/debug"
	"github.com/cocos-mcp/cocos-mcp-go/tools/preferences"
	"github.com/cocos-mcp/cocos-mcp-go/tools/referenceimage"
	"github.com/cocos-mcp/cocos-mcp-go/tools/scene"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
	"github.com/cocos-mcp/cocos-mcp-go/tools/validation"
)

// Dependencies are the collaborators shared by the tool modules.
type Dependencies struct {
	Bus editorbus.Bus
	// Broker is set when the editor reaches the server as an MCP session.
	// The internal bridge tools are only registered in that case.
	Broker      *editorbus.Broker
	Console     *debug.Console
	ProjectPath string
	// Endpoint is the streamable HTTP URL shown in generated curl commands.
	Endpoint string
}

// Suite holds every editor tool module.
type Suite struct {
	Broadcast      *broadcast.Module
	Debug          *debug.Module
	Preferences    *preferences.Module
	ReferenceImage *referenceimage.Module
	Scene          *scene.Module
	Validation     *validation.Module
	Bridge         []types.Tool
}

// NewSuite builds the modules around deps.
func NewSuite(deps Dependencies) (*Suite, error) {
	if deps.Bus == nil {
		return nil, errors.New("editor bus is required")
	}
	if deps.Console == nil {
		deps.Console = debug.NewConsole()
	}

	editorVersion := func() string { return "" }
	editorProjectPath := func() string { return "" }
	if deps.Broker != nil {
		presence := deps.Broker.Presence()
		editorVersion = func() string {
			reg, _ := presence.Latest()
			return reg.Info.Version
		}
		editorProjectPath = func() string {
			reg, _ := presence.Latest()
			return reg.Info.ProjectPath
		}
	}

	debugModule, err := debug.New(deps.Bus, debug.Options{
		Console:           deps.Console,
		EditorProjectPath: editorProjectPath,
		ProjectPath:       deps.ProjectPath,
	})
	if err != nil {
		return nil, err
	}
	sceneModule, err := scene.New(deps.Bus)
	if err != nil {
		_ = debugModule.Close()
		return nil, err
	}

	suite := &Suite{
		Broadcast:      broadcast.New(),
		Debug:          debugModule,
		Preferences:    preferences.New(deps.Bus, preferences.WithEditorVersion(editorVersion)),
		ReferenceImage: referenceimage.New(deps.Bus),
		Scene:          sceneModule,
		Validation:     validation.New(validation.WithEndpoint(deps.Endpoint)),
	}
	if deps.Broker != nil {
		suite.Bridge = bridge.Tools(deps.Broker, suite.Broadcast, deps.Console)
	}
	return suite, nil
}

// Modules returns the editor tool modules in registration order.
func (s *Suite) Modules() []types.Module {
	return []types.Module{
		s.Broadcast,
		s.Debug,
		s.Preferences,
		s.ReferenceImage,
		s.Scene,
		s.Validation,
	}
}

// Register adds every module, alias and bridge tool to manager.
func (s *Suite) Register(manager *Manager) error {
	for _, module := range s.Modules() {
		if err := manager.RegisterModule(module); err != nil {
			return err
		}
	}
	for _, tool := range s.Bridge {
		if err := manager.RegisterTool(tool); err != nil {
			return err
		}
	}
	return nil
}

func (s *Suite) Close() error {
	return s.Debug.Close()
}
