package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "cocos-mcp-go", cfg.Name)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8585, cfg.Server.Port)
	require.Len(t, cfg.Transports, 2)
	assert.Equal(t, "stdio", cfg.Transports[0].Type)
	assert.Equal(t, "streamable_http", cfg.Transports[1].Type)
	assert.Equal(t, "http://127.0.0.1:8585/mcp", cfg.Transports[1].URL)
	assert.Equal(t, EditorBridgeBroker, cfg.Editor.Bridge)
	assert.Equal(t, 8, cfg.Editor.RequestTimeoutSeconds)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test_config.json")
	testConfig := `{
		"name": "test-server",
		"version": "1.0.0",
		"server": {"host": " 127.0.0.1 ", "port": 8080, "debug": true},
		"transports": [
			{"type": "stdio", "enabled": true},
			{"type": "STREAMABLE_HTTP", "enabled": true, "url": "http://localhost:8080/mcp"}
		],
		"logging": {"level": "DEBUG", "format": "text", "path": "/tmp/test.log"},
		"editor": {"bridge": "http", "bridge_url": "http://127.0.0.1:9527/message", "request_timeout_seconds": 3}
	}`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "test-server", cfg.Name)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "streamable_http", cfg.Transports[1].Type)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, EditorBridgeHTTP, cfg.Editor.Bridge)
	assert.Equal(t, 3, cfg.Editor.RequestTimeoutSeconds)
	assert.Equal(t, 10, cfg.Editor.StaleAfterSeconds)
}

func TestLoadConfigYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mcp_config.yaml")
	testConfig := `
name: yaml-server
server:
  host: localhost
  port: 9000
transports:
  - type: streamable_http
    enabled: true
logging:
  level: warn
  format: json
  path: /tmp/yaml.log
project:
  path: /projects/demo
`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "yaml-server", cfg.Name)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/projects/demo", cfg.Project.Path)
	assert.Equal(t, EditorBridgeBroker, cfg.Editor.Bridge)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "mcp_config.json")
	require.NoError(t, SaveConfig(NewConfig(), configPath))

	t.Setenv("MCP_PORT", "9191")
	t.Setenv("MCP_EDITOR_TIMEOUT_SECONDS", "15")
	t.Setenv("PROJECT_PATH", "/env/project")

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 15, cfg.Editor.RequestTimeoutSeconds)
	assert.Equal(t, "/env/project", cfg.Project.Path)
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
}

func TestLoadConfigRejectsHTTPBridgeWithoutURL(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bridge.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"editor": {"bridge": "http"}}`), 0644))

	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridge_url")
}

func TestValidateRejectsUnknownBridge(t *testing.T) {
	cfg := NewConfig()
	cfg.Editor.Bridge = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	t.Setenv("MCP_CONFIG_PATH", "/custom/mcp.yaml")
	path, err := ResolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/custom/mcp.yaml", path)
}

func TestEnsureDefaultConfigCreatesOnce(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "mcp_config.yaml")
	require.NoError(t, EnsureDefaultConfig(configPath))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "cocos-mcp-go", cfg.Name)

	cfg.Name = "edited"
	require.NoError(t, SaveConfig(cfg, configPath))
	require.NoError(t, EnsureDefaultConfig(configPath))

	reloaded, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "edited", reloaded.Name)
}
