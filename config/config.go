package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cocos-mcp/cocos-mcp-go/mcp"
)

const (
	EditorBridgeBroker = "broker"
	EditorBridgeHTTP   = "http"

	defaultRequestTimeoutSeconds = 8
	defaultStaleAfterSeconds     = 10
)

// Config represents the MCP server configuration
type Config struct {
	Name        string      `json:"name" yaml:"name"`
	Version     string      `json:"version" yaml:"version"`
	Description string      `json:"description" yaml:"description"`
	Server      Server      `json:"server" yaml:"server"`
	Transports  []Transport `json:"transports" yaml:"transports"`
	Logging     Logging     `json:"logging" yaml:"logging"`
	Editor      Editor      `json:"editor" yaml:"editor"`
	Project     Project     `json:"project" yaml:"project"`
}

// Server represents server configuration
type Server struct {
	Host  string `json:"host" yaml:"host"`
	Port  int    `json:"port" yaml:"port"`
	Debug bool   `json:"debug" yaml:"debug"`
}

// Transport represents a transport configuration
type Transport struct {
	Type    string            `json:"type" yaml:"type"`
	Enabled bool              `json:"enabled" yaml:"enabled"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Logging represents logging configuration
type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Path   string `json:"path" yaml:"path"`
	// AuditPath receives one JSONL line per tool call. Empty disables the audit log.
	AuditPath string `json:"audit_path,omitempty" yaml:"audit_path,omitempty"`
}

// Editor configures how tool calls reach the Cocos Creator editor.
type Editor struct {
	// Bridge is "broker" (editor extension connects as an MCP session and
	// receives commands over SSE) or "http" (server posts to the extension).
	Bridge                string `json:"bridge" yaml:"bridge"`
	BridgeURL             string `json:"bridge_url,omitempty" yaml:"bridge_url,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	StaleAfterSeconds     int    `json:"stale_after_seconds" yaml:"stale_after_seconds"`
}

// Project locates the Cocos Creator project on disk.
type Project struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return &Config{
		Name:        mcp.ServerName,
		Version:     "0.1.0",
		Description: "Model Context Protocol server for the Cocos Creator editor",
		Server: Server{
			Host:  "127.0.0.1",
			Port:  8585,
			Debug: false,
		},
		Transports: []Transport{
			{
				Type:    "stdio",
				Enabled: true,
			},
			{
				Type:    "streamable_http",
				Enabled: true,
				URL:     "http://127.0.0.1:8585/mcp",
				Headers: map[string]string{
					"Accept":               "application/json, text/event-stream",
					"Content-Type":         "application/json",
					"MCP-Protocol-Version": mcp.ProtocolVersion,
				},
			},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
			Path:   filepath.Join(home, ".cocos-mcp", "logs", "mcp.log"),
		},
		Editor: Editor{
			Bridge:                EditorBridgeBroker,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			StaleAfterSeconds:     defaultStaleAfterSeconds,
		},
	}
}

// LoadConfig loads the configuration from a JSON or YAML file
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := unmarshalConfig(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a file, YAML when the extension says so
func SaveConfig(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := marshalConfig(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func unmarshalConfig(path string, data []byte, cfg *Config) error {
	if isYAMLPath(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func marshalConfig(path string, cfg *Config) ([]byte, error) {
	if isYAMLPath(path) {
		return yaml.Marshal(cfg)
	}
	return json.MarshalIndent(cfg, "", "  ")
}

func applyEnvOverrides(cfg *Config) {
	if portStr := os.Getenv("MCP_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("warning: ignoring invalid MCP_PORT value %q: %v", portStr, err)
		}
	}

	if host := os.Getenv("MCP_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if debug := os.Getenv("MCP_DEBUG"); debug != "" {
		if parsed, err := strconv.ParseBool(debug); err == nil {
			cfg.Server.Debug = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_DEBUG value %q: %v", debug, err)
		}
	}

	if logLevel := os.Getenv("MCP_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logPath := os.Getenv("MCP_LOG_PATH"); logPath != "" {
		cfg.Logging.Path = logPath
	}

	if bridge := os.Getenv("MCP_EDITOR_BRIDGE"); bridge != "" {
		cfg.Editor.Bridge = bridge
	}

	if bridgeURL := os.Getenv("MCP_EDITOR_BRIDGE_URL"); bridgeURL != "" {
		cfg.Editor.BridgeURL = bridgeURL
	}

	if timeout := os.Getenv("MCP_EDITOR_TIMEOUT_SECONDS"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil {
			cfg.Editor.RequestTimeoutSeconds = parsed
		} else {
			log.Printf("warning: ignoring invalid MCP_EDITOR_TIMEOUT_SECONDS value %q: %v", timeout, err)
		}
	}

	if projectPath := os.Getenv("PROJECT_PATH"); projectPath != "" {
		cfg.Project.Path = projectPath
	}
}

// Normalize canonicalizes config values so downstream validation and runtime
// logic operate on stable representations.
func (c *Config) Normalize() {
	c.Server.Host = strings.TrimSpace(c.Server.Host)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Path = strings.TrimSpace(c.Logging.Path)
	c.Logging.AuditPath = strings.TrimSpace(c.Logging.AuditPath)
	c.Editor.Bridge = strings.ToLower(strings.TrimSpace(c.Editor.Bridge))
	if c.Editor.Bridge == "" {
		c.Editor.Bridge = EditorBridgeBroker
	}
	c.Editor.BridgeURL = strings.TrimSpace(c.Editor.BridgeURL)
	if c.Editor.RequestTimeoutSeconds == 0 {
		c.Editor.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.Editor.StaleAfterSeconds == 0 {
		c.Editor.StaleAfterSeconds = defaultStaleAfterSeconds
	}
	c.Project.Path = strings.TrimSpace(c.Project.Path)
	for i := range c.Transports {
		c.Transports[i].Type = strings.ToLower(strings.TrimSpace(c.Transports[i].Type))
		c.Transports[i].URL = strings.TrimSpace(c.Transports[i].URL)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid port number")
	}

	if c.Server.Host == "" {
		return errors.New("host cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return errors.New("invalid log level")
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return errors.New("invalid log format")
	}

	if c.Logging.Path == "" {
		return errors.New("log path cannot be empty")
	}

	if len(c.Transports) == 0 {
		return errors.New("at least one transport must be enabled")
	}

	validTransportTypes := map[string]bool{
		"stdio":           true,
		"streamable_http": true,
	}

	enabledTransports := 0
	for _, t := range c.Transports {
		if !validTransportTypes[t.Type] {
			return fmt.Errorf("invalid transport type: %s", t.Type)
		}
		if t.Enabled {
			enabledTransports++
		}
	}

	if enabledTransports == 0 {
		return errors.New("at least one transport must be enabled")
	}

	switch c.Editor.Bridge {
	case EditorBridgeBroker:
	case EditorBridgeHTTP:
		if c.Editor.BridgeURL == "" {
			return errors.New("editor bridge_url is required when bridge is \"http\"")
		}
	default:
		return fmt.Errorf("invalid editor bridge %q: expected one of [broker http]", c.Editor.Bridge)
	}

	if c.Editor.RequestTimeoutSeconds < 1 || c.Editor.RequestTimeoutSeconds > 300 {
		return fmt.Errorf("invalid editor request timeout seconds %d: expected range 1..300", c.Editor.RequestTimeoutSeconds)
	}
	if c.Editor.StaleAfterSeconds < 1 {
		return fmt.Errorf("invalid editor stale after seconds %d: expected a positive value", c.Editor.StaleAfterSeconds)
	}

	return nil
}

// ResolveConfigPath returns the path that should be used for configuration.
func ResolveConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("MCP_CONFIG_PATH")); path != "" {
		return path, nil
	}

	for _, candidate := range []string{"config/mcp_config.json", "config/mcp_config.yaml", "config/mcp_config.yml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ".cocos-mcp", "config", "mcp_config.json"), nil
}

// EnsureDefaultConfig creates a default config file if one does not exist.
func EnsureDefaultConfig(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path cannot be empty")
	}

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	return SaveConfig(NewConfig(), path)
}
