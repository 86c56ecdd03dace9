package stdio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
	"github.com/cocos-mcp/cocos-mcp-go/transport/shared"
)

// Options tune what the stdio server exposes.
type Options struct {
	// Hidden tools are neither listed nor callable over stdio.
	Hidden       func(name string) bool
	ReadResource shared.ResourceReader
}

// StdioServer serves the tool manager to one MCP client over stdin/stdout.
type StdioServer struct {
	toolManager *tools.Manager
	mcpServer   *server.MCPServer
	aliases     map[string]struct{}
}

// NewStdioServer adapts every visible tool, and every legacy alias, onto an
// MCP server. Aliases stay callable but are left out of tools/list.
func NewStdioServer(toolManager *tools.Manager, opts Options) (*StdioServer, error) {
	s := &StdioServer{
		toolManager: toolManager,
		aliases:     make(map[string]struct{}),
	}

	s.mcpServer = server.NewMCPServer(
		mcp.ServerName,
		mcp.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithToolFilter(s.filterTools),
	)

	visible := make(map[string]mcp.Tool)
	for _, tool := range shared.VisibleTools(toolManager, opts.Hidden) {
		visible[tool.Name] = tool
		adapted, err := adaptTool(tool.Name, tool.Description, tool.InputSchema)
		if err != nil {
			return nil, err
		}
		s.mcpServer.AddTool(adapted, s.handleToolCall)
	}

	for name, alias := range toolManager.Aliases() {
		target, ok := visible[alias.Tool]
		if !ok {
			continue
		}
		description := fmt.Sprintf("Legacy name for %s", alias.Tool)
		schema := target.InputSchema
		if alias.Action != "" {
			description = fmt.Sprintf("Legacy name for %s action %q", alias.Tool, alias.Action)
			schema = withoutAction(schema)
		}
		adapted, err := adaptTool(name, description, schema)
		if err != nil {
			return nil, err
		}
		s.aliases[name] = struct{}{}
		s.mcpServer.AddTool(adapted, s.handleToolCall)
	}

	if opts.ReadResource != nil {
		s.addResources(opts.ReadResource)
	}
	return s, nil
}

// MCPServer exposes the underlying server, mainly for in-process clients.
func (s *StdioServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Listen serves until ctx is cancelled or stdin closes.
func (s *StdioServer) Listen(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	logger.Debug("Stdio server started and waiting for messages")
	stdioServer := server.NewStdioServer(s.mcpServer)
	stdioServer.SetErrorLogger(log.New(logWriter{}, "", 0))
	return stdioServer.Listen(ctx, stdin, stdout)
}

func (s *StdioServer) filterTools(_ context.Context, listed []mcpgo.Tool) []mcpgo.Tool {
	out := make([]mcpgo.Tool, 0, len(listed))
	for _, tool := range listed {
		if _, alias := s.aliases[tool.Name]; alias {
			continue
		}
		out = append(out, tool)
	}
	return out
}

func (s *StdioServer) handleToolCall(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	name := req.Params.Name
	arguments := types.StripMCPContext(req.GetArguments())

	result, err := s.toolManager.CallTool(ctx, name, arguments)
	if err != nil {
		if tools.IsToolNotFound(err) {
			return nil, err
		}
		logger.Debug("Stdio tool call failed", "tool", name, "error", err)
		errorResult := shared.BuildToolErrorResult(name, err)
		return &mcpgo.CallToolResult{
			Content:           []mcpgo.Content{mcpgo.NewTextContent(err.Error())},
			StructuredContent: errorResult["structuredContent"],
			IsError:           true,
		}, nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	return &mcpgo.CallToolResult{
		Content:           []mcpgo.Content{mcpgo.NewTextContent(string(text))},
		StructuredContent: result,
	}, nil
}

func (s *StdioServer) addResources(readResource shared.ResourceReader) {
	add := func(uri, name, description string) {
		resource := mcpgo.NewResource(uri, name,
			mcpgo.WithResourceDescription(description),
			mcpgo.WithMIMEType("application/json"),
		)
		s.mcpServer.AddResource(resource, func(_ context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
			value, err := readResource(req.Params.URI)
			if err != nil {
				return nil, err
			}
			text, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			return []mcpgo.ResourceContents{
				mcpgo.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(text)},
			}, nil
		})
	}
	add(shared.ResourceEditorStatus, "Editor Status", "Registered Cocos Creator editor session and its freshness")
	add(shared.ResourceToolAliases, "Legacy Tool Names", "Legacy flat tool names and the tool and action each resolves to")
}

func adaptTool(name, description string, schema mcp.InputSchema) (mcpgo.Tool, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return mcpgo.Tool{}, fmt.Errorf("encode %s schema: %w", name, err)
	}
	return mcpgo.NewToolWithRawSchema(name, description, raw), nil
}

func withoutAction(schema mcp.InputSchema) mcp.InputSchema {
	properties := make(map[string]any, len(schema.Properties))
	for key, value := range schema.Properties {
		if key != "action" {
			properties[key] = value
		}
	}
	required := make([]string, 0, len(schema.Required))
	for _, key := range schema.Required {
		if key != "action" {
			required = append(required, key)
		}
	}
	schema.Properties = properties
	schema.Required = required
	return schema
}

// logWriter routes the stdio server's error log into the structured logger.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	logger.Warn("Stdio transport error", "detail", string(p))
	return len(p), nil
}
