// Package debug serves the console buffer, project log inspection and editor
// information tools.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/projectlog"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const (
	defaultConsoleLimit = 100
	defaultReadLines    = 100
	defaultMaxResults   = 20
	defaultContextLines = 2
)

var logLevels = []string{"ALL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

// Options wires the module to its collaborators.
type Options struct {
	Console *Console
	Reader  *projectlog.Reader
	// EditorProjectPath returns the project path reported by the editor, if any.
	EditorProjectPath func() string
	ProjectPath       string
}

// Module implements the debug tools.
type Module struct {
	bus               editorbus.Bus
	console           *Console
	reader            *projectlog.Reader
	editorProjectPath func() string
	projectPath       string
	started           time.Time
	catalog           *types.Catalog
}

func New(bus editorbus.Bus, opts Options) (*Module, error) {
	if opts.Console == nil {
		opts.Console = NewConsole()
	}
	if opts.Reader == nil {
		reader, err := projectlog.NewReader(0)
		if err != nil {
			return nil, err
		}
		opts.Reader = reader
	}

	m := &Module{
		bus:               bus,
		console:           opts.Console,
		reader:            opts.Reader,
		editorProjectPath: opts.EditorProjectPath,
		projectPath:       opts.ProjectPath,
		started:           time.Now(),
	}
	m.catalog = types.NewCatalog([]types.Tool{
		types.NewActionTool("debug_console",
			"CONSOLE: read captured console messages (get_logs) or clear both the captured buffer and the editor console (clear).",
			mcp.ObjectSchema("Debug Console", map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     MaxConsoleMessages,
					"default":     defaultConsoleLimit,
					"description": "Number of recent messages to return",
				},
				"filter": map[string]any{
					"type":        "string",
					"enum":        []string{"all", "log", "warn", "error", "info"},
					"default":     "all",
					"description": "Only return messages of this type",
				},
			}),
			map[string]types.Handler{
				"get_logs": m.getConsoleLogs,
				"clear":    m.clearConsole,
			}),
		types.NewActionTool("debug_logs",
			"PROJECT LOG: read the tail of temp/logs/project.log with level and keyword filters (read), search it with a regular expression and context lines (search), or describe the file (info).",
			mcp.ObjectSchema("Debug Logs", map[string]any{
				"lines": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     10000,
					"default":     defaultReadLines,
					"description": "Number of trailing lines to read (read)",
				},
				"filterKeyword": map[string]any{
					"type":        "string",
					"description": "Case-insensitive keyword filter (read)",
				},
				"logLevel": map[string]any{
					"type":        "string",
					"enum":        logLevels,
					"default":     "ALL",
					"description": "Level filter (read)",
				},
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regular expression, or literal text when not a valid expression (search)",
				},
				"maxResults": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     100,
					"default":     defaultMaxResults,
					"description": "Maximum number of matches (search)",
				},
				"contextLines": map[string]any{
					"type":        "integer",
					"minimum":     0,
					"maximum":     10,
					"default":     defaultContextLines,
					"description": "Lines of context around each match (search)",
				},
			}),
			map[string]types.Handler{
				"read":   m.readProjectLogs,
				"search": m.searchProjectLogs,
				"info":   m.logFileInfo,
			}),
		types.NewActionTool("debug_system",
			"SYSTEM: editor and server information (editor_info) or scene performance statistics (performance).",
			mcp.ObjectSchema("Debug System", nil),
			map[string]types.Handler{
				"editor_info": m.editorInfo,
				"performance": m.performanceStats,
			}),
	}, map[string]types.Alias{
		"get_console_logs":      {Tool: "debug_console", Action: "get_logs"},
		"clear_console":         {Tool: "debug_console", Action: "clear"},
		"get_project_logs":      {Tool: "debug_logs", Action: "read"},
		"search_project_logs":   {Tool: "debug_logs", Action: "search"},
		"get_log_file_info":     {Tool: "debug_logs", Action: "info"},
		"get_editor_info":       {Tool: "debug_system", Action: "editor_info"},
		"get_performance_stats": {Tool: "debug_system", Action: "performance"},
	})
	return m, nil
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }
func (m *Module) Console() *Console               { return m.console }

// Execute fails with an error, not an envelope, for names it does not serve.
func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	tool, rewritten, ok, err := m.catalog.Resolve(toolName, args)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
	return tool.Execute(ctx, rewritten)
}

func (m *Module) Close() error {
	return m.reader.Close()
}

func (m *Module) getConsoleLogs(_ context.Context, args types.Args) types.Response {
	limit := args.IntOr("limit", defaultConsoleLimit)
	filter := args.StringOr("filter", "all")

	total, messages := m.console.Snapshot(filter, limit)
	return types.OK(map[string]any{
		"total":    total,
		"returned": len(messages),
		"logs":     messages,
	}, "")
}

func (m *Module) clearConsole(ctx context.Context, _ types.Args) types.Response {
	cleared := m.console.Clear()
	resp := types.OK(map[string]any{"clearedCount": cleared}, "Console cleared successfully")
	if err := m.bus.Send(ctx, editorbus.NamespaceConsole, "clear"); err != nil {
		return resp.WithWarning("Editor console was not cleared: " + err.Error())
	}
	return resp
}

func (m *Module) candidates() []string {
	editorPath := ""
	if m.editorProjectPath != nil {
		editorPath = m.editorProjectPath()
	}
	return types.ProjectRootCandidates(editorPath, m.projectPath)
}

func (m *Module) openLog() (*projectlog.Snapshot, types.Response, bool) {
	candidates := m.candidates()
	path, found := types.FirstExistingProjectFile(candidates, projectlog.RelativePath)
	if !found {
		tried := make([]string, 0, len(candidates))
		for _, root := range candidates {
			if full, err := types.ResolveProjectFile(root, projectlog.RelativePath); err == nil {
				tried = append(tried, full)
			}
		}
		return nil, types.Failf("Project log file not found. Tried paths: %s", strings.Join(tried, ", ")), false
	}

	snapshot, err := m.reader.Read(path)
	if err != nil {
		return nil, types.Failf("Failed to read project log: %v", err), false
	}
	return snapshot, types.Response{}, true
}

func (m *Module) readProjectLogs(_ context.Context, args types.Args) types.Response {
	lines := args.IntOr("lines", defaultReadLines)
	keyword := args.TrimmedString("filterKeyword")
	level := strings.ToUpper(args.StringOr("logLevel", "ALL"))

	snapshot, failure, ok := m.openLog()
	if !ok {
		return failure
	}

	all := snapshot.NonBlank()
	recent := all
	if lines >= 0 && len(recent) > lines {
		recent = recent[len(recent)-lines:]
	}

	filtered := make([]string, 0, len(recent))
	lowerKeyword := strings.ToLower(keyword)
	for _, line := range recent {
		if level != "ALL" && !matchesLevel(line, level) {
			continue
		}
		if keyword != "" && !strings.Contains(strings.ToLower(line), lowerKeyword) {
			continue
		}
		filtered = append(filtered, line)
	}

	var filterKeyword any
	if keyword != "" {
		filterKeyword = keyword
	}
	return types.OK(map[string]any{
		"totalLines":     len(all),
		"requestedLines": lines,
		"filteredLines":  len(filtered),
		"logLevel":       level,
		"filterKeyword":  filterKeyword,
		"logs":           filtered,
		"logFilePath":    snapshot.Path,
	}, "")
}

func matchesLevel(line, level string) bool {
	return strings.Contains(line, "["+level+"]") ||
		strings.Contains(line, level) ||
		strings.Contains(line, strings.ToLower(level))
}

// compileSearchPattern matches case-insensitively and falls back to the
// literal text when pattern is not a valid expression.
func compileSearchPattern(pattern string) *regexp.Regexp {
	if re, err := regexp.Compile("(?i)" + pattern); err == nil {
		return re
	}
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(pattern))
}

func (m *Module) searchProjectLogs(_ context.Context, args types.Args) types.Response {
	pattern, _ := args.String("pattern")
	if pattern == "" {
		return types.Fail("pattern is required")
	}
	maxResults := args.IntOr("maxResults", defaultMaxResults)
	contextLines := max(args.IntOr("contextLines", defaultContextLines), 0)

	snapshot, failure, ok := m.openLog()
	if !ok {
		return failure
	}

	re := compileSearchPattern(pattern)
	matches := searchLines(snapshot.Lines, re, maxResults, contextLines)
	return types.OK(map[string]any{
		"pattern":      pattern,
		"totalMatches": len(matches),
		"maxResults":   maxResults,
		"contextLines": contextLines,
		"logFilePath":  snapshot.Path,
		"matches":      matches,
	}, "")
}

type contextLine struct {
	LineNumber int    `json:"lineNumber"`
	Content    string `json:"content"`
	IsMatch    bool   `json:"isMatch"`
}

type logMatch struct {
	LineNumber  int           `json:"lineNumber"`
	MatchedLine string        `json:"matchedLine"`
	Context     []contextLine `json:"context"`
}

func searchLines(lines []string, re *regexp.Regexp, maxResults, contextLines int) []logMatch {
	matches := []logMatch{}
	for i, line := range lines {
		if len(matches) >= maxResults {
			break
		}
		if !re.MatchString(line) {
			continue
		}

		start := max(0, i-contextLines)
		end := min(len(lines)-1, i+contextLines)
		window := make([]contextLine, 0, end-start+1)
		for j := start; j <= end; j++ {
			window = append(window, contextLine{LineNumber: j + 1, Content: lines[j], IsMatch: j == i})
		}
		matches = append(matches, logMatch{LineNumber: i + 1, MatchedLine: line, Context: window})
	}
	return matches
}

func (m *Module) logFileInfo(_ context.Context, _ types.Args) types.Response {
	snapshot, failure, ok := m.openLog()
	if !ok {
		return failure
	}

	return types.OK(map[string]any{
		"filePath":          snapshot.Path,
		"fileSize":          snapshot.Size,
		"fileSizeFormatted": formatFileSize(snapshot.Size),
		"lastModified":      snapshot.ModTime.UTC().Format(time.RFC3339Nano),
		"lineCount":         len(snapshot.NonBlank()),
		"created":           fileCreated(snapshot.Info).UTC().Format(time.RFC3339Nano),
		"accessible":        isReadable(snapshot.Path),
	}, "")
}

func isReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

func formatFileSize(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", size, units[unit])
}

func (m *Module) editorInfo(ctx context.Context, _ types.Args) types.Response {
	info, err := m.bus.Request(ctx, editorbus.NamespaceEditor, "query-info")
	if err != nil {
		return types.OK(map[string]any{
			"editor": nil,
			"server": m.serverInfo(),
		}, "").WithWarning("Editor info not available: " + err.Error())
	}
	return types.OK(map[string]any{
		"editor": info,
		"server": m.serverInfo(),
	}, "")
}

func (m *Module) serverInfo() map[string]any {
	return map[string]any{
		"name":       mcp.ServerName,
		"version":    mcp.ServerVersion,
		"goVersion":  runtime.Version(),
		"platform":   runtime.GOOS,
		"arch":       runtime.GOARCH,
		"pid":        os.Getpid(),
		"uptime":     time.Since(m.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
	}
}

func (m *Module) performanceStats(ctx context.Context, _ types.Args) types.Response {
	var memory runtime.MemStats
	runtime.ReadMemStats(&memory)
	process := map[string]any{
		"heapAlloc":  memory.HeapAlloc,
		"heapSys":    memory.HeapSys,
		"numGC":      memory.NumGC,
		"goroutines": runtime.NumGoroutine(),
	}

	stats, err := m.bus.Request(ctx, editorbus.NamespaceScene, "query-performance")
	if err != nil {
		return types.OK(map[string]any{
			"available": false,
			"process":   process,
		}, "").WithWarning("Performance stats not available in edit mode")
	}
	return types.OK(map[string]any{
		"available": true,
		"scene":     stats,
		"process":   process,
	}, "")
}
