// Package preferences relays editor preference queries and updates and adds
// search, export and backup validation over them.
package preferences

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/editorbus"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/tools/types"
)

const (
	scopeGlobal  = "global"
	scopeLocal   = "local"
	scopeDefault = "default"
)

// Module implements the preferences tools.
type Module struct {
	bus           editorbus.Bus
	editorVersion func() string
	now           func() time.Time
	catalog       *types.Catalog
}

type Option func(*Module)

// WithEditorVersion supplies the version recorded in export metadata.
func WithEditorVersion(version func() string) Option {
	return func(m *Module) { m.editorVersion = version }
}

func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

func New(bus editorbus.Bus, opts ...Option) *Module {
	m := &Module{bus: bus, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	category := map[string]any{
		"type":        "string",
		"enum":        CategoryNames(),
		"description": "Preferences category",
	}
	scope := map[string]any{
		"type":        "string",
		"enum":        []string{scopeGlobal, scopeLocal, scopeDefault},
		"default":     scopeGlobal,
		"description": "Configuration scope",
	}
	categoryList := map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"description": "Categories to include (defaults to all)",
	}

	m.catalog = types.NewCatalog([]types.Tool{
		types.NewActionTool("preferences_manage",
			"PREFERENCES MANAGEMENT: read (get_config), change (set_config) or restore defaults (reset_config) of one preferences category, or open the preferences panel (open_panel).",
			mcp.ObjectSchema("Preferences Management", map[string]any{
				"category": category,
				"path": map[string]any{
					"type":        "string",
					"description": "Dotted setting path inside the category (get_config, set_config)",
				},
				"value": map[string]any{
					"description": "New value (set_config)",
				},
				"scope": scope,
				"tab": map[string]any{
					"type":        "string",
					"description": "Preferences tab to show (open_panel)",
				},
			}),
			map[string]types.Handler{
				"get_config":   m.getConfig,
				"set_config":   m.setConfig,
				"reset_config": m.resetConfig,
				"open_panel":   m.openPanel,
			}),
		types.NewActionTool("preferences_query",
			"PREFERENCES QUERY: read every category (get_all), list known categories (list_categories) or search keys and values across categories (search_settings).",
			mcp.ObjectSchema("Preferences Query", map[string]any{
				"scope":      scope,
				"categories": categoryList,
				"keyword": map[string]any{
					"type":        "string",
					"description": "Case-insensitive text to find (search_settings)",
				},
				"includeValues": map[string]any{
					"type":        "boolean",
					"default":     true,
					"description": "Also match string values (search_settings)",
				},
			}),
			map[string]types.Handler{
				"get_all":         m.getAll,
				"list_categories": m.listCategories,
				"search_settings": m.searchSettings,
			}),
		types.NewActionTool("preferences_backup",
			"PREFERENCES BACKUP: export categories with metadata (export) or structurally check a previously exported document (validate_backup). Nothing is ever applied.",
			mcp.ObjectSchema("Preferences Backup", map[string]any{
				"categories": categoryList,
				"scope": map[string]any{
					"type":        "string",
					"default":     scopeGlobal,
					"description": "Scope to export: global or local",
				},
				"includeDefaults": map[string]any{
					"type":        "boolean",
					"default":     false,
					"description": "Also export default-scope values (export)",
				},
				"backupData": map[string]any{
					"description": "Exported document to check (validate_backup)",
				},
			}),
			map[string]types.Handler{
				"export":          m.export,
				"validate_backup": m.validateBackup,
			}),
	}, map[string]types.Alias{
		"open_preferences_settings":   {Tool: "preferences_manage", Action: "open_panel"},
		"query_preferences_config":    {Tool: "preferences_manage", Action: "get_config"},
		"set_preferences_config":      {Tool: "preferences_manage", Action: "set_config"},
		"reset_preferences":           {Tool: "preferences_manage", Action: "reset_config"},
		"get_all_preferences":         {Tool: "preferences_query", Action: "get_all"},
		"list_preferences_categories": {Tool: "preferences_query", Action: "list_categories"},
		"search_preferences":          {Tool: "preferences_query", Action: "search_settings"},
		"export_preferences":          {Tool: "preferences_backup", Action: "export"},
		"validate_preferences_backup": {Tool: "preferences_backup", Action: "validate_backup"},
	})
	return m
}

func (m *Module) Tools() []types.Tool             { return m.catalog.Tools() }
func (m *Module) Aliases() map[string]types.Alias { return m.catalog.Aliases() }

func (m *Module) Execute(ctx context.Context, toolName string, args json.RawMessage) ([]byte, error) {
	return m.catalog.Execute(ctx, toolName, args)
}

func (m *Module) queryConfig(ctx context.Context, category string, path any, scope string) (any, error) {
	return m.bus.Request(ctx, editorbus.NamespacePreferences, "query-config", category, path, scope)
}

func (m *Module) getConfig(ctx context.Context, args types.Args) types.Response {
	category := args.TrimmedString("category")
	if category == "" {
		return types.Fail("Category is required")
	}
	scope := args.StringOr("scope", scopeGlobal)
	var path any
	if p := args.TrimmedString("path"); p != "" {
		path = p
	}

	config, err := m.queryConfig(ctx, category, path, scope)
	if err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{
		"category": category,
		"path":     path,
		"scope":    scope,
		"config":   config,
	}, "")
}

func (m *Module) setConfig(ctx context.Context, args types.Args) types.Response {
	category := args.TrimmedString("category")
	if category == "" {
		return types.Fail("Category is required")
	}
	path := args.TrimmedString("path")
	if path == "" {
		return types.Fail("Path is required")
	}
	value, defined := args["value"]
	if !defined {
		return types.Fail("Value is required")
	}
	scope := args.StringOr("scope", scopeGlobal)

	if _, err := m.bus.Request(ctx, editorbus.NamespacePreferences, "set-config", category, path, value, scope); err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{
		"category": category,
		"path":     path,
		"value":    value,
		"scope":    scope,
	}, fmt.Sprintf("Preference %s.%s updated successfully", category, path))
}

// resetConfig copies the default-scope configuration over the target scope.
func (m *Module) resetConfig(ctx context.Context, args types.Args) types.Response {
	category := args.TrimmedString("category")
	if category == "" {
		return types.Fail("Category is required")
	}
	scope := args.StringOr("scope", scopeGlobal)

	defaults, err := m.queryConfig(ctx, category, nil, scopeDefault)
	if err != nil {
		return types.FailErr(err)
	}
	if _, err := m.bus.Request(ctx, editorbus.NamespacePreferences, "set-config", category, "", defaults, scope); err != nil {
		return types.FailErr(err)
	}
	return types.OK(map[string]any{
		"category": category,
		"scope":    scope,
	}, fmt.Sprintf("Preferences category %s reset to defaults", category))
}

func (m *Module) openPanel(ctx context.Context, args types.Args) types.Response {
	tab := args.TrimmedString("tab")
	var err error
	if tab != "" {
		_, err = m.bus.Request(ctx, editorbus.NamespacePreferences, "open-settings", tab)
	} else {
		_, err = m.bus.Request(ctx, editorbus.NamespacePreferences, "open-settings")
	}
	if err != nil {
		return types.FailErr(err)
	}
	message := "Preferences panel opened"
	if tab != "" {
		message = fmt.Sprintf("Preferences panel opened on tab %s", tab)
	}
	return types.OK(nil, message)
}

// collect queries categories concurrently. Categories the editor rejects are
// treated as absent.
func (m *Module) collect(ctx context.Context, names []string, scope string) (map[string]any, []string) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		configs = make(map[string]any, len(names))
	)
	for _, name := range names {
		wg.Add(1)
		go func(category string) {
			defer wg.Done()
			config, err := m.queryConfig(ctx, category, nil, scope)
			if err != nil {
				return
			}
			mu.Lock()
			configs[category] = config
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	found := make([]string, 0, len(configs))
	for _, name := range names {
		if _, ok := configs[name]; ok {
			found = append(found, name)
		}
	}
	return configs, found
}

func requestedCategories(args types.Args) []string {
	if names, ok := args.Strings("categories"); ok && len(names) > 0 {
		return names
	}
	return CategoryNames()
}

func (m *Module) getAll(ctx context.Context, args types.Args) types.Response {
	scope := args.StringOr("scope", scopeGlobal)
	names := requestedCategories(args)

	configs, found := m.collect(ctx, names, scope)
	return types.OK(map[string]any{
		"scope":               scope,
		"requestedCategories": names,
		"availableCategories": found,
		"preferences":         configs,
		"totalCategories":     len(found),
	}, fmt.Sprintf("Retrieved %d preference categories", len(found)))
}

func (m *Module) listCategories(_ context.Context, _ types.Args) types.Response {
	return types.OK(map[string]any{
		"categories": categories,
		"count":      len(categories),
	}, "")
}

func (m *Module) searchSettings(ctx context.Context, args types.Args) types.Response {
	keyword := args.TrimmedString("keyword")
	if keyword == "" {
		return types.Fail("Keyword is required")
	}
	includeValues := args.BoolOr("includeValues", true)
	scope := args.StringOr("scope", scopeGlobal)

	configs, found := m.collect(ctx, CategoryNames(), scope)
	lowerKeyword := strings.ToLower(keyword)
	results := make([]SearchMatch, 0)
	for _, category := range found {
		searchInObject(configs[category], lowerKeyword, category, "", 0, includeValues, maxSearchResults+1, &results)
	}

	hasMore := len(results) > maxSearchResults
	if hasMore {
		results = results[:maxSearchResults]
	}
	return types.OK(map[string]any{
		"keyword":        keyword,
		"includeValues":  includeValues,
		"totalResults":   len(results),
		"results":        results,
		"hasMoreResults": hasMore,
	}, fmt.Sprintf("Found %d matching settings", len(results)))
}

func (m *Module) export(ctx context.Context, args types.Args) types.Response {
	scope := args.StringOr("scope", scopeGlobal)
	if scope != scopeGlobal && scope != scopeLocal {
		return types.Failf("Invalid scope: %s. Valid scopes: global, local", scope)
	}

	names := requestedCategories(args)
	var invalid []string
	for _, name := range names {
		if !isKnownCategory(name) {
			invalid = append(invalid, name)
		}
	}
	if len(invalid) > 0 {
		return types.Failf("Invalid categories: %s. Valid categories: %s",
			strings.Join(invalid, ", "), strings.Join(CategoryNames(), ", "))
	}

	configs, found := m.collect(ctx, names, scope)
	version := "unknown"
	if m.editorVersion != nil {
		if v := m.editorVersion(); v != "" {
			version = v
		}
	}

	document := map[string]any{
		"metadata": map[string]any{
			"exportDate":    m.now().UTC().Format(time.RFC3339Nano),
			"editorVersion": version,
			"scope":         scope,
			"categories":    found,
		},
		"preferences": configs,
	}
	if args.BoolOr("includeDefaults", false) {
		defaults, _ := m.collect(ctx, names, scopeDefault)
		document["defaults"] = defaults
	}

	return types.OK(document, fmt.Sprintf("Exported %d preference categories", len(found)))
}

func (m *Module) validateBackup(_ context.Context, args types.Args) types.Response {
	report := ValidateBackup(args.Value("backupData"))
	message := "Backup data is valid"
	if !report.IsValid {
		message = "Backup data is invalid"
	}
	return types.OK(report, message)
}

// BackupReport is the result of a structural backup check.
type BackupReport struct {
	IsValid  bool           `json:"isValid"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
	Summary  map[string]any `json:"summary,omitempty"`
}

// ValidateBackup checks the shape of an exported document without applying it.
func ValidateBackup(data any) BackupReport {
	report := BackupReport{Errors: []string{}, Warnings: []string{}}
	backup, ok := data.(map[string]any)
	if !ok {
		report.Errors = append(report.Errors, "Backup data must be an object")
		return report
	}

	metadata, hasMetadata := backup["metadata"]
	if !hasMetadata {
		report.Errors = append(report.Errors, "Missing metadata section")
	} else if meta, isObject := metadata.(map[string]any); !isObject {
		report.Errors = append(report.Errors, "Metadata must be an object")
	} else {
		if _, ok := meta["exportDate"]; !ok {
			report.Warnings = append(report.Warnings, "Metadata is missing exportDate")
		}
		if _, ok := meta["editorVersion"]; !ok {
			report.Warnings = append(report.Warnings, "Metadata is missing editorVersion")
		}
	}

	preferences, hasPreferences := backup["preferences"]
	if !hasPreferences {
		report.Errors = append(report.Errors, "Missing preferences section")
	} else if prefs, isObject := preferences.(map[string]any); !isObject {
		report.Errors = append(report.Errors, "Preferences must be an object")
	} else {
		known := 0
		for _, name := range sortedKeys(prefs) {
			if isKnownCategory(name) {
				known++
				continue
			}
			report.Warnings = append(report.Warnings, fmt.Sprintf("Unknown category: %s", name))
		}
		if len(prefs) == 0 {
			report.Warnings = append(report.Warnings, "Preferences section is empty")
		}
		report.Summary = map[string]any{
			"categories":        len(prefs),
			"knownCategories":   known,
			"unknownCategories": len(prefs) - known,
		}
	}

	report.IsValid = len(report.Errors) == 0
	return report
}
