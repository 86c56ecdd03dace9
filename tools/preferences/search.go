package preferences

import (
	"sort"
	"strings"
)

const (
	maxSearchDepth   = 10
	maxSearchResults = 50
)

// SearchMatch is one key or value that contains the search keyword.
type SearchMatch struct {
	Category string `json:"category"`
	Path     string `json:"path"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
	MatchOn  string `json:"matchType"`
}

// searchInObject walks node depth-first, stopping below maxSearchDepth and
// once limit matches have been collected. Map keys are visited in sorted order.
func searchInObject(node any, keyword, category, path string, depth int, includeValues bool, limit int, results *[]SearchMatch) {
	if depth > maxSearchDepth || len(*results) >= limit {
		return
	}
	object, ok := node.(map[string]any)
	if !ok {
		return
	}

	for _, key := range sortedKeys(object) {
		if len(*results) >= limit {
			return
		}
		value := object[key]
		currentPath := key
		if path != "" {
			currentPath = path + "." + key
		}

		switch {
		case strings.Contains(strings.ToLower(key), keyword):
			*results = append(*results, SearchMatch{Category: category, Path: currentPath, Key: key, Value: value, MatchOn: "key"})
		case includeValues && isStringContaining(value, keyword):
			*results = append(*results, SearchMatch{Category: category, Path: currentPath, Key: key, Value: value, MatchOn: "value"})
		}

		if _, nested := value.(map[string]any); nested {
			searchInObject(value, keyword, category, currentPath, depth+1, includeValues, limit, results)
		}
	}
}

func isStringContaining(value any, keyword string) bool {
	text, ok := value.(string)
	return ok && strings.Contains(strings.ToLower(text), keyword)
}

func sortedKeys(object map[string]any) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
