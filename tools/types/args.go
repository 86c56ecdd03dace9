package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Args is a decoded tool argument object.
type Args map[string]any

func ParseArgs(raw json.RawMessage) (Args, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Args{}, nil
	}
	var args Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

func (a Args) Has(key string) bool {
	value, ok := a[key]
	return ok && value != nil
}

func (a Args) Value(key string) any {
	return a[key]
}

func (a Args) String(key string) (string, bool) {
	value, ok := a[key].(string)
	return value, ok
}

// TrimmedString returns the value with surrounding whitespace removed, or ""
// when the key is absent or not a string.
func (a Args) TrimmedString(key string) string {
	value, _ := a.String(key)
	return strings.TrimSpace(value)
}

func (a Args) StringOr(key, fallback string) string {
	if value, ok := a.String(key); ok && value != "" {
		return value
	}
	return fallback
}

func (a Args) Float(key string) (float64, bool) {
	switch value := a[key].(type) {
	case float64:
		return value, true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case int:
		return float64(value), true
	}
	return 0, false
}

func (a Args) IntOr(key string, fallback int) int {
	value, ok := a.Float(key)
	if !ok || math.IsNaN(value) {
		return fallback
	}
	return int(value)
}

func (a Args) BoolOr(key string, fallback bool) bool {
	if value, ok := a[key].(bool); ok {
		return value
	}
	return fallback
}

func (a Args) Object(key string) (map[string]any, bool) {
	value, ok := a[key].(map[string]any)
	return value, ok
}

func (a Args) List(key string) ([]any, bool) {
	value, ok := a[key].([]any)
	return value, ok
}

// Strings returns a string list; ok is false when the value is missing, not a
// list, or holds a non-string entry.
func (a Args) Strings(key string) ([]string, bool) {
	list, ok := a.List(key)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		text, isString := item.(string)
		if !isString {
			return nil, false
		}
		out = append(out, text)
	}
	return out, true
}
