package scene

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

//go:embed templates/scene.json
var defaultTemplateJSON []byte

const (
	placeholderSceneName = "{{sceneName}}"
	placeholderSceneID   = "{{sceneId}}"
)

// Template is a versioned scene-asset document with placeholders.
type Template struct {
	Version        int    `json:"templateVersion"`
	CreatorVersion string `json:"creatorVersion"`
	Document       []any  `json:"document"`
}

// LoadTemplate parses a template resource.
func LoadTemplate(data []byte) (*Template, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var tmpl Template
	if err := decoder.Decode(&tmpl); err != nil {
		return nil, fmt.Errorf("parse scene template: %w", err)
	}
	if tmpl.Version < 1 {
		return nil, fmt.Errorf("scene template has no templateVersion")
	}
	if len(tmpl.Document) == 0 {
		return nil, fmt.Errorf("scene template document is empty")
	}
	return &tmpl, nil
}

// DefaultTemplate returns the embedded template.
func DefaultTemplate() (*Template, error) {
	return LoadTemplate(defaultTemplateJSON)
}

// Render produces the scene asset JSON for name.
func (t *Template) Render(name string) ([]byte, error) {
	replacements := map[string]string{
		placeholderSceneName: name,
		placeholderSceneID:   uuid.NewString(),
	}
	document := substitute(t.Document, replacements)
	return json.MarshalIndent(document, "", "  ")
}

func substitute(node any, replacements map[string]string) any {
	switch value := node.(type) {
	case string:
		if replacement, ok := replacements[value]; ok {
			return replacement
		}
		return value
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = substitute(item, replacements)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			out[key] = substitute(item, replacements)
		}
		return out
	default:
		return value
	}
}
