package preferences

// Category is one editor preferences section.
type Category struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var categories = []Category{
	{Name: "general", Description: "General editor settings (language, theme, step sizes)"},
	{Name: "external-tools", Description: "External programs such as script editors and browsers"},
	{Name: "data-editor", Description: "Asset and data editor behavior"},
	{Name: "laboratory", Description: "Experimental features"},
	{Name: "extensions", Description: "Extension manager settings"},
	{Name: "preview", Description: "Preview and simulator settings"},
	{Name: "console", Description: "Console panel settings"},
	{Name: "native", Description: "Native platform and SDK paths"},
	{Name: "builder", Description: "Build panel settings"},
}

// CategoryNames lists the nine known categories in display order.
func CategoryNames() []string {
	names := make([]string, 0, len(categories))
	for _, category := range categories {
		names = append(names, category.Name)
	}
	return names
}

func isKnownCategory(name string) bool {
	for _, category := range categories {
		if category.Name == name {
			return true
		}
	}
	return false
}
