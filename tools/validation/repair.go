package validation

import (
	"regexp"
	"strings"
)

var (
	// {"key": "va"lue"} with exactly one stray quote inside the value.
	embeddedQuotePattern = regexp.MustCompile(`(\{\s*"[^"]*"\s*:\s*")([^"]*)"([^"]*)("\s*\})`)
	backslashPattern     = regexp.MustCompile(`\\(?s:.)|\\$`)
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

const validEscapes = `"\/bfnrtu`

// repairJSON applies the fixed text substitutions used to salvage almost-JSON.
// The result is not guaranteed to parse.
func repairJSON(input string) string {
	fixed := embeddedQuotePattern.ReplaceAllString(input, `$1$2\"$3$4`)
	fixed = backslashPattern.ReplaceAllStringFunc(fixed, func(match string) string {
		if len(match) == 2 && strings.ContainsRune(validEscapes, rune(match[1])) {
			return match
		}
		return `\` + match
	})
	fixed = trailingCommaPattern.ReplaceAllString(fixed, "$1")
	fixed = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(fixed)
	fixed = strings.ReplaceAll(fixed, "'", `"`)
	return fixed
}

// escapeString escapes value for embedding between double quotes.
func escapeString(value string) string {
	replacements := []struct{ from, to string }{
		{`\`, `\\`},
		{`"`, `\"`},
		{"\n", `\n`},
		{"\r", `\r`},
		{"\t", `\t`},
		{"\f", `\f`},
		{"\b", `\b`},
	}
	for _, r := range replacements {
		value = strings.ReplaceAll(value, r.from, r.to)
	}
	return value
}

func suggestionsFor(input string, parseErr error) []string {
	suggestions := []string{
		"Check for unescaped quotes inside string values",
		"Make sure every property name is wrapped in double quotes",
		"Remove trailing commas before } or ]",
	}
	if strings.Count(input, "{") != strings.Count(input, "}") {
		suggestions = append(suggestions, "Braces are unbalanced: count the { and } characters")
	}
	if strings.Count(input, "[") != strings.Count(input, "]") {
		suggestions = append(suggestions, "Brackets are unbalanced: count the [ and ] characters")
	}
	if strings.Contains(input, "'") {
		suggestions = append(suggestions, "Use double quotes instead of single quotes")
	}
	if strings.ContainsAny(input, "\n\r\t") {
		suggestions = append(suggestions, "Escape raw newlines and tabs as \\n and \\t")
	}
	if parseErr != nil {
		suggestions = append(suggestions, "Parser error: "+parseErr.Error())
	}
	return suggestions
}
