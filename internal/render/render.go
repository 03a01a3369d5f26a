// Package render fills {{PLACEHOLDER}} tokens in skill instructions.
// Rendered text is request-scoped: nothing here stores or caches output.
package render

import (
	"regexp"
	"strings"
)

// Values maps placeholder names (without braces) to substitution text.
type Values map[string]string

// Result is rendered text plus the placeholders that had no value.
type Result struct {
	Text       string
	Unresolved []string
}

// Renderer turns an instruction template into ready-to-use text.
// Implementations must never fail on a missing value; they emit a marker.
type Renderer interface {
	Render(template string, values Values) Result
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Z][A-Z0-9_]*)\s*\}\}`)

// markerPrefixes maps a token prefix to the category named in the marker.
var markerPrefixes = map[string]string{
	"ATS":      "ATS",
	"EMAIL":    "EMAIL",
	"CALENDAR": "CALENDAR",
	"DATABASE": "DATABASE",
	"SHEETS":   "DATABASE",
	"LLM":      "LLM",
}

// PlaceholderRenderer does literal token substitution.
type PlaceholderRenderer struct{}

// NewPlaceholderRenderer returns the default renderer.
func NewPlaceholderRenderer() *PlaceholderRenderer {
	return &PlaceholderRenderer{}
}

// Render replaces every {{TOKEN}} with its value, which may be empty. Tokens
// absent from values become a bracketed marker such as [EMAIL_NOT_CONFIGURED].
func (PlaceholderRenderer) Render(template string, values Values) Result {
	var unresolved []string
	seen := make(map[string]bool)
	text := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := values[name]; ok {
			return v
		}
		if !seen[name] {
			seen[name] = true
			unresolved = append(unresolved, name)
		}
		return Marker(name)
	})
	return Result{Text: text, Unresolved: unresolved}
}

// Marker returns the not-configured marker for a placeholder name.
func Marker(name string) string {
	prefix := name
	if i := strings.IndexByte(name, '_'); i > 0 {
		prefix = name[:i]
	}
	if cat, ok := markerPrefixes[prefix]; ok {
		return "[" + cat + "_NOT_CONFIGURED]"
	}
	return "[" + name + "_NOT_CONFIGURED]"
}
