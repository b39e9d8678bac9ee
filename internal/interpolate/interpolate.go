// Package interpolate renders {{ name }} placeholders against recipient fields.
//
// Unknown or empty fields render as the empty string; rendering never fails.
// There is no escaping and no recursive expansion: substituted values are
// emitted verbatim even when they contain placeholder syntax.
package interpolate

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Fields resolves a placeholder name to a value. domain.Recipient satisfies it.
type Fields interface {
	Lookup(name string) string
}

// Map adapts a plain map to Fields.
type Map map[string]string

func (m Map) Lookup(name string) string { return m[name] }

// Render replaces every placeholder in template with its field value.
func Render(template string, fields Fields) string {
	if template == "" || !strings.Contains(template, "{{") {
		return template
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		if fields == nil {
			return ""
		}
		match := placeholderPattern.FindStringSubmatch(token)
		if len(match) < 2 {
			return ""
		}
		return fields.Lookup(strings.TrimSpace(match[1]))
	})
}

// Placeholders lists the distinct field names referenced by template, in
// order of first appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		name := strings.TrimSpace(match[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
