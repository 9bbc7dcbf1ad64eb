// Package template renders reminder message templates. Placeholders use the
// {name} form and match case-insensitively; placeholders with no supplied
// value are stripped so broken templates never leak raw syntax to tenants.
package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Render substitutes every {name} placeholder with its value from vars,
// matching names case-insensitively, then removes any placeholder that had
// no value.
func Render(tmpl string, vars map[string]string) string {
	if tmpl == "" {
		return ""
	}

	lowered := make(map[string]string, len(vars))
	for k, v := range vars {
		lowered[strings.ToLower(k)] = v
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.ToLower(match[1 : len(match)-1])
		if value, ok := lowered[name]; ok {
			return value
		}
		return ""
	})
}

// Validate reports whether the template's braces are balanced. Nested or
// dangling braces are the common authoring mistakes in landlord-edited
// templates.
func Validate(tmpl string) error {
	depth := 0
	for i, r := range tmpl {
		switch r {
		case '{':
			if depth > 0 {
				return fmt.Errorf("nested '{' at position %d", i)
			}
			depth++
		case '}':
			if depth == 0 {
				return fmt.Errorf("unmatched '}' at position %d", i)
			}
			depth--
		}
	}
	if depth != 0 {
		return fmt.Errorf("unclosed '{'")
	}
	return nil
}

// Variables extracts the distinct placeholder names referenced by the
// template, lower-cased, in order of first appearance.
func Variables(tmpl string) []string {
	seen := map[string]bool{}
	var names []string
	for _, match := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		name := strings.ToLower(match[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
