package webhook

import (
	"fmt"
	"regexp"
)

var fieldRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// renderTemplate substitutes {{field}} placeholders from the payload's
// top level. A missing field renders as {{?field}} so the agent can see
// what the sender omitted. Non-string values use their default Go
// formatting.
func renderTemplate(tmpl string, payload map[string]any) string {
	return fieldRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		field := fieldRe.FindStringSubmatch(m)[1]
		v, ok := payload[field]
		if !ok || v == nil {
			return "{{?" + field + "}}"
		}
		if s, isStr := v.(string); isStr {
			return s
		}
		return fmt.Sprint(v)
	})
}
