package orchestrator

import (
	"regexp"
	"strings"
)

var directiveRe = regexp.MustCompile(`@([a-zA-Z][a-zA-Z0-9_-]*)(?:=(\S+))?`)

// Directives is the result of parsing leading @tokens from a message.
type Directives struct {
	Cleaned string
	Model   string
	Raw     map[string]string
}

// HasModel reports whether a model directive was found.
func (d Directives) HasModel() bool { return d.Model != "" }

// DirectiveOnly reports whether the message had no body besides
// directives.
func (d Directives) DirectiveOnly() bool { return d.Cleaned == "" }

// ParseDirectives extracts leading @directives. Only tokens at the very
// start of the message are consumed, so "email @opus" never matches.
// The first token naming a known model becomes the model override;
// other @key or @key=value tokens are collected and ignored.
func ParseDirectives(text string, knownModel func(string) bool) Directives {
	stripped := strings.TrimSpace(text)
	if stripped == "" || !strings.HasPrefix(stripped, "@") {
		return Directives{Cleaned: stripped}
	}

	var model string
	raw := map[string]string{}
	pos := 0

	for _, loc := range directiveRe.FindAllStringSubmatchIndex(stripped, -1) {
		prefix := stripped[pos:loc[0]]
		if strings.TrimSpace(prefix) != "" {
			break
		}
		key := strings.ToLower(stripped[loc[2]:loc[3]])
		value := ""
		if loc[4] >= 0 {
			value = stripped[loc[4]:loc[5]]
		}
		if knownModel != nil && knownModel(key) && model == "" {
			model = key
		} else {
			raw[key] = value
		}
		pos = loc[1]
	}

	if model == "" && len(raw) == 0 {
		return Directives{Cleaned: stripped}
	}
	return Directives{
		Cleaned: strings.TrimSpace(stripped[pos:]),
		Model:   model,
		Raw:     raw,
	}
}
