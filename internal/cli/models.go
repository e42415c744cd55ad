package cli

// Provider names. The runtime knows exactly two agent CLIs.
const (
	ProviderClaude = "claude"
	ProviderCodex  = "codex"
)

var claudeModels = map[string]bool{
	"haiku":  true,
	"sonnet": true,
	"opus":   true,
}

// modelEquivalents maps a model to its closest counterpart on the other
// provider, used when the requested provider is unauthenticated.
var modelEquivalents = map[string]string{
	"opus":               "gpt-5.2-codex",
	"sonnet":             "gpt-5.2-codex",
	"haiku":              "gpt-5.2-codex-mini",
	"gpt-5.2-codex":      "sonnet",
	"gpt-5.2-codex-mini": "haiku",
}

// IsClaudeModel reports whether name is one of the fixed Claude models.
func IsClaudeModel(name string) bool { return claudeModels[name] }

// IsKnownModel reports whether name is any model the runtime can route.
func IsKnownModel(name string) bool {
	if claudeModels[name] {
		return true
	}
	_, ok := modelEquivalents[name]
	return ok
}

// ProviderFor returns the provider owning a model name.
func ProviderFor(model string) string {
	if claudeModels[model] {
		return ProviderClaude
	}
	return ProviderCodex
}

// EquivalentModel returns the cross-provider fallback for model, or the
// other provider's default when no mapping exists.
func EquivalentModel(model, targetProvider string) string {
	if eq, ok := modelEquivalents[model]; ok && ProviderFor(eq) == targetProvider {
		return eq
	}
	if targetProvider == ProviderClaude {
		return "sonnet"
	}
	return "gpt-5.2-codex"
}
