package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PleasePrompto/ductor/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Provider:        ProviderClaude,
		Model:           "sonnet",
		ReasoningEffort: "medium",
		PermissionMode:  "acceptEdits",
		FileAccess:      "workspace",
	}
}

func TestResolveExecutionConfigDefaults(t *testing.T) {
	ec, err := ResolveExecutionConfig(testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, ec.Provider)
	assert.Equal(t, "sonnet", ec.Model)
	assert.Empty(t, ec.ReasoningEffort, "claude carries no effort")
}

func TestResolveExecutionConfigOverridesWinWholeField(t *testing.T) {
	cfg := testConfig()
	over := &TaskOverrides{
		Provider:        ProviderCodex,
		Model:           "gpt-5.2-codex",
		ReasoningEffort: "xhigh",
		CLIParameters:   []string{"--flag"},
	}
	ec, err := ResolveExecutionConfig(cfg, over)
	require.NoError(t, err)
	assert.Equal(t, ProviderCodex, ec.Provider)
	assert.Equal(t, "gpt-5.2-codex", ec.Model)
	assert.Equal(t, "xhigh", ec.ReasoningEffort)
	// Parameter arrays replace, never merge.
	assert.Equal(t, []string{"--flag"}, ec.CLIParameters)
}

func TestResolveExecutionConfigRejectsBadClaudeModel(t *testing.T) {
	cfg := testConfig()
	_, err := ResolveExecutionConfig(cfg, &TaskOverrides{Model: "gpt-5.2-codex"})
	assert.Error(t, err, "codex model on claude provider is invalid")
}

func TestResolveExecutionConfigInvalidEffortDropped(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = ProviderCodex
	cfg.Model = "gpt-5.2-codex"
	ec, err := ResolveExecutionConfig(cfg, &TaskOverrides{ReasoningEffort: "maximal"})
	require.NoError(t, err)
	assert.Empty(t, ec.ReasoningEffort, "unknown efforts are not passed through")
}

func TestModelEquivalence(t *testing.T) {
	assert.Equal(t, "gpt-5.2-codex", EquivalentModel("opus", ProviderCodex))
	assert.Equal(t, "gpt-5.2-codex-mini", EquivalentModel("haiku", ProviderCodex))
	assert.Equal(t, "haiku", EquivalentModel("gpt-5.2-codex-mini", ProviderClaude))
	// No mapping lands on the target's default.
	assert.Equal(t, "sonnet", EquivalentModel("unknown-model", ProviderClaude))
}

func TestProviderFor(t *testing.T) {
	assert.Equal(t, ProviderClaude, ProviderFor("opus"))
	assert.Equal(t, ProviderCodex, ProviderFor("gpt-5.2-codex"))
	assert.True(t, IsKnownModel("sonnet"))
	assert.True(t, IsKnownModel("gpt-5.2-codex"))
	assert.False(t, IsKnownModel("gpt-9000"))
}
