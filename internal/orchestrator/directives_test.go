package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func knownTestModel(name string) bool {
	switch name {
	case "opus", "sonnet", "haiku":
		return true
	}
	return false
}

func TestParseDirectivesModel(t *testing.T) {
	d := ParseDirectives("@opus summarize my notes", knownTestModel)
	assert.Equal(t, "opus", d.Model)
	assert.Equal(t, "summarize my notes", d.Cleaned)
	assert.False(t, d.DirectiveOnly())
}

func TestParseDirectivesOnlyLeadingTokens(t *testing.T) {
	d := ParseDirectives("email @opus about the meeting", knownTestModel)
	assert.Empty(t, d.Model)
	assert.Equal(t, "email @opus about the meeting", d.Cleaned)
}

func TestParseDirectivesDirectiveOnly(t *testing.T) {
	d := ParseDirectives("@sonnet", knownTestModel)
	assert.Equal(t, "sonnet", d.Model)
	assert.True(t, d.DirectiveOnly())
}

func TestParseDirectivesUnknownKeyValue(t *testing.T) {
	d := ParseDirectives("@verbose=true @haiku do it", knownTestModel)
	assert.Equal(t, "haiku", d.Model)
	assert.Equal(t, "do it", d.Cleaned)
	assert.Equal(t, "true", d.Raw["verbose"])
}

func TestParseDirectivesNoDirectives(t *testing.T) {
	d := ParseDirectives("  plain message  ", knownTestModel)
	assert.Empty(t, d.Model)
	assert.Equal(t, "plain message", d.Cleaned)
}

func TestParseDirectivesFirstModelWins(t *testing.T) {
	d := ParseDirectives("@opus @haiku compare", knownTestModel)
	assert.Equal(t, "opus", d.Model)
	// The second model token is collected, not treated as the override.
	_, ok := d.Raw["haiku"]
	assert.True(t, ok)
	assert.Equal(t, "compare", d.Cleaned)
}
