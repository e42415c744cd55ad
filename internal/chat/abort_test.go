package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAbortTrigger(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"stop", true},
		{"STOP", true},
		{"  halt  ", true},
		{"warte", true},
		{"abbrechen", true},
		{"please stop", false},
		{"stop the build", false},
		{"stopping", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsAbortTrigger(tt.text), "text=%q", tt.text)
	}
}

func TestIsAbortMessage(t *testing.T) {
	assert.True(t, IsAbortMessage("/stop"))
	assert.True(t, IsAbortMessage("/STOP"))
	assert.True(t, IsAbortMessage("cancel"))
	assert.False(t, IsAbortMessage("/stop now"))
	assert.False(t, IsAbortMessage("/new"))
}
