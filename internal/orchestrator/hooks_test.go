package orchestrator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEveryNMessages(t *testing.T) {
	cond := EveryNMessages(6)

	// MessageCount is pre-increment: count 5 means the 6th message.
	assert.False(t, cond(HookContext{MessageCount: 0}), "first message")
	assert.False(t, cond(HookContext{MessageCount: 4}))
	assert.True(t, cond(HookContext{MessageCount: 5}), "6th message")
	assert.False(t, cond(HookContext{MessageCount: 6}))
	assert.True(t, cond(HookContext{MessageCount: 11}), "12th message")
}

func TestHookRegistryApply(t *testing.T) {
	var r HookRegistry
	r.Register(MessageHook{
		Name:      "always",
		Condition: func(HookContext) bool { return true },
		Suffix:    "SUFFIX-A",
	})
	r.Register(MessageHook{
		Name:      "never",
		Condition: func(HookContext) bool { return false },
		Suffix:    "SUFFIX-B",
	})

	out := r.Apply("hello", HookContext{})
	assert.True(t, strings.HasPrefix(out, "hello"))
	assert.Contains(t, out, "SUFFIX-A")
	assert.NotContains(t, out, "SUFFIX-B")
}

func TestMainMemoryReminderCadence(t *testing.T) {
	assert.True(t, MainMemoryReminder.Condition(HookContext{MessageCount: 5}))
	assert.False(t, MainMemoryReminder.Condition(HookContext{MessageCount: 3}))
}
