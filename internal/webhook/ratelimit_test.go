package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Now()
	rl := newRateLimiter(3)
	rl.nowFunc = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "fourth hit in the window is limited")

	assert.True(t, rl.Allow("b"), "sources are independent")

	// The window slides: after a minute the oldest hits fall out.
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow("a"))
	}
}
