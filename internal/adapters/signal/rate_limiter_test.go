package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageRateLimiter_Window(t *testing.T) {
	rl := NewMessageRateLimiter(2, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per identity")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))
}

func TestMessageRateLimiter_Forget(t *testing.T) {
	rl := NewMessageRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
}
