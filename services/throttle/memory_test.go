package throttlesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
)

func TestMemoryThrottle(t *testing.T) {
	ctx := context.Background()
	throttle := NewMemoryThrottle(&core.Config{Auth: core.AuthConfig{
		MaxLoginAttempts:   3,
		LoginAttemptWindow: 15 * time.Minute,
	}})

	for i := 0; i < 2; i++ {
		_ = throttle.Failed(ctx, "alice")
	}
	blocked, _ := throttle.Blocked(ctx, "alice")
	assert.False(t, blocked, "blocked before max attempts")

	_ = throttle.Failed(ctx, "alice")
	blocked, _ = throttle.Blocked(ctx, "alice")
	assert.True(t, blocked, "not blocked after max attempts")

	blocked, _ = throttle.Blocked(ctx, "bob")
	assert.False(t, blocked, "counters leak between keys")

	_ = throttle.Reset(ctx, "alice")
	blocked, _ = throttle.Blocked(ctx, "alice")
	assert.False(t, blocked, "still blocked after reset")
}

func TestMemoryThrottle_windowExpires(t *testing.T) {
	ctx := context.Background()
	throttle := NewMemoryThrottle(&core.Config{Auth: core.AuthConfig{
		MaxLoginAttempts:   1,
		LoginAttemptWindow: time.Minute,
	}})
	_ = throttle.Failed(ctx, "alice")

	nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	defer func() { nowFunc = time.Now }()

	blocked, _ := throttle.Blocked(ctx, "alice")
	assert.False(t, blocked, "still blocked after the window")
}

func TestMemoryThrottle_disabled(t *testing.T) {
	ctx := context.Background()
	throttle := NewMemoryThrottle(&core.Config{})
	_ = throttle.Failed(ctx, "alice")

	blocked, _ := throttle.Blocked(ctx, "alice")
	assert.False(t, blocked)
}
