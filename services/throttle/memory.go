package throttlesvc

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/account"
)

var nowFunc = time.Now // mockable

type counter struct {
	count     int
	expiresAt time.Time
}

// MemoryThrottle keeps failed login counters in process. Used when no redis is configured, and in tests.
type MemoryThrottle struct {
	mu          sync.Mutex
	counters    map[string]*counter
	maxAttempts int
	window      time.Duration
}

var _ account.LoginThrottle = (*MemoryThrottle)(nil) // interface compliance check

func NewMemoryThrottle(conf *core.Config) *MemoryThrottle {
	return &MemoryThrottle{
		counters:    make(map[string]*counter),
		maxAttempts: conf.Auth.MaxLoginAttempts,
		window:      conf.Auth.LoginAttemptWindow,
	}
}

// get returns the live counter for key. Callers must hold the lock.
func (t *MemoryThrottle) get(key string) *counter {
	c, ok := t.counters[key]
	if !ok {
		return nil
	}
	if nowFunc().After(c.expiresAt) {
		delete(t.counters, key)
		return nil
	}
	return c
}

func (t *MemoryThrottle) Blocked(_ context.Context, key string) (bool, error) {
	if t.maxAttempts <= 0 {
		return false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.get(key)
	return c != nil && c.count >= t.maxAttempts, nil
}

func (t *MemoryThrottle) Failed(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.get(key)
	if c == nil {
		c = &counter{expiresAt: nowFunc().Add(t.window)}
		t.counters[key] = c
	}
	c.count++
	return nil
}

func (t *MemoryThrottle) Reset(_ context.Context, key string) error {
	t.mu.Lock()
	delete(t.counters, key)
	t.mu.Unlock()
	return nil
}
