package secrets

import (
	"context"
	"sync"
	"time"
)

// CachedReader wraps a Reader with a short TTL cache per name. Ingress uses
// it for the webhook token so every request does not hit the backing store;
// the TTL bounds how long a rotated token takes to propagate.
type CachedReader struct {
	Next Reader
	TTL  time.Duration

	mu    sync.Mutex
	cache map[string]cachedValue
	now   func() time.Time // test hook
}

type cachedValue struct {
	value     string
	expiresAt time.Time
}

// Get returns the cached value when fresh, otherwise resolves through the
// wrapped reader. Failed lookups are not cached.
func (c *CachedReader) Get(ctx context.Context, name string) (string, error) {
	nowFn := c.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()

	c.mu.Lock()
	if v, ok := c.cache[name]; ok && now.Before(v.expiresAt) {
		c.mu.Unlock()
		return v.value, nil
	}
	c.mu.Unlock()

	value, err := c.Next.Get(ctx, name)
	if err != nil {
		return "", err
	}

	ttl := c.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[string]cachedValue)
	}
	c.cache[name] = cachedValue{value: value, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
	return value, nil
}
