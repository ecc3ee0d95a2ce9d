package stats

import (
	"context"
	"sync"
	"time"
)

// Cached serves a successful Result for ttl before fetching again.
// Failures are never cached.
type Cached struct {
	next Fetcher
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	result  Result
	fetched time.Time
	valid   bool
}

// NewCached wraps next. A ttl of zero returns next unchanged, so every call
// goes upstream.
func NewCached(next Fetcher, ttl time.Duration) Fetcher {
	if ttl <= 0 {
		return next
	}
	return &Cached{next: next, ttl: ttl, now: time.Now}
}

func (c *Cached) Fetch(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.fetched) < c.ttl {
		return c.result, nil
	}

	r, err := c.next.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	c.result, c.fetched, c.valid = r, c.now(), true
	return r, nil
}
