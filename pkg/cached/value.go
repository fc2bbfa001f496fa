// Package cached holds values which are expensive to fetch and may be served
// stale for a while.
package cached

import (
	"context"
	"sync"
	"time"
)

// Value caches the result of Fetch for TTL. When a refresh fails the previous
// value, if any, is served together with the refresh error, so callers can log
// the failure and keep working with stale data.
type Value[T any] struct {
	// Fetch loads a fresh value
	Fetch func(ctx context.Context) (T, error)

	// TTL is how long a fetched value is considered fresh
	TTL time.Duration

	// Now is the clock, time.Now when nil
	Now func() time.Time

	mu        sync.Mutex
	value     T
	fetchedAt time.Time
	ok        bool
}

// Get returns the cached value if it is fresh, otherwise fetches a new one.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if v.ok && now.Sub(v.fetchedAt) < v.TTL {
		return v.value, nil
	}

	fresh, err := v.Fetch(ctx)
	if err != nil {
		return v.value, err
	}

	v.value = fresh
	v.fetchedAt = now
	v.ok = true

	return v.value, nil
}

func (v *Value[T]) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}
