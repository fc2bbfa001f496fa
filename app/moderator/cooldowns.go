package moderator

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"nuclight.org/thread-guard-bot/pkg/logger"
)

// WarningStore is the durable store of last warning timestamps (unix seconds)
// keyed by user id.
type WarningStore interface {
	GetWarning(ctx context.Context, userID int64) (int64, bool, error)
	SetWarning(ctx context.Context, userID int64, ts int64) error
	ListWarnings(ctx context.Context) (map[int64]int64, error)
}

// Cooldowns is a read-through, write-through mirror of a WarningStore. The
// full snapshot is loaded on first access; afterwards reads are served from
// memory. An entry is updated only after the store accepted the write. This
// process is assumed to be the only writer of the store.
type Cooldowns struct {
	// Log is a logger
	Log logger.Logger

	// Store is the authoritative store
	Store WarningStore

	// RetryAfter is the pause between failed snapshot loads on the Get path,
	// DefaultSnapshotRetry if zero
	RetryAfter time.Duration

	// Now is the clock, time.Now when nil
	Now func() time.Time

	mu        sync.Mutex
	loaded    bool
	entries   map[int64]int64
	nextRetry time.Time
}

const DefaultSnapshotRetry = 30 * time.Second

// Get returns the last warning timestamp of the user. While the snapshot
// cannot be loaded, the store is asked directly and the snapshot is retried
// no more often than RetryAfter.
func (c *Cooldowns) Get(ctx context.Context, userID int64) (int64, bool, error) {
	c.mu.Lock()
	err := c.loadBackoffLocked(ctx)
	if err == nil {
		ts, ok := c.entries[userID]
		c.mu.Unlock()
		return ts, ok, nil
	}
	c.mu.Unlock()

	if !errors.Is(err, errSnapshotBackoff) {
		c.Log.Warn("loading warnings snapshot, falling back to point lookup", "error", err)
	}

	ts, ok, err := c.Store.GetWarning(ctx, userID)
	if err != nil {
		return 0, false, fmt.Errorf("getting warning: %w", err)
	}

	return ts, ok, nil
}

// Set persists the timestamp and then mirrors it. The mirror is left untouched
// when the store fails.
func (c *Cooldowns) Set(ctx context.Context, userID int64, ts int64) error {
	err := c.Store.SetWarning(ctx, userID, ts)
	if err != nil {
		return fmt.Errorf("setting warning: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		c.entries[userID] = ts
	}

	return nil
}

// All returns a copy of every known record. It loads the snapshot regardless
// of the Get backoff.
func (c *Cooldowns) All(ctx context.Context) (map[int64]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}

	return maps.Clone(c.entries), nil
}

var errSnapshotBackoff = errors.New("snapshot load postponed")

func (c *Cooldowns) loadBackoffLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	now := c.now()
	if now.Before(c.nextRetry) {
		return errSnapshotBackoff
	}

	err := c.loadLocked(ctx)
	if err != nil {
		retry := c.RetryAfter
		if retry <= 0 {
			retry = DefaultSnapshotRetry
		}
		c.nextRetry = now.Add(retry)
	}

	return err
}

func (c *Cooldowns) loadLocked(ctx context.Context) error {
	if c.loaded {
		return nil
	}

	entries, err := c.Store.ListWarnings(ctx)
	if err != nil {
		return fmt.Errorf("listing warnings: %w", err)
	}

	if entries == nil {
		entries = make(map[int64]int64)
	}

	c.entries = entries
	c.loaded = true

	c.Log.Debug("warnings snapshot loaded", "count", len(entries))
	return nil
}

func (c *Cooldowns) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
