// Package scheduler removes messages from a chat after a delay.
package scheduler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

// DefaultTimeout bounds a single delete request when Timeout is not set.
const DefaultTimeout = 10 * time.Second

type Remover interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Deleter runs deferred deletions, one timer per scheduled batch. Failed
// deletions are logged and never retried. After Stop nothing is scheduled and
// pending batches are dropped.
type Deleter struct {
	// Log is a logger
	Log logger.Logger

	// Remover deletes a single message
	Remover Remover

	// Timeout bounds every delete request, DefaultTimeout if zero
	Timeout time.Duration

	mu      sync.Mutex
	seq     uint64
	timers  map[uint64]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// Schedule deletes the given messages after delay. It returns false when the
// deleter is already stopped.
func (d *Deleter) Schedule(chatID int64, messageIDs []int, delay time.Duration) bool {
	if len(messageIDs) == 0 {
		return true
	}

	ids := slices.Clone(messageIDs)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}

	if d.timers == nil {
		d.timers = make(map[uint64]*time.Timer)
	}

	d.seq++
	key := d.seq

	d.wg.Add(1)
	d.timers[key] = time.AfterFunc(delay, func() {
		defer d.wg.Done()
		d.fire(key, chatID, ids)
	})

	d.Log.Debug("deletion scheduled", "tg_chat_id", chatID, "tg_message_ids", ids, "delay", delay)
	return true
}

// Pending returns the number of batches waiting for their timer.
func (d *Deleter) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels all pending deletions and waits for the running ones.
func (d *Deleter) Stop() {
	d.mu.Lock()
	d.stopped = true

	cancelled := 0
	for key, timer := range d.timers {
		delete(d.timers, key)
		if timer.Stop() {
			cancelled++
			d.wg.Done()
		}
	}
	d.mu.Unlock()

	if cancelled > 0 {
		d.Log.Info("pending deletions cancelled", "count", cancelled)
	}

	d.wg.Wait()
}

func (d *Deleter) fire(key uint64, chatID int64, ids []int) {
	d.mu.Lock()
	_, ok := d.timers[key]
	delete(d.timers, key)
	d.mu.Unlock()

	if !ok {
		return
	}

	for _, id := range ids {
		d.delete(chatID, id)
	}
}

func (d *Deleter) delete(chatID int64, messageID int) {
	log := d.Log.With("tg_chat_id", chatID, "tg_message_id", messageID)

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := d.Remover.DeleteMessage(ctx, chatID, messageID)
	switch {
	case err == nil:
		log.Debug("message deleted")
	case errors.Is(err, e.ErrMessageNotFound):
		log.Debug("message already gone")
	default:
		log.Warn("deleting message", "error", err)
	}
}
