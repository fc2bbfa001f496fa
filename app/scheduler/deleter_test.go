package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

type deletion struct {
	ChatID    int64
	MessageID int
}

type fakeRemover struct {
	mu      sync.Mutex
	deleted []deletion
	errs    map[int]error
	block   chan struct{}
}

func (r *fakeRemover) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.deleted = append(r.deleted, deletion{ChatID: chatID, MessageID: messageID})
	return r.errs[messageID]
}

func (r *fakeRemover) calls() []deletion {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]deletion(nil), r.deleted...)
}

func newDeleter(r Remover) *Deleter {
	return &Deleter{
		Log:     logger.Discard(),
		Remover: r,
	}
}

func TestDeleterDeletesAfterDelay(t *testing.T) {
	r := &fakeRemover{errs: map[int]error{11: e.ErrMessageNotFound}}
	d := newDeleter(r)

	ids := []int{10, 11, 12}
	require.True(t, d.Schedule(-100, ids, 10*time.Millisecond))
	ids[0] = 0

	require.Eventually(t, func() bool { return len(r.calls()) == 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, []deletion{{-100, 10}, {-100, 11}, {-100, 12}}, r.calls())
	assert.Zero(t, d.Pending())

	d.Stop()
}

func TestDeleterStopCancelsPending(t *testing.T) {
	r := &fakeRemover{}
	d := newDeleter(r)

	require.True(t, d.Schedule(-100, []int{1}, time.Hour))
	require.True(t, d.Schedule(-100, []int{2, 3}, time.Hour))
	assert.Equal(t, 2, d.Pending())

	d.Stop()

	assert.Zero(t, d.Pending())
	assert.False(t, d.Schedule(-100, []int{4}, time.Millisecond))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.calls())
}

func TestDeleterStopWaitsForRunning(t *testing.T) {
	r := &fakeRemover{block: make(chan struct{})}
	d := newDeleter(r)

	require.True(t, d.Schedule(-100, []int{1}, time.Millisecond))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a deletion was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(r.block)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	assert.Equal(t, []deletion{{-100, 1}}, r.calls())
}

func TestDeleterEmptyBatch(t *testing.T) {
	d := newDeleter(&fakeRemover{})
	assert.True(t, d.Schedule(-100, nil, time.Millisecond))
	assert.Zero(t, d.Pending())
	d.Stop()
}
