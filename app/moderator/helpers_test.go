package moderator

import (
	"context"
	"errors"
	"sync"
	"time"

	e "nuclight.org/thread-guard-bot/pkg/entities"
	"nuclight.org/thread-guard-bot/pkg/logger"
)

type sentWarning struct {
	ChatID int64
	Text   string
	Opts   e.SendOptions
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentWarning
	err    error
	nextID int
}

func (s *fakeSender) SendMessage(_ context.Context, chatID int64, text string, opts e.SendOptions) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return 0, s.err
	}

	s.sent = append(s.sent, sentWarning{ChatID: chatID, Text: text, Opts: opts})
	s.nextID++
	return 1000 + s.nextID, nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// memStore is an in-memory WarningStore with switchable failures.
type memStore struct {
	mu        sync.Mutex
	data      map[int64]int64
	listErr   error
	getErr    error
	setErr    error
	listCalls int
	getCalls  int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[int64]int64)}
}

func (s *memStore) GetWarning(_ context.Context, userID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return 0, false, s.getErr
	}
	ts, ok := s.data[userID]
	return ts, ok, nil
}

func (s *memStore) SetWarning(_ context.Context, userID int64, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.data[userID] = ts
	return nil
}

func (s *memStore) ListWarnings(_ context.Context) (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make(map[int64]int64, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Unix(1_700_000_000, 0)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestWarner(store WarningStore, sender Sender, clk *clock) *Warner {
	log := logger.Discard()
	return &Warner{
		Log:       log,
		Cooldown:  180 * time.Second,
		Cooldowns: &Cooldowns{Log: log, Store: store},
		Sender:    sender,
		Now:       clk.Now,
	}
}

func groupMessage(id int, user *e.User) *e.Message {
	return &e.Message{ID: id, ChatID: -100123, From: user}
}

var errBoom = errors.New("boom")
