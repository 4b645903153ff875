package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	marks   map[string]time.Time
	history []HistoryEntry
	closed  bool
}

// NewMemory returns a process-local store.
func NewMemory() Store { return newMemory(time.Now) }

// NewMemoryWithClock is NewMemory with an injectable clock for expiry checks.
func NewMemoryWithClock(now func() time.Time) Store { return newMemory(now) }

func newMemory(now func() time.Time) *memoryStore {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{now: now, marks: map[string]time.Time{}}
}

func (s *memoryStore) PutSuppression(ctx context.Context, key string, until time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.marks[key] = until
	// Opportunistic prune keeps long-running processes bounded.
	if len(s.marks)%256 == 0 {
		now := s.now()
		for k, u := range s.marks {
			if !u.After(now) {
				delete(s.marks, k)
			}
		}
	}
	return nil
}

func (s *memoryStore) GetSuppression(ctx context.Context, key string) (time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return time.Time{}, false, ErrClosed
	}
	key = strings.TrimSpace(key)
	until, ok := s.marks[key]
	if !ok {
		return time.Time{}, false, nil
	}
	if !until.After(s.now()) {
		delete(s.marks, key)
		return time.Time{}, false, nil
	}
	return until, true, nil
}

func (s *memoryStore) AppendHistory(ctx context.Context, e HistoryEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = s.now()
	}
	s.history = pushHistory(s.history, e)
	return nil
}

func (s *memoryStore) RecentHistory(ctx context.Context, n int) ([]HistoryEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return newestFirst(s.history, n), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
