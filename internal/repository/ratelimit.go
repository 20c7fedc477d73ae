package repository

import (
	"context"
	"sync"
	"time"

	"peregovorka/internal/domain"
)

// MemoryRateLimiter counts messages per user in fixed windows.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[int64]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count     int
	expiresAt time.Time
}

var _ domain.RateLimiter = (*MemoryRateLimiter)(nil)

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[int64]*rateWindow),
		now:     time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[userID]
	if !ok || !now.Before(w.expiresAt) {
		w = &rateWindow{expiresAt: now.Add(window)}
		l.windows[userID] = w
	}
	w.count++

	if len(l.windows) > 1024 {
		l.evict(now)
	}
	return w.count <= limit, nil
}

func (l *MemoryRateLimiter) evict(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.expiresAt) {
			delete(l.windows, id)
		}
	}
}
