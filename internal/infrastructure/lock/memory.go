// Package lock provides the per-(restaurant, platform) advisory lock shared by
// session and sync operations.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/google/uuid"
)

type holder struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is an in-process keyed TryLock. It is suitable for
// single-instance deployments and tests.
type MemoryLocker struct {
	mu      sync.Mutex
	holders map[string]holder
	now     func() time.Time
}

// NewMemoryLocker creates an empty in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		holders: make(map[string]holder),
		now:     time.Now,
	}
}

// TryLock acquires key without waiting. An expired holder is treated as released.
func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, held := l.holders[key]; held && now.Before(h.expiresAt) {
		return nil, false, nil
	}

	token := uuid.NewString()
	l.holders[key] = holder{token: token, expiresAt: now.Add(ttl)}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a holder that outlived its TTL must not release its successor
			if h, held := l.holders[key]; held && h.token == token {
				delete(l.holders, key)
			}
		})
	}
	return release, true, nil
}

// Held reports whether key is currently locked
func (l *MemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, held := l.holders[key]
	return held && l.now().Before(h.expiresAt)
}

// Close is a no-op; it lets MemoryLocker and RedisLocker share a lifecycle.
func (l *MemoryLocker) Close() error {
	return nil
}

var _ delivery.KeyLocker = (*MemoryLocker)(nil)
