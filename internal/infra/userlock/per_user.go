package userlock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

var _ Locker = (*PerUser)(nil)

// PerUser keeps one lock per user id. Locks are created on first use and
// never removed.
type PerUser struct {
	mu    sync.Mutex
	locks map[uint64]*semaphore.Weighted
	opts  options
}

func NewPerUser(opts ...Option) *PerUser {
	return &PerUser{
		locks: make(map[uint64]*semaphore.Weighted),
		opts:  buildOptions(opts),
	}
}

func (l *PerUser) WithUserLock(ctx context.Context, userID uint64, fn func() error) error {
	return runLocked(ctx, l.lockFor(userID), l.opts, fn)
}

// Len returns the number of users that have a lock entry.
func (l *PerUser) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}

func (l *PerUser) lockFor(userID uint64) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.locks[userID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[userID] = sem
	}

	return sem
}
