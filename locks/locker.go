package locks

import (
	"context"
	"fmt"
	"sync"

	"travels/entity"
)

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LocalLocker is a keyed mutex for a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localLock)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lock := l.ref(key)
	defer l.unref(key, lock)

	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("lock %s: %w: %w", key, entity.ErrLockNotAcquired, ctx.Err())
	}
	defer func() { <-lock.sem }()

	return fn(ctx)
}

func (l *LocalLocker) ref(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++

	return lock
}

func (l *LocalLocker) unref(key string, lock *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}
