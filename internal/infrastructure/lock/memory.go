// Package lock provides an in-process keyed lock for serialising
// recomputes of the same student.
package lock

import (
	"context"
	"sync"

	"github.com/halaqa-hub/evaluation-engine/internal/domain/shared"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker is a set of mutexes indexed by key. Entries are dropped once
// no goroutine holds or waits for them.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewKeyedLocker creates a KeyedLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
// The returned unlock is safe to call more than once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func() error, error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, shared.WrapError("lock", "Lock", shared.ErrLockNotAcquired, "gave up waiting for "+key, ctx.Err())
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
		return nil
	}, nil
}

func (l *KeyedLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
