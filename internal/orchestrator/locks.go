package orchestrator

import (
	"context"
	"sync"
)

type userLock struct {
	sem  chan struct{}
	refs int
}

// lockTable holds one mutex per key, created on demand and dropped once no
// caller holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*userLock)}
}

// acquire blocks until key is free or ctx is done.
func (t *lockTable) acquire(ctx context.Context, key string) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[key]
	if !ok {
		l = &userLock{sem: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		t.put(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			t.put(key, l)
		})
	}, nil
}

func (t *lockTable) put(key string, l *userLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
