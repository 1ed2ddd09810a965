package service

import (
	"context"
	"sync"
)

// StoreLocker serialises persistence runs against the same backing store.
type StoreLocker interface {
	Acquire(ctx context.Context, store string) (release func(), err error)
}

// LocalStoreLocker provides per-store mutual exclusion within one process.
type LocalStoreLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalStoreLocker constructs an in-process locker.
func NewLocalStoreLocker() *LocalStoreLocker {
	return &LocalStoreLocker{slots: make(map[string]chan struct{})}
}

// Acquire blocks until the store is free or ctx is done.
func (l *LocalStoreLocker) Acquire(ctx context.Context, store string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[store]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[store] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}
