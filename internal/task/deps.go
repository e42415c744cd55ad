package task

import (
	"context"
	"sync"
)

// DepQueue serializes work items sharing a dependency key. Waiters are
// granted strictly in arrival order; keys are independent of each other.
type DepQueue struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	held    bool
	waiters []chan struct{}
}

// NewDepQueue returns an empty queue.
func NewDepQueue() *DepQueue {
	return &DepQueue{locks: map[string]*keyLock{}}
}

// Acquire blocks until the key's lock is free or ctx is done. On
// success the caller must call Release exactly once.
func (q *DepQueue) Acquire(ctx context.Context, key string) error {
	q.mu.Lock()
	kl, ok := q.locks[key]
	if !ok {
		kl = &keyLock{}
		q.locks[key] = kl
	}
	if !kl.held {
		kl.held = true
		q.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	kl.waiters = append(kl.waiters, ready)
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.abandon(key, ready)
		return ctx.Err()
	}
}

// Release hands the lock to the oldest waiter, or frees it.
func (q *DepQueue) Release(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kl, ok := q.locks[key]
	if !ok {
		return
	}
	if len(kl.waiters) > 0 {
		next := kl.waiters[0]
		kl.waiters = kl.waiters[1:]
		close(next)
		return
	}
	kl.held = false
	delete(q.locks, key)
}

// abandon removes a waiter that gave up. The grant may have raced the
// cancellation; if so, pass it on.
func (q *DepQueue) abandon(key string, ready chan struct{}) {
	q.mu.Lock()
	kl, ok := q.locks[key]
	if ok {
		for i, w := range kl.waiters {
			if w == ready {
				kl.waiters = append(kl.waiters[:i], kl.waiters[i+1:]...)
				q.mu.Unlock()
				return
			}
		}
	}
	q.mu.Unlock()

	select {
	case <-ready:
		// We were granted the lock concurrently with cancelling.
		q.Release(key)
	default:
	}
}
