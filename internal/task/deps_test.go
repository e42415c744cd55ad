package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepQueueSerializesSameKey(t *testing.T) {
	q := NewDepQueue()
	ctx := context.Background()

	require.NoError(t, q.Acquire(ctx, "k"))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	// Waiters join in a known order; each releases before the next runs.
	for i := 1; i <= 3; i++ {
		i := i
		wg.Add(1)
		ready := make(chan struct{})
		go func() {
			defer wg.Done()
			close(ready)
			require.NoError(t, q.Acquire(ctx, "k"))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			q.Release("k")
		}()
		<-ready
		// Give the goroutine time to register as a waiter before the
		// next one joins.
		time.Sleep(20 * time.Millisecond)
	}

	q.Release("k")
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3}, order, "waiters granted FIFO")
}

func TestDepQueueIndependentKeys(t *testing.T) {
	q := NewDepQueue()
	ctx := context.Background()

	require.NoError(t, q.Acquire(ctx, "a"))
	done := make(chan struct{})
	go func() {
		require.NoError(t, q.Acquire(ctx, "b"))
		q.Release("b")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("key b blocked behind key a")
	}
	q.Release("a")
}

func TestDepQueueAcquireCancellation(t *testing.T) {
	q := NewDepQueue()
	require.NoError(t, q.Acquire(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := q.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The holder can still release and a fresh acquire succeeds.
	q.Release("k")
	require.NoError(t, q.Acquire(context.Background(), "k"))
	q.Release("k")
}
