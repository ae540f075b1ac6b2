package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_ProcessesAllItems(t *testing.T) {
	var processed atomic.Int64
	var wg sync.WaitGroup

	pool := NewPool(4, 32, func(_ context.Context, _ int) error {
		defer wg.Done()
		processed.Add(1)
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()

	assert.Equal(t, int64(20), processed.Load())
	stats := pool.Stats()
	assert.Equal(t, int64(20), stats.Submitted)
	assert.Equal(t, int64(20), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)

	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	assert.ErrorIs(t, pool.Submit(1), ErrPoolNotStarted)
}

func TestPool_QueueFullDropsWork(t *testing.T) {
	block := make(chan struct{})
	pool := NewPool(1, 1, func(_ context.Context, _ int) error {
		<-block
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))
	defer func() {
		close(block)
		_ = pool.Stop(time.Second)
	}()

	// First item occupies the worker, second fills the queue; eventually a
	// submit must be dropped.
	var dropped bool
	for i := 0; i < 3; i++ {
		if errors.Is(pool.Submit(i), ErrQueueFull) {
			dropped = true
		}
	}
	assert.True(t, dropped)
	assert.GreaterOrEqual(t, pool.Stats().Dropped, int64(1))
}

func TestPool_FailedItemsCounted(t *testing.T) {
	var wg sync.WaitGroup
	pool := NewPool(2, 8, func(_ context.Context, n int) error {
		defer wg.Done()
		if n%2 == 1 {
			return errors.New("odd item")
		}
		return nil
	})
	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(i))
	}
	wg.Wait()
	require.NoError(t, pool.Stop(time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(5), stats.Failed)
}

func TestPool_StopIsIdempotent(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Stop(time.Second))
	require.NoError(t, pool.Stop(time.Second))
	assert.ErrorIs(t, pool.Submit(1), ErrPoolStopped)
}

func TestPool_StartTwice(t *testing.T) {
	pool := NewPool(1, 1, func(_ context.Context, _ int) error { return nil })
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, pool.Stop(time.Second))
}
