package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_ConcurrencyLimit(t *testing.T) {
	const poolSize = 3
	pool := NewWorkerPool(poolSize)
	defer pool.Shutdown()

	var current, peak int64
	for i := 0; i < 10; i++ {
		err := pool.Submit(context.Background(), func(ctx context.Context) error {
			c := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if c <= p || atomic.CompareAndSwapInt64(&peak, p, c) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, pool.Wait())
	assert.LessOrEqual(t, peak, int64(poolSize))
	assert.Positive(t, peak)
	assert.Equal(t, int64(10), pool.Metrics().Completed)
}

func TestWorkerPool_Backpressure(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	started := make(chan struct{})
	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}))
	<-started

	submitted := make(chan struct{})
	go func() {
		_ = pool.Submit(context.Background(), func(ctx context.Context) error { return nil })
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("second submit should block while the pool is full")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("second submit did not unblock")
	}
	assert.NoError(t, pool.Wait())
}

func TestWorkerPool_ErrorsAndPanics(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Shutdown()

	boom := errors.New("boom")
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error { return boom }))
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error { panic("bad graph") }))
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error { return nil }))

	err := pool.Wait()
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "worker panic: bad graph")

	m := pool.Metrics()
	assert.Equal(t, int64(1), m.Completed)
	assert.Equal(t, int64(2), m.Failed)
	assert.Equal(t, int64(1), m.Panics)
	assert.Zero(t, m.Active)
}

func TestWorkerPool_ContextCancellation(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
		<-block
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pool.Submit(ctx, func(ctx context.Context) error { return nil })
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("submit did not return after cancellation")
	}

	close(block)
	assert.NoError(t, pool.Wait())
}

func TestWorkerPool_Shutdown(t *testing.T) {
	pool := NewWorkerPool(2)

	var completed int64
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&completed, 1)
			return nil
		}))
	}

	pool.Shutdown()
	pool.Shutdown() // idempotent

	assert.Equal(t, int64(5), atomic.LoadInt64(&completed))
	assert.ErrorIs(t, pool.Submit(context.Background(), func(ctx context.Context) error { return nil }), ErrPoolShutdown)
}
