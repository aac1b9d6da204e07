package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/worker"
)

func TestPoolLifecycle(t *testing.T) {
	pool, err := worker.NewPool(2, logger.NewNoOp())
	require.NoError(t, err)

	assert.Equal(t, worker.PoolStateStopped, pool.State())
	require.NoError(t, pool.Start())
	assert.True(t, pool.IsRunning())

	// Starting twice fails.
	require.Error(t, pool.Start())

	require.NoError(t, pool.Stop(context.Background()))
	assert.Equal(t, worker.PoolStateStopped, pool.State())
}

func TestPoolRejectsNonPositiveSize(t *testing.T) {
	_, err := worker.NewPool(0, logger.NewNoOp())
	require.Error(t, err)
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	pool, err := worker.NewPool(2, logger.NewNoOp())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	var mu sync.Mutex
	ran := 0
	var wg sync.WaitGroup

	for range 5 {
		wg.Add(1)
		submitErr := pool.Submit(context.Background(), func(ctx context.Context) error {
			defer wg.Done()
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		})
		require.NoError(t, submitErr)
	}
	wg.Wait()

	mu.Lock()
	assert.Equal(t, 5, ran)
	mu.Unlock()

	stats := pool.Stats()
	assert.Equal(t, int64(5), stats.TasksProcessed)
	assert.Equal(t, int64(5), stats.TasksSucceeded)

	require.NoError(t, pool.Stop(context.Background()))
}

func TestPoolCountsFailedTasks(t *testing.T) {
	pool, err := worker.NewPool(1, logger.NewNoOp())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
		defer wg.Done()
		return errors.New("boom")
	}))
	wg.Wait()

	// The counter update races the wg release by a hair; poll briefly.
	deadline := time.Now().Add(time.Second)
	for pool.Stats().TasksFailed == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int64(1), pool.Stats().TasksFailed)

	require.NoError(t, pool.Stop(context.Background()))
}

func TestPoolTrySubmitWhenFull(t *testing.T) {
	pool, err := worker.NewPool(1, logger.NewNoOp())
	require.NoError(t, err)
	require.NoError(t, pool.Start())

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ok, err := pool.TrySubmit(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, pool.BusyCount())
	assert.Equal(t, 0, pool.IdleCount())

	close(release)
	require.NoError(t, pool.Stop(context.Background()))
}

func TestPoolSubmitWhenStopped(t *testing.T) {
	pool, err := worker.NewPool(1, logger.NewNoOp())
	require.NoError(t, err)

	submitErr := pool.Submit(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, submitErr)
}
