// Package worker provides the bounded pool that runs job bodies.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/gosched/internal/logger"
)

// DefaultDrainTimeout bounds how long Stop waits for in-flight tasks.
const DefaultDrainTimeout = 30 * time.Second

// PoolState represents the current state of the pool.
type PoolState int32

const (
	// PoolStateStopped means the pool is not running.
	PoolStateStopped PoolState = iota

	// PoolStateRunning means the pool is actively processing tasks.
	PoolStateRunning

	// PoolStateDraining means the pool is shutting down gracefully.
	PoolStateDraining
)

// String returns the string representation of a pool state.
func (s PoolState) String() string {
	switch s {
	case PoolStateStopped:
		return "stopped"
	case PoolStateRunning:
		return "running"
	case PoolStateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Task is one unit of work run on the pool.
type Task func(ctx context.Context) error

// Pool runs tasks with bounded concurrency.
type Pool struct {
	size   int
	logger logger.Interface
	state  atomic.Int32
	sem    chan struct{} // Semaphore for bounded concurrency
	wg     sync.WaitGroup
	stopCh chan struct{}

	// Stats
	totalTasksProcessed atomic.Int64
	totalTasksSucceeded atomic.Int64
	totalTasksFailed    atomic.Int64
}

// NewPool creates a new worker pool.
func NewPool(size int, log logger.Interface) (*Pool, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be positive")
	}

	p := &Pool{
		size:   size,
		logger: log,
		sem:    make(chan struct{}, size),
		stopCh: make(chan struct{}),
	}
	p.state.Store(int32(PoolStateStopped))

	return p, nil
}

// Start starts the worker pool.
func (p *Pool) Start() error {
	if !p.state.CompareAndSwap(int32(PoolStateStopped), int32(PoolStateRunning)) {
		return errors.New("pool is already running")
	}

	p.logger.Info("worker pool started", "pool_size", p.size)
	return nil
}

// Stop gracefully stops the worker pool, waiting for in-flight tasks.
func (p *Pool) Stop(ctx context.Context) error {
	if !p.state.CompareAndSwap(int32(PoolStateRunning), int32(PoolStateDraining)) {
		return errors.New("pool is not running")
	}

	p.logger.Info("worker pool draining")

	// Signal stop
	close(p.stopCh)

	// Wait for active tasks to finish with timeout
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out")
	case <-time.After(DefaultDrainTimeout):
		p.logger.Warn("worker pool drain timeout exceeded")
	}

	p.state.Store(int32(PoolStateStopped))
	return nil
}

// Submit submits a task for processing.
// Blocks if all workers are busy.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	if p.State() != PoolStateRunning {
		return errors.New("pool is not running")
	}

	// Acquire semaphore (blocks if pool is full)
	select {
	case p.sem <- struct{}{}:
		// Got a slot
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return errors.New("pool is stopping")
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem // Release semaphore
			p.wg.Done()
		}()

		err := task(ctx)

		p.totalTasksProcessed.Add(1)
		if err != nil {
			p.totalTasksFailed.Add(1)
		} else {
			p.totalTasksSucceeded.Add(1)
		}
	}()

	return nil
}

// TrySubmit attempts to submit a task without blocking.
// Returns false if no slot is available.
func (p *Pool) TrySubmit(ctx context.Context, task Task) (bool, error) {
	if p.State() != PoolStateRunning {
		return false, errors.New("pool is not running")
	}

	// Try to acquire semaphore without blocking
	select {
	case p.sem <- struct{}{}:
		// Got a slot
	default:
		return false, nil
	}

	p.wg.Add(1)

	go func() {
		defer func() {
			<-p.sem // Release semaphore
			p.wg.Done()
		}()

		err := task(ctx)

		p.totalTasksProcessed.Add(1)
		if err != nil {
			p.totalTasksFailed.Add(1)
		} else {
			p.totalTasksSucceeded.Add(1)
		}
	}()

	return true, nil
}

// State returns the current pool state.
func (p *Pool) State() PoolState {
	return PoolState(p.state.Load())
}

// IsRunning returns true if the pool is running.
func (p *Pool) IsRunning() bool {
	return p.State() == PoolStateRunning
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}

// BusyCount returns the number of occupied slots.
func (p *Pool) BusyCount() int {
	return len(p.sem)
}

// IdleCount returns the number of free slots.
func (p *Pool) IdleCount() int {
	return p.size - p.BusyCount()
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		State:          p.State(),
		PoolSize:       p.size,
		BusyWorkers:    p.BusyCount(),
		IdleWorkers:    p.IdleCount(),
		TasksProcessed: p.totalTasksProcessed.Load(),
		TasksSucceeded: p.totalTasksSucceeded.Load(),
		TasksFailed:    p.totalTasksFailed.Load(),
	}
}

// Stats holds statistics for the pool.
type Stats struct {
	State          PoolState
	PoolSize       int
	BusyWorkers    int
	IdleWorkers    int
	TasksProcessed int64
	TasksSucceeded int64
	TasksFailed    int64
}
