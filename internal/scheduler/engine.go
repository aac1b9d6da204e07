// Package scheduler implements the trigger engine: it holds in-memory
// triggers, wakes on the earliest due time, applies the misfire and coalesce
// policies, and dispatches firings onto the worker pool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/registry"
	"github.com/jonesrussell/gosched/internal/schedule"
	"github.com/jonesrussell/gosched/internal/worker"
)

const (
	// DefaultGuardRetryInterval is how long the engine sleeps when the
	// dispatch guard denies a cycle.
	DefaultGuardRetryInterval = 60 * time.Second

	// maxMissedFirings bounds how many missed firings are replayed when
	// coalescing is disabled.
	maxMissedFirings = 20
)

// Deps bundles the engine's collaborators.
type Deps struct {
	Jobs       JobStore
	Executions ExecutionStore
	AuditLogs  AuditStore
	Categories CategoryStore
	Registry   *registry.Registry
	Evaluator  Evaluator
	Pool       *worker.Pool
	Logger     logger.Interface
	Config     *config.SchedulerConfig

	// Metrics optionally receives firing outcomes and gauge updates.
	Metrics MetricsRecorder
	// OkayToRun optionally gates dispatching (warm standby hook).
	OkayToRun GuardFunc
	// Clock optionally overrides the time source.
	Clock func() time.Time
	// GuardRetryInterval optionally overrides the guard retry sleep.
	GuardRetryInterval time.Duration
}

// Engine drives the wake loop and owns all in-memory trigger state.
type Engine struct {
	jobs       JobStore
	executions ExecutionStore
	auditLogs  AuditStore
	categories CategoryStore
	registry   *registry.Registry
	eval       Evaluator
	pool       *worker.Pool
	logger     logger.Interface
	cfg        *config.SchedulerConfig
	metrics    MetricsRecorder

	okayToRun  GuardFunc
	guardRetry time.Duration
	now        func() time.Time

	mu       sync.Mutex
	triggers map[string]*Trigger
	queue    triggerHeap
	running  bool

	saveMu      sync.Mutex
	pendingSave map[string]*domain.Job
	saveFlushMu sync.Mutex

	wakeup chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// New creates an engine. Start must be called before jobs fire.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Jobs == nil:
		return nil, errors.New("job store is required")
	case deps.Executions == nil:
		return nil, errors.New("execution store is required")
	case deps.AuditLogs == nil:
		return nil, errors.New("audit store is required")
	case deps.Categories == nil:
		return nil, errors.New("category store is required")
	case deps.Registry == nil:
		return nil, errors.New("registry is required")
	case deps.Evaluator == nil:
		return nil, errors.New("evaluator is required")
	case deps.Pool == nil:
		return nil, errors.New("worker pool is required")
	case deps.Config == nil:
		return nil, errors.New("config is required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNoOp()
	}
	guard := deps.OkayToRun
	if guard == nil {
		guard = func(ctx context.Context) bool { return true }
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	guardRetry := deps.GuardRetryInterval
	if guardRetry == 0 {
		guardRetry = DefaultGuardRetryInterval
	}

	return &Engine{
		jobs:        deps.Jobs,
		executions:  deps.Executions,
		auditLogs:   deps.AuditLogs,
		categories:  deps.Categories,
		registry:    deps.Registry,
		eval:        deps.Evaluator,
		pool:        deps.Pool,
		logger:      log,
		cfg:         deps.Config,
		metrics:     deps.Metrics,
		okayToRun:   guard,
		guardRetry:  guardRetry,
		now:         clock,
		triggers:    make(map[string]*Trigger),
		pendingSave: make(map[string]*domain.Job),
		// Capacity 1 so a signal sent while the loop is dispatching is not
		// lost.
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Start restores persisted jobs into triggers, starts the worker pool and
// the wake loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("scheduler is already running")
	}
	e.running = true
	e.mu.Unlock()

	if err := e.restoreJobs(ctx); err != nil {
		return err
	}

	if err := e.pool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	go e.run()
	e.wake()

	e.logger.Info("scheduler started",
		"jobs", len(e.triggers),
		"pool_size", e.pool.Size(),
	)
	return nil
}

// Stop halts the wake loop, then drains the worker pool.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.running = false
	e.mu.Unlock()

	close(e.stopCh)
	<-e.done

	if err := e.pool.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop worker pool: %w", err)
	}

	e.logger.Info("scheduler stopped")
	return nil
}

// restoreJobs loads every persisted job and installs its trigger. A stored
// next_run_time is kept so downtime is subject to the misfire policy; jobs
// without one get a freshly computed instant.
func (e *Engine) restoreJobs(ctx context.Context) error {
	jobs, err := e.jobs.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, job := range jobs {
		job.Runnable = e.registry.Contains(job.JobClassString)
		if !job.Runnable {
			e.logger.Warn("job class does not resolve, job will not run",
				"job_id", job.ID,
				"job_class", job.JobClassString,
			)
		}

		t := &Trigger{Job: job, heapIndex: -1}
		e.triggers[job.ID] = t
		if job.Paused {
			continue
		}

		if job.NextRunTime != nil {
			t.NextRunTime = *job.NextRunTime
		} else {
			next, nextErr := e.eval.Next(job.Trigger, e.now())
			if nextErr != nil {
				e.logger.Error("failed to compute next run time",
					"job_id", job.ID,
					"error", nextErr,
				)
				continue
			}
			t.NextRunTime = next
		}
		e.queue.push(t)
	}
	e.syncJobsGaugeLocked()
	return nil
}

// wake signals the loop without blocking; a pending signal is enough.
func (e *Engine) wake() {
	select {
	case e.wakeup <- struct{}{}:
	default:
	}
}

// run is the wake loop. It never terminates due to a single job's failure.
func (e *Engine) run() {
	defer close(e.done)
	ctx := context.Background()

	for {
		if !e.okayToRun(ctx) {
			e.logger.Warn("dispatch guard denied cycle", "retry_in", e.guardRetry)
			select {
			case <-time.After(e.guardRetry):
				continue
			case <-e.stopCh:
				return
			}
		}

		e.dispatchDue(ctx)

		select {
		case <-time.After(e.nextSleep()):
		case <-e.wakeup:
		case <-e.stopCh:
			return
		}
	}
}

// nextSleep computes how long to sleep until the earliest trigger, bounded
// by the tick interval.
func (e *Engine) nextSleep() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	sleep := e.cfg.TickInterval
	if sleep <= 0 {
		sleep = time.Minute
	}
	if t := e.queue.peek(); t != nil {
		if until := t.NextRunTime.Sub(e.now()); until < sleep {
			sleep = until
		}
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

// firePlan is one decided firing, produced under the engine lock and
// executed outside it.
type firePlan struct {
	jobID         string
	job           *jobSnapshot
	scheduledTime time.Time
	skipReason    string // non-empty: write SCHEDULED_ERROR, never run
	counted       bool   // running_count was incremented for this plan
}

// jobSnapshot carries the fields a firing needs, detached from the live
// trigger so workers never touch guarded state.
type jobSnapshot struct {
	ID             string
	Name           string
	JobClassString string
	PubArgs        []any
}

func snapshotJob(t *Trigger) *jobSnapshot {
	args := make([]any, len(t.Job.PubArgs))
	copy(args, t.Job.PubArgs)
	return &jobSnapshot{
		ID:             t.Job.ID,
		Name:           t.Job.Name,
		JobClassString: t.Job.JobClassString,
		PubArgs:        args,
	}
}

// dispatchDue collects every due trigger, applies the misfire and coalesce
// policies, and fires the resulting plans.
func (e *Engine) dispatchDue(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	var plans []*firePlan
	for {
		t := e.queue.peek()
		if t == nil || t.NextRunTime.After(now) {
			break
		}
		plans = append(plans, e.planTriggerLocked(t, now)...)
	}
	e.mu.Unlock()

	for _, plan := range plans {
		e.fire(ctx, plan)
	}
}

// planTriggerLocked decides what a due trigger fires and advances its
// NextRunTime past now. Caller holds the engine mutex.
func (e *Engine) planTriggerLocked(t *Trigger, now time.Time) []*firePlan {
	scheduled := t.NextRunTime
	snapshot := snapshotJob(t)

	// Collect every missed firing instant up to now.
	times := []time.Time{scheduled}
	cur := scheduled
	for len(times) < maxMissedFirings {
		next, err := e.eval.Next(t.Job.Trigger, cur)
		if err != nil || next.After(now) {
			break
		}
		times = append(times, next)
		cur = next
	}

	e.advanceTriggerLocked(t, now)

	grace := e.cfg.MisfireGraceTime

	switch {
	case t.runningCount >= e.cfg.MaxInstances:
		return []*firePlan{{
			jobID:         t.Job.ID,
			job:           snapshot,
			scheduledTime: scheduled,
			skipReason:    "maximum number of running instances reached",
		}}

	case grace > 0 && now.Sub(scheduled) > grace:
		return []*firePlan{{
			jobID:         t.Job.ID,
			job:           snapshot,
			scheduledTime: scheduled,
			skipReason:    fmt.Sprintf("missed the scheduled run time by %s", now.Sub(scheduled).Round(time.Second)),
		}}

	case len(times) >= 2 && e.cfg.Coalesce:
		// Collapse the backlog into a single run scheduled at now.
		t.runningCount++
		return []*firePlan{{
			jobID:         t.Job.ID,
			job:           snapshot,
			scheduledTime: now,
			counted:       true,
		}}

	default:
		// Replaying a backlog re-checks the cap per firing: the slots taken
		// by earlier plans in the same batch count too.
		plans := make([]*firePlan, 0, len(times))
		for _, ts := range times {
			if t.runningCount >= e.cfg.MaxInstances {
				plans = append(plans, &firePlan{
					jobID:         t.Job.ID,
					job:           snapshot,
					scheduledTime: ts,
					skipReason:    "maximum number of running instances reached",
				})
				continue
			}
			t.runningCount++
			plans = append(plans, &firePlan{
				jobID:         t.Job.ID,
				job:           snapshot,
				scheduledTime: ts,
				counted:       true,
			})
		}
		return plans
	}
}

// advanceTriggerLocked moves a trigger's NextRunTime strictly past now and
// requeues it; on evaluator failure the trigger is left unqueued. The job
// row is persisted asynchronously.
func (e *Engine) advanceTriggerLocked(t *Trigger, now time.Time) {
	next, err := e.eval.Next(t.Job.Trigger, now)
	if err != nil {
		e.queue.remove(t)
		e.logger.Error("trigger has no upcoming run, dequeued",
			"job_id", t.Job.ID,
			"error", err,
		)
		t.Job.NextRunTime = nil
		e.persistJobAsync(t.Job)
		return
	}

	t.NextRunTime = next
	if t.heapIndex >= 0 {
		e.queue.fix(t)
	} else {
		e.queue.push(t)
	}

	nextCopy := next
	t.Job.NextRunTime = &nextCopy
	e.persistJobAsync(t.Job)
}

// persistJobAsync saves the job row off the engine lock path. Pending saves
// are keyed by job id and hold only the newest value, and flushes are
// serialized, so two rapid trigger advances cannot land on disk out of
// order. A failed save is logged; the in-memory trigger stays authoritative
// until the next write.
func (e *Engine) persistJobAsync(job *domain.Job) {
	clone := *job
	e.saveMu.Lock()
	e.pendingSave[clone.ID] = &clone
	e.saveMu.Unlock()

	go e.flushPendingSave(clone.ID)
}

// flushPendingSave writes the newest pending value for a job. A flush whose
// entry was already written by an earlier flush does nothing.
func (e *Engine) flushPendingSave(jobID string) {
	e.saveFlushMu.Lock()
	defer e.saveFlushMu.Unlock()

	e.saveMu.Lock()
	job, ok := e.pendingSave[jobID]
	if ok {
		delete(e.pendingSave, jobID)
	}
	e.saveMu.Unlock()
	if !ok {
		return
	}

	if err := e.jobs.Save(context.Background(), job); err != nil {
		e.logger.Error("failed to persist job", "job_id", job.ID, "error", err)
	}
}

// releaseTrigger decrements a trigger's running count after a worker
// finishes.
func (e *Engine) releaseTrigger(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.triggers[jobID]; ok && t.runningCount > 0 {
		t.runningCount--
	}
}

// syncJobsGaugeLocked pushes the trigger-count gauge. Caller holds the
// engine mutex.
func (e *Engine) syncJobsGaugeLocked() {
	if e.metrics != nil {
		e.metrics.SetJobsScheduled(len(e.triggers))
	}
}

// syncWorkersGauge pushes the busy-worker gauge.
func (e *Engine) syncWorkersGauge() {
	if e.metrics != nil {
		e.metrics.SetWorkersBusy(e.pool.BusyCount())
	}
}

// newID returns a fresh 32-hex identifier.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// validateParams rejects incomplete or unparseable job parameters.
func validateParams(params JobParams) error {
	if params.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if params.JobClassString == "" {
		return fmt.Errorf("%w: job_class_string is required", ErrValidation)
	}
	if params.Trigger.IsZero() {
		return fmt.Errorf("%w: at least one cron field is required", ErrValidation)
	}
	if err := schedule.Validate(params.Trigger); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return nil
}
