package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/registry"
	"github.com/jonesrussell/gosched/internal/store"
)

// fire records and, unless the plan is a skip, launches one firing. Runs
// outside the engine lock.
func (e *Engine) fire(ctx context.Context, plan *firePlan) {
	eid := newID()

	categoryID, err := e.categories.GetJobCategoryID(ctx, plan.jobID)
	if err != nil {
		e.logger.Error("failed to resolve job category", "job_id", plan.jobID, "error", err)
		categoryID = 0
	}

	execution := &domain.Execution{
		ID:            eid,
		JobID:         plan.jobID,
		State:         domain.ExecutionScheduled,
		ScheduledTime: plan.scheduledTime.UTC(),
		CategoryID:    executionCategory(categoryID),
	}

	body, resolveErr := e.registry.Resolve(plan.job.JobClassString)

	if plan.skipReason != "" {
		execution.State = domain.ExecutionScheduledError
		execution.Description = &plan.skipReason
		if body != nil {
			if result := body.ScheduledErrorResult(); result != "" {
				execution.Result = &result
			}
		}
		if addErr := e.executions.Add(ctx, execution); addErr != nil {
			e.logger.Error("failed to record skipped firing", "job_id", plan.jobID, "error", addErr)
		}
		if e.metrics != nil {
			e.metrics.RecordExecutionState(domain.ExecutionScheduledError.String())
		}
		return
	}

	if resolveErr == nil {
		if desc := body.ScheduledDescription(); desc != "" {
			execution.Description = &desc
		}
	}
	if addErr := e.executions.Add(ctx, execution); addErr != nil {
		e.logger.Error("failed to record firing", "job_id", plan.jobID, "error", addErr)
		e.finishFiring(plan)
		return
	}

	submitErr := e.pool.Submit(ctx, func(taskCtx context.Context) error {
		defer e.finishFiring(plan)
		return e.runFiring(taskCtx, plan.job, eid)
	})
	e.syncWorkersGauge()
	if submitErr != nil {
		e.logger.Error("failed to submit firing", "job_id", plan.jobID, "error", submitErr)
		e.markScheduledError(ctx, eid, fmt.Sprintf("failed to submit firing: %s", submitErr), body)
		e.finishFiring(plan)
	}
}

// runFiring executes one firing on a worker. It owns the execution row from
// SCHEDULED through its terminal state.
func (e *Engine) runFiring(ctx context.Context, job *jobSnapshot, eid string) error {
	body, err := e.registry.Resolve(job.JobClassString)
	if err != nil {
		e.markScheduledError(ctx, eid, fmt.Sprintf("cannot resolve job class %q", job.JobClassString), nil)
		return err
	}

	hooks, hasHooks := body.(registry.Hooks)
	if hasHooks {
		hooks.PreRun(job.ID, eid)
	}

	hostname, _ := os.Hostname()
	pid := os.Getpid()
	running := domain.ExecutionRunning
	if updErr := e.executions.Update(ctx, eid, store.ExecutionUpdate{
		State:    &running,
		Hostname: &hostname,
		PID:      &pid,
	}); updErr != nil {
		e.logger.Error("failed to mark execution running", "execution_id", eid, "error", updErr)
	}

	started := e.now()
	result, runErr := e.safeRun(ctx, body, job, eid)
	elapsed := e.now().Sub(started)

	if runErr != nil {
		e.logger.Error("job failed",
			"job_id", job.ID,
			"job_class", job.JobClassString,
			"execution_id", eid,
			"error", runErr,
		)
		failed := domain.ExecutionFailed
		desc := body.FailedDescription(runErr)
		failResult := body.FailedResult(runErr)
		if updErr := e.executions.Update(ctx, eid, store.ExecutionUpdate{
			State:       &failed,
			Description: &desc,
			Result:      &failResult,
		}); updErr != nil {
			e.logger.Error("failed to mark execution failed", "execution_id", eid, "error", updErr)
		}
		if e.metrics != nil {
			e.metrics.RecordExecution(failed.String(), job.JobClassString, elapsed)
		}
	} else {
		succeeded := domain.ExecutionSucceeded
		desc := body.SucceededDescription(result)
		encoded, encErr := canonicalJSON(result)
		if encErr != nil {
			encoded = fmt.Sprintf("%v", result)
		}
		if updErr := e.executions.Update(ctx, eid, store.ExecutionUpdate{
			State:       &succeeded,
			Description: &desc,
			Result:      &encoded,
		}); updErr != nil {
			e.logger.Error("failed to mark execution succeeded", "execution_id", eid, "error", updErr)
		}
		if e.metrics != nil {
			e.metrics.RecordExecution(succeeded.String(), job.JobClassString, elapsed)
		}
	}

	if hasHooks {
		hooks.PostRun(job.ID, eid)
	}
	return runErr
}

// safeRun invokes the job body, converting a panic into an error so one bad
// job cannot take the worker down.
func (e *Engine) safeRun(ctx context.Context, body registry.JobBody, job *jobSnapshot, eid string) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return body.Run(ctx, job.ID, eid, job.PubArgs)
}

// finishFiring releases the running slot a counted plan holds.
func (e *Engine) finishFiring(plan *firePlan) {
	if plan.counted {
		e.releaseTrigger(plan.jobID)
	}
	e.syncWorkersGauge()
}

// markScheduledError moves an execution to SCHEDULED_ERROR with the given
// description.
func (e *Engine) markScheduledError(ctx context.Context, eid, description string, body registry.JobBody) {
	state := domain.ExecutionScheduledError
	upd := store.ExecutionUpdate{State: &state, Description: &description}
	if body != nil {
		if result := body.ScheduledErrorResult(); result != "" {
			upd.Result = &result
		}
	}
	if err := e.executions.Update(ctx, eid, upd); err != nil {
		e.logger.Error("failed to mark execution errored", "execution_id", eid, "error", err)
	}
	if e.metrics != nil {
		e.metrics.RecordExecutionState(state.String())
	}
}

// executionCategory maps the unscoped sentinel to NULL for execution rows.
func executionCategory(categoryID int64) *int64 {
	if categoryID == domain.UnscopedCategoryID {
		return nil
	}
	return &categoryID
}

// canonicalJSON renders a job result with sorted keys and indentation so
// stored results are stable and diffable.
func canonicalJSON(result any) (string, error) {
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(encoded), nil
}

// recordAudit appends an audit row. Audit writes are best effort: a failure
// is logged and never propagated to the caller.
func (e *Engine) recordAudit(ctx context.Context, entry *domain.AuditLog) {
	if entry.CreatedTime.IsZero() {
		entry.CreatedTime = e.now().UTC()
	}
	if err := e.auditLogs.Add(ctx, entry); err != nil {
		e.logger.Error("failed to write audit log",
			"job_id", entry.JobID,
			"event", entry.Event.String(),
			"error", err,
		)
	}
}
