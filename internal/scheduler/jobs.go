package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonesrussell/gosched/internal/domain"
)

// JobParams carries the caller-supplied fields of a job declaration.
type JobParams struct {
	Name           string            `json:"name"`
	JobClassString string            `json:"job_class_string"`
	PubArgs        domain.JSONList   `json:"pub_args"`
	Trigger        domain.CronFields `json:"trigger"`
}

// Actor identifies who performed an administrative action, for audit rows.
type Actor struct {
	Username   string
	CategoryID int64
}

// AddJob validates, persists and installs a new job, returning its id.
func (e *Engine) AddJob(ctx context.Context, params JobParams, actor Actor) (string, error) {
	if err := validateParams(params); err != nil {
		return "", err
	}

	id := newID()
	if err := e.installJob(ctx, id, params); err != nil {
		return "", err
	}

	e.recordAudit(ctx, &domain.AuditLog{
		JobID:      id,
		JobName:    params.Name,
		Event:      domain.AuditAdded,
		User:       actor.Username,
		CategoryID: actor.CategoryID,
	})

	if actor.CategoryID != domain.UnscopedCategoryID {
		if err := e.categories.SetJobCategory(ctx, id, actor.CategoryID); err != nil {
			e.logger.Error("failed to link job category",
				"job_id", id,
				"category_id", actor.CategoryID,
				"error", err,
			)
		}
	}

	e.logger.Info("job added", "job_id", id, "name", params.Name)
	return id, nil
}

// installJob saves a job row under the given id and queues its trigger.
func (e *Engine) installJob(ctx context.Context, id string, params JobParams) error {
	next, err := e.eval.Next(params.Trigger, e.now())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	job := &domain.Job{
		ID:             id,
		Name:           params.Name,
		JobClassString: params.JobClassString,
		PubArgs:        params.PubArgs,
		Trigger:        params.Trigger,
		NextRunTime:    &next,
		Runnable:       e.registry.Contains(params.JobClassString),
	}
	if err := e.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	e.mu.Lock()
	t := &Trigger{Job: job, NextRunTime: next, heapIndex: -1}
	e.triggers[id] = t
	e.queue.push(t)
	e.syncJobsGaugeLocked()
	e.mu.Unlock()
	e.wake()
	return nil
}

// ModifyJob replaces a job's declaration in place. When the class string or
// the positional arguments change, the job is removed and recreated under
// the same id so no in-flight firing observes a half-applied declaration.
func (e *Engine) ModifyJob(ctx context.Context, jobID string, params JobParams, actor Actor) error {
	if err := validateParams(params); err != nil {
		return err
	}

	existing, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if existing == nil {
		return ErrJobNotFound
	}

	changes := diffJob(existing, params)

	if params.JobClassString != existing.JobClassString || !params.PubArgs.Equal(existing.PubArgs) {
		if err := e.recreateJob(ctx, existing, params); err != nil {
			return err
		}
	} else {
		if err := e.updateJobInPlace(ctx, existing, params); err != nil {
			return err
		}
	}

	e.recordAudit(ctx, &domain.AuditLog{
		JobID:       jobID,
		JobName:     params.Name,
		Event:       domain.AuditModified,
		User:        actor.Username,
		CategoryID:  actor.CategoryID,
		Description: encodeChanges(changes, e.now()),
	})

	e.logger.Info("job modified", "job_id", jobID, "name", params.Name)
	return nil
}

// recreateJob drops and re-adds a job under its original id, preserving the
// category link.
func (e *Engine) recreateJob(ctx context.Context, existing *domain.Job, params JobParams) error {
	e.removeTrigger(existing.ID)
	if err := e.jobs.Delete(ctx, existing.ID); err != nil {
		return fmt.Errorf("failed to replace job: %w", err)
	}
	if err := e.installJob(ctx, existing.ID, params); err != nil {
		return err
	}
	if existing.CategoryID != domain.UnscopedCategoryID {
		if err := e.categories.SetJobCategory(ctx, existing.ID, existing.CategoryID); err != nil {
			e.logger.Error("failed to restore job category",
				"job_id", existing.ID,
				"category_id", existing.CategoryID,
				"error", err,
			)
		}
	}
	return nil
}

// updateJobInPlace applies name and trigger changes to a live trigger.
func (e *Engine) updateJobInPlace(ctx context.Context, existing *domain.Job, params JobParams) error {
	triggerChanged := params.Trigger != existing.Trigger

	e.mu.Lock()
	t, ok := e.triggers[existing.ID]
	if !ok {
		t = &Trigger{Job: existing, heapIndex: -1}
		e.triggers[existing.ID] = t
	}
	t.Job.Name = params.Name
	t.Job.Trigger = params.Trigger

	if triggerChanged && !t.Job.Paused {
		next, err := e.eval.Next(params.Trigger, e.now())
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		t.NextRunTime = next
		nextCopy := next
		t.Job.NextRunTime = &nextCopy
		if t.heapIndex >= 0 {
			e.queue.fix(t)
		} else {
			e.queue.push(t)
		}
	}
	job := *t.Job
	e.mu.Unlock()
	e.wake()

	if err := e.jobs.Save(ctx, &job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// RemoveJob deletes a job and its trigger.
func (e *Engine) RemoveJob(ctx context.Context, jobID string, actor Actor) error {
	existing, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if existing == nil {
		return ErrJobNotFound
	}

	e.removeTrigger(jobID)
	if err := e.jobs.Delete(ctx, jobID); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	// The audit row keeps the deleted job's full definition so it can be
	// reconstructed from the log alone.
	description, err := canonicalJSON(existing)
	if err != nil {
		description = existing.Name
	}
	e.recordAudit(ctx, &domain.AuditLog{
		JobID:       jobID,
		JobName:     existing.Name,
		Event:       domain.AuditDeleted,
		User:        actor.Username,
		CategoryID:  actor.CategoryID,
		Description: description,
	})

	e.logger.Info("job removed", "job_id", jobID, "name", existing.Name)
	return nil
}

// removeTrigger drops a job's trigger from the queue and the trigger map.
func (e *Engine) removeTrigger(jobID string) {
	e.mu.Lock()
	if t, ok := e.triggers[jobID]; ok {
		e.queue.remove(t)
		delete(e.triggers, jobID)
	}
	e.syncJobsGaugeLocked()
	e.mu.Unlock()
}

// PauseJob dequeues a job's trigger and clears its next run time. Pausing a
// paused job is a no-op.
func (e *Engine) PauseJob(ctx context.Context, jobID string, actor Actor) error {
	e.mu.Lock()
	t, ok := e.triggers[jobID]
	if !ok {
		e.mu.Unlock()
		return ErrJobNotFound
	}
	alreadyPaused := t.Job.Paused
	if !alreadyPaused {
		e.queue.remove(t)
		t.Job.Paused = true
		t.Job.NextRunTime = nil
	}
	job := *t.Job
	e.mu.Unlock()

	if alreadyPaused {
		return nil
	}

	if err := e.jobs.Save(ctx, &job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	e.recordAudit(ctx, &domain.AuditLog{
		JobID:      jobID,
		JobName:    job.Name,
		Event:      domain.AuditPaused,
		User:       actor.Username,
		CategoryID: actor.CategoryID,
	})

	e.logger.Info("job paused", "job_id", jobID, "name", job.Name)
	return nil
}

// ResumeJob requeues a paused job's trigger at its next upcoming instant.
// Resuming a running job is a no-op.
func (e *Engine) ResumeJob(ctx context.Context, jobID string, actor Actor) error {
	e.mu.Lock()
	t, ok := e.triggers[jobID]
	if !ok {
		e.mu.Unlock()
		return ErrJobNotFound
	}
	if !t.Job.Paused {
		e.mu.Unlock()
		return nil
	}

	next, err := e.eval.Next(t.Job.Trigger, e.now())
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	t.Job.Paused = false
	t.NextRunTime = next
	nextCopy := next
	t.Job.NextRunTime = &nextCopy
	e.queue.push(t)
	job := *t.Job
	e.mu.Unlock()
	e.wake()

	if err := e.jobs.Save(ctx, &job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	e.recordAudit(ctx, &domain.AuditLog{
		JobID:      jobID,
		JobName:    job.Name,
		Event:      domain.AuditResumed,
		User:       actor.Username,
		CategoryID: actor.CategoryID,
	})

	e.logger.Info("job resumed", "job_id", jobID, "name", job.Name)
	return nil
}

// RunJob fires a job immediately, outside its schedule, and returns the new
// execution id. The job's trigger and pause state are untouched.
func (e *Engine) RunJob(ctx context.Context, jobID string, actor Actor) (string, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return "", ErrJobNotFound
	}

	eid := newID()

	categoryID, catErr := e.categories.GetJobCategoryID(ctx, jobID)
	if catErr != nil {
		e.logger.Error("failed to resolve job category", "job_id", jobID, "error", catErr)
		categoryID = 0
	}

	execution := &domain.Execution{
		ID:            eid,
		JobID:         jobID,
		State:         domain.ExecutionScheduled,
		ScheduledTime: e.now().UTC(),
		CategoryID:    executionCategory(categoryID),
	}
	if body, resolveErr := e.registry.Resolve(job.JobClassString); resolveErr == nil {
		if desc := body.ScheduledDescription(); desc != "" {
			execution.Description = &desc
		}
	}
	if err := e.executions.Add(ctx, execution); err != nil {
		return "", fmt.Errorf("failed to record firing: %w", err)
	}

	snapshot := &jobSnapshot{
		ID:             job.ID,
		Name:           job.Name,
		JobClassString: job.JobClassString,
		PubArgs:        append([]any(nil), job.PubArgs...),
	}
	submitErr := e.pool.Submit(ctx, func(taskCtx context.Context) error {
		return e.runFiring(taskCtx, snapshot, eid)
	})
	if submitErr != nil {
		e.markScheduledError(ctx, eid, fmt.Sprintf("failed to submit firing: %s", submitErr), nil)
		return "", fmt.Errorf("failed to submit firing: %w", submitErr)
	}

	description, _ := json.Marshal(map[string]string{"execution_id": eid})
	e.recordAudit(ctx, &domain.AuditLog{
		JobID:       jobID,
		JobName:     job.Name,
		Event:       domain.AuditCustomRun,
		User:        actor.Username,
		CategoryID:  actor.CategoryID,
		Description: string(description),
	})

	e.logger.Info("job run on demand", "job_id", jobID, "execution_id", eid)
	return eid, nil
}

// GetJob returns one job with its runnable flag set.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	job.Runnable = e.registry.Contains(job.JobClassString)
	return job, nil
}

// ListJobs returns jobs, scoped to a category when categoryID is non-zero.
func (e *Engine) ListJobs(ctx context.Context, categoryID int64) ([]*domain.Job, error) {
	jobs, err := e.jobs.List(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	for _, job := range jobs {
		job.Runnable = e.registry.Contains(job.JobClassString)
	}
	return jobs, nil
}

// SetJobCategory relinks a job to a category and back-fills the creation
// audit row. Category 0 unlinks.
func (e *Engine) SetJobCategory(ctx context.Context, jobID string, categoryID int64) error {
	job, err := e.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}
	if err := e.categories.SetJobCategory(ctx, jobID, categoryID); err != nil {
		return fmt.Errorf("failed to set job category: %w", err)
	}
	return nil
}

// fieldChange records an old and new value for one modified field.
type fieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// diffJob lists the declaration fields a modification changes.
func diffJob(existing *domain.Job, params JobParams) map[string]fieldChange {
	changes := make(map[string]fieldChange)
	if params.Name != existing.Name {
		changes["name"] = fieldChange{Old: existing.Name, New: params.Name}
	}
	if params.JobClassString != existing.JobClassString {
		changes["job_class_string"] = fieldChange{Old: existing.JobClassString, New: params.JobClassString}
	}
	if !params.PubArgs.Equal(existing.PubArgs) {
		changes["pub_args"] = fieldChange{Old: existing.PubArgs, New: params.PubArgs}
	}
	if params.Trigger != existing.Trigger {
		changes["trigger"] = fieldChange{
			Old: existing.Trigger.Expression(),
			New: params.Trigger.Expression(),
		}
	}
	return changes
}

// encodeChanges renders a modification diff for the audit description.
func encodeChanges(changes map[string]fieldChange, at time.Time) string {
	payload := map[string]any{
		"changes":   changes,
		"timestamp": at.UTC().Format(time.RFC3339),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(encoded)
}
