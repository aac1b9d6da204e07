package scheduler

import (
	"context"
	"time"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/store"
)

// JobStore persists job declarations.
type JobStore interface {
	Save(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, jobID string) (*domain.Job, error)
	List(ctx context.Context, categoryID int64) ([]*domain.Job, error)
	Delete(ctx context.Context, jobID string) error
}

// ExecutionStore persists firing attempts.
type ExecutionStore interface {
	Add(ctx context.Context, execution *domain.Execution) error
	Update(ctx context.Context, id string, upd store.ExecutionUpdate) error
}

// AuditStore appends audit rows.
type AuditStore interface {
	Add(ctx context.Context, log *domain.AuditLog) error
}

// CategoryStore resolves and replaces job category links.
type CategoryStore interface {
	SetJobCategory(ctx context.Context, jobID string, categoryID int64) error
	GetJobCategoryID(ctx context.Context, jobID string) (int64, error)
}

// Evaluator computes firing times for cron triggers.
type Evaluator interface {
	Next(trigger domain.CronFields, after time.Time) (time.Time, error)
}

// GuardFunc gates dispatching. Returning false makes the engine sleep and
// retry instead of firing; the default always allows.
type GuardFunc func(ctx context.Context) bool

// MetricsRecorder receives the engine's firing outcomes and gauge updates.
type MetricsRecorder interface {
	RecordExecution(state, jobClass string, duration time.Duration)
	RecordExecutionState(state string)
	SetJobsScheduled(n int)
	SetWorkersBusy(n int)
}
