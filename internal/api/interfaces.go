package api

import (
	"context"
	"time"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/scheduler"
)

// JobEngine is the slice of the scheduler the handlers drive.
type JobEngine interface {
	AddJob(ctx context.Context, params scheduler.JobParams, actor scheduler.Actor) (string, error)
	ModifyJob(ctx context.Context, jobID string, params scheduler.JobParams, actor scheduler.Actor) error
	RemoveJob(ctx context.Context, jobID string, actor scheduler.Actor) error
	PauseJob(ctx context.Context, jobID string, actor scheduler.Actor) error
	ResumeJob(ctx context.Context, jobID string, actor scheduler.Actor) error
	RunJob(ctx context.Context, jobID string, actor scheduler.Actor) (string, error)
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, categoryID int64) ([]*domain.Job, error)
}

// ExecutionReader reads persisted firings.
type ExecutionReader interface {
	GetByID(ctx context.Context, id string) (*domain.Execution, error)
	ListInRange(ctx context.Context, start, end time.Time, categoryID int64) ([]*domain.Execution, error)
}

// AuditReader reads audit rows.
type AuditReader interface {
	ListInRange(ctx context.Context, start, end time.Time, categoryID int64) ([]*domain.AuditLog, error)
}

// CategoryStore persists categories.
type CategoryStore interface {
	Add(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error
	Delete(ctx context.Context, id int64) error
}

// UserStore persists operator accounts.
type UserStore interface {
	Add(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id int64) error
}
