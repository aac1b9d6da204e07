package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// ExecutionRepository handles database operations for job executions.
type ExecutionRepository struct {
	db     *sqlx.DB
	tables config.TableNames
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sqlx.DB, tables config.TableNames) *ExecutionRepository {
	return &ExecutionRepository{db: db, tables: tables}
}

// ExecutionUpdate describes the fields touched by an Update. Nil fields are
// left unchanged; updated_time is always advanced.
type ExecutionUpdate struct {
	State       *domain.ExecutionState
	Hostname    *string
	PID         *int
	Description *string
	Result      *string
}

// Add inserts a new execution record. A zero UpdatedTime is stamped with
// now so fresh rows hold their place in updated_time ordering.
func (r *ExecutionRepository) Add(ctx context.Context, execution *domain.Execution) error {
	if execution.UpdatedTime.IsZero() {
		execution.UpdatedTime = time.Now().UTC()
	}

	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (
			eid, job_id, state, hostname, pid,
			scheduled_time, updated_time, description, result, category_id
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.tables.Executions))

	_, err := r.db.ExecContext(
		ctx,
		query,
		execution.ID,
		execution.JobID,
		int(execution.State),
		execution.Hostname,
		execution.PID,
		execution.ScheduledTime.UTC(),
		execution.UpdatedTime.UTC(),
		execution.Description,
		execution.Result,
		normalizeCategoryID(execution.CategoryID),
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}
	return nil
}

// Update applies the given fields to an execution row and touches
// updated_time.
func (r *ExecutionRepository) Update(ctx context.Context, id string, upd ExecutionUpdate) error {
	sets := []string{"updated_time = ?"}
	args := []any{time.Now().UTC()}

	if upd.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, int(*upd.State))
	}
	if upd.Hostname != nil {
		sets = append(sets, "hostname = ?")
		args = append(args, *upd.Hostname)
	}
	if upd.PID != nil {
		sets = append(sets, "pid = ?")
		args = append(args, *upd.PID)
	}
	if upd.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *upd.Description)
	}
	if upd.Result != nil {
		sets = append(sets, "result = ?")
		args = append(args, *upd.Result)
	}
	args = append(args, id)

	query := r.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET %s WHERE eid = ?", r.tables.Executions, strings.Join(sets, ", ")))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("execution %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetByID retrieves an execution by its id. Returns nil without error when
// no row exists.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*domain.Execution, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT eid, job_id, state, hostname, pid,
		       scheduled_time, updated_time, description, result, category_id
		FROM %s
		WHERE eid = ?
	`, r.tables.Executions))

	var execution domain.Execution
	if err := r.db.GetContext(ctx, &execution, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}

	normalizeExecution(&execution)
	return &execution, nil
}

// ListInRange returns executions whose scheduled_time falls within
// [start, end], newest update first, filtered to the category when
// categoryID is non-zero.
func (r *ExecutionRepository) ListInRange(
	ctx context.Context,
	start, end time.Time,
	categoryID int64,
) ([]*domain.Execution, error) {
	query := fmt.Sprintf(`
		SELECT eid, job_id, state, hostname, pid,
		       scheduled_time, updated_time, description, result, category_id
		FROM %s
		WHERE scheduled_time >= ? AND scheduled_time <= ?
	`, r.tables.Executions)

	args := []any{start.UTC(), end.UTC()}
	if categoryID != domain.UnscopedCategoryID {
		query += " AND category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY updated_time DESC"

	var executions []*domain.Execution
	if err := r.db.SelectContext(ctx, &executions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	if executions == nil {
		executions = []*domain.Execution{}
	}
	for _, e := range executions {
		normalizeExecution(e)
	}
	return executions, nil
}

// normalizeCategoryID maps the unscoped sentinel to NULL on writes.
func normalizeCategoryID(categoryID *int64) *int64 {
	if categoryID == nil || *categoryID == domain.UnscopedCategoryID {
		return nil
	}
	return categoryID
}

// normalizeExecution converts timestamps to UTC and folds the legacy 0
// category into NULL.
func normalizeExecution(e *domain.Execution) {
	e.ScheduledTime = e.ScheduledTime.UTC()
	e.UpdatedTime = e.UpdatedTime.UTC()
	if e.CategoryID != nil && *e.CategoryID == domain.UnscopedCategoryID {
		e.CategoryID = nil
	}
}
