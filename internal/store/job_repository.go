package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// JobRepository persists job declarations. The job itself is stored as an
// opaque JSON blob so triggers, pub_args, the paused flag and the category
// link round-trip across restarts.
type JobRepository struct {
	db     *sqlx.DB
	tables config.TableNames
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB, tables config.TableNames) *JobRepository {
	return &JobRepository{db: db, tables: tables}
}

// jobRow is the persisted shape of a job.
type jobRow struct {
	JobID       string     `db:"job_id"`
	NextRunTime *time.Time `db:"next_run_time"`
	State       string     `db:"state"`
	CategoryID  int64      `db:"category_id"`
}

// Save inserts or replaces a job row.
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	state, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (job_id, next_run_time, state)
		VALUES (?, ?, ?)
		ON CONFLICT (job_id) DO UPDATE SET
			next_run_time = excluded.next_run_time,
			state = excluded.state
	`, r.tables.Jobs))

	var nextRun *time.Time
	if job.NextRunTime != nil {
		utc := job.NextRunTime.UTC()
		nextRun = &utc
	}

	if _, err := r.db.ExecContext(ctx, query, job.ID, nextRun, string(state)); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID retrieves one job with its category link. Returns nil without
// error when the job does not exist.
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT j.job_id, j.next_run_time, j.state, COALESCE(jc.category_id, 0) AS category_id
		FROM %s j
		LEFT JOIN %s jc ON jc.job_id = j.job_id
		WHERE j.job_id = ?
	`, r.tables.Jobs, r.tables.JobCategories))

	var row jobRow
	if err := r.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return decodeJobRow(&row)
}

// List returns all jobs ordered case-insensitively by name, filtered to the
// given category when categoryID is non-zero.
func (r *JobRepository) List(ctx context.Context, categoryID int64) ([]*domain.Job, error) {
	query := fmt.Sprintf(`
		SELECT j.job_id, j.next_run_time, j.state, COALESCE(jc.category_id, 0) AS category_id
		FROM %s j
		LEFT JOIN %s jc ON jc.job_id = j.job_id
	`, r.tables.Jobs, r.tables.JobCategories)

	args := []any{}
	if categoryID != domain.UnscopedCategoryID {
		query += " WHERE jc.category_id = ?"
		args = append(args, categoryID)
	}

	var rows []jobRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(rows))
	for i := range rows {
		job, err := decodeJobRow(&rows[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return strings.ToLower(jobs[i].Name) < strings.ToLower(jobs[j].Name)
	})
	return jobs, nil
}

// Delete removes a job and its category link in one transaction.
func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE job_id = ?", r.tables.Jobs)), jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job %s: %w", jobID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE job_id = ?", r.tables.JobCategories)), jobID); err != nil {
		return fmt.Errorf("failed to delete job category link for %s: %w", jobID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// decodeJobRow unpacks the stored blob and overlays row-level fields.
func decodeJobRow(row *jobRow) (*domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal([]byte(row.State), &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", row.JobID, err)
	}

	job.ID = row.JobID
	job.CategoryID = row.CategoryID
	if row.NextRunTime != nil {
		utc := row.NextRunTime.UTC()
		job.NextRunTime = &utc
	} else {
		job.NextRunTime = nil
	}
	return &job, nil
}
