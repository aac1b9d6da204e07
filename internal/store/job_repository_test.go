package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/store"
)

func encodeJob(t *testing.T, job *domain.Job) string {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return string(data)
}

func TestJobRepository_Save(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	next := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &domain.Job{
		ID:             "abc123",
		Name:           "nightly",
		JobClassString: "jobs.echo",
		PubArgs:        domain.JSONList{"hi"},
		Trigger:        domain.CronFields{Minute: "0", Hour: "2"},
		NextRunTime:    &next,
		Runnable:       true,
	}

	mock.ExpectExec("INSERT INTO scheduler_jobs").
		WithArgs("abc123", &next, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Save(ctx, job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	next := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	state := encodeJob(t, &domain.Job{
		ID:             "abc123",
		Name:           "nightly",
		JobClassString: "jobs.echo",
		PubArgs:        domain.JSONList{"hi"},
		Trigger:        domain.CronFields{Minute: "0", Hour: "2"},
		Runnable:       true,
	})

	mock.ExpectQuery("SELECT (.+) FROM scheduler_jobs").
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "next_run_time", "state", "category_id"}).
			AddRow("abc123", next, state, int64(7)))

	job, err := repo.GetByID(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, job)

	assert.Equal(t, "nightly", job.Name)
	assert.Equal(t, "jobs.echo", job.JobClassString)
	assert.Equal(t, domain.JSONList{"hi"}, job.PubArgs)
	assert.Equal(t, int64(7), job.CategoryID)
	require.NotNil(t, job.NextRunTime)
	assert.Equal(t, next, job.NextRunTime.UTC())
}

func TestJobRepository_GetByIDMissingReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM scheduler_jobs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"job_id"}))

	job, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobRepository_ListOrdersCaseInsensitively(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"job_id", "next_run_time", "state", "category_id"}).
		AddRow("j1", nil, encodeJob(t, &domain.Job{ID: "j1", Name: "Zeta"}), int64(0)).
		AddRow("j2", nil, encodeJob(t, &domain.Job{ID: "j2", Name: "alpha"}), int64(0)).
		AddRow("j3", nil, encodeJob(t, &domain.Job{ID: "j3", Name: "Beta"}), int64(0))

	mock.ExpectQuery("SELECT (.+) FROM scheduler_jobs").
		WillReturnRows(rows)

	jobs, err := repo.List(ctx, domain.UnscopedCategoryID)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, "alpha", jobs[0].Name)
	assert.Equal(t, "Beta", jobs[1].Name)
	assert.Equal(t, "Zeta", jobs[2].Name)
}

func TestJobRepository_ListScopedFiltersByCategory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM scheduler_jobs (.+) WHERE jc.category_id =").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "next_run_time", "state", "category_id"}).
			AddRow("j1", nil, encodeJob(t, &domain.Job{ID: "j1", Name: "scoped"}), int64(7)))

	jobs, err := repo.List(ctx, 7)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(7), jobs[0].CategoryID)
}

func TestJobRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scheduler_jobs").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM scheduler_job_categories").
		WithArgs("abc123").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(ctx, "abc123"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobRepository_DeleteMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewJobRepository(db, defaultTables())
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scheduler_jobs").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
