package store_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/store"
)

func defaultTables() config.TableNames {
	return config.TableNames{
		Jobs:          config.DefaultJobsTable,
		Executions:    config.DefaultExecutionsTable,
		AuditLogs:     config.DefaultAuditLogsTable,
		Users:         config.DefaultUsersTable,
		Categories:    config.DefaultCategoriesTable,
		JobCategories: config.DefaultJobCategoriesTable,
	}
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func TestExecutionRepository_Add(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	scheduled := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	category := int64(7)

	mock.ExpectExec("INSERT INTO scheduler_execution").
		WithArgs(
			"e1", "j1", int(domain.ExecutionScheduled),
			nil, nil,
			scheduled, scheduled,
			nil, nil,
			&category,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Add(ctx, &domain.Execution{
		ID:            "e1",
		JobID:         "j1",
		State:         domain.ExecutionScheduled,
		ScheduledTime: scheduled,
		UpdatedTime:   scheduled,
		CategoryID:    &category,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// timeAtOrAfter matches a time argument at or after a lower bound.
type timeAtOrAfter struct{ min time.Time }

func (m timeAtOrAfter) Match(v driver.Value) bool {
	ts, ok := v.(time.Time)
	return ok && !ts.Before(m.min)
}

func TestExecutionRepository_AddStampsZeroUpdatedTime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	scheduled := time.Now().UTC().Add(-time.Minute)

	mock.ExpectExec("INSERT INTO scheduler_execution").
		WithArgs(
			"e1", "j1", int(domain.ExecutionScheduled),
			nil, nil,
			scheduled, timeAtOrAfter{min: scheduled},
			nil, nil,
			nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	execution := &domain.Execution{
		ID:            "e1",
		JobID:         "j1",
		State:         domain.ExecutionScheduled,
		ScheduledTime: scheduled,
	}
	require.NoError(t, repo.Add(ctx, execution))
	require.NoError(t, mock.ExpectationsWereMet())

	// The caller's copy carries the stamp so its row sorts correctly.
	assert.False(t, execution.UpdatedTime.IsZero())
	assert.False(t, execution.UpdatedTime.Before(scheduled))
}

func TestExecutionRepository_AddWritesNullForUnscopedCategory(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	zero := int64(0)
	scheduled := time.Now().UTC()

	mock.ExpectExec("INSERT INTO scheduler_execution").
		WithArgs(
			"e1", "j1", int(domain.ExecutionScheduled),
			nil, nil,
			scheduled, scheduled,
			nil, nil,
			nil,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Add(ctx, &domain.Execution{
		ID:            "e1",
		JobID:         "j1",
		State:         domain.ExecutionScheduled,
		ScheduledTime: scheduled,
		UpdatedTime:   scheduled,
		CategoryID:    &zero,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_UpdateState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	running := domain.ExecutionRunning
	hostname := "worker-1"
	pid := 4242

	mock.ExpectExec("UPDATE scheduler_execution SET").
		WithArgs(sqlmock.AnyArg(), int(running), hostname, pid, "e1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(ctx, "e1", store.ExecutionUpdate{
		State:    &running,
		Hostname: &hostname,
		PID:      &pid,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionRepository_UpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	succeeded := domain.ExecutionSucceeded

	mock.ExpectExec("UPDATE scheduler_execution SET").
		WithArgs(sqlmock.AnyArg(), int(succeeded), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(ctx, "gone", store.ExecutionUpdate{State: &succeeded})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecutionRepository_GetByIDMissingReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM scheduler_execution").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"eid"}))

	execution, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, execution)
}

func TestExecutionRepository_ListInRangeScoped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	legacyZero := int64(0)

	rows := sqlmock.NewRows([]string{
		"eid", "job_id", "state", "hostname", "pid",
		"scheduled_time", "updated_time", "description", "result", "category_id",
	}).
		AddRow("e2", "j1", int(domain.ExecutionSucceeded), nil, nil,
			start.Add(30*time.Minute), start.Add(31*time.Minute), nil, nil, legacyZero).
		AddRow("e1", "j1", int(domain.ExecutionFailed), nil, nil,
			start.Add(10*time.Minute), start.Add(11*time.Minute), nil, nil, int64(7))

	mock.ExpectQuery("SELECT (.+) FROM scheduler_execution WHERE scheduled_time >= (.+) AND category_id =").
		WithArgs(start, end, int64(7)).
		WillReturnRows(rows)

	executions, err := repo.ListInRange(ctx, start, end, 7)
	require.NoError(t, err)
	require.Len(t, executions, 2)

	// Legacy 0 category folds to nil on read.
	assert.Nil(t, executions[0].CategoryID)
	require.NotNil(t, executions[1].CategoryID)
	assert.Equal(t, int64(7), *executions[1].CategoryID)
}

func TestExecutionRepository_ListInRangeUnscopedHasNoCategoryFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := store.NewExecutionRepository(db, defaultTables())
	ctx := context.Background()

	start := time.Now().Add(-10 * time.Minute).UTC()
	end := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM scheduler_execution WHERE scheduled_time >= (.+) ORDER BY updated_time DESC").
		WithArgs(start, end).
		WillReturnRows(sqlmock.NewRows([]string{"eid"}))

	executions, err := repo.ListInRange(ctx, start, end, domain.UnscopedCategoryID)
	require.NoError(t, err)
	assert.Empty(t, executions)
	require.NoError(t, mock.ExpectationsWereMet())
}
