package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// AuditLogRepository handles the append-only audit trail. Rows are never
// updated or deleted here; the single exception is the ADDED-row category
// back-fill owned by CategoryRepository.SetJobCategory.
type AuditLogRepository struct {
	db     *sqlx.DB
	tables config.TableNames
}

// NewAuditLogRepository creates a new audit log repository.
func NewAuditLogRepository(db *sqlx.DB, tables config.TableNames) *AuditLogRepository {
	return &AuditLogRepository{db: db, tables: tables}
}

// Add appends an audit row.
func (r *AuditLogRepository) Add(ctx context.Context, log *domain.AuditLog) error {
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (job_id, job_name, event, "user", category_id, created_time, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.tables.AuditLogs))

	createdTime := log.CreatedTime
	if createdTime.IsZero() {
		createdTime = time.Now()
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		log.JobID,
		log.JobName,
		int(log.Event),
		log.User,
		log.CategoryID,
		createdTime.UTC(),
		log.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to add audit log: %w", err)
	}
	return nil
}

// ListInRange returns audit rows whose created_time falls within
// [start, end], newest first, filtered to the category when categoryID is
// non-zero.
func (r *AuditLogRepository) ListInRange(
	ctx context.Context,
	start, end time.Time,
	categoryID int64,
) ([]*domain.AuditLog, error) {
	query := fmt.Sprintf(`
		SELECT job_id, job_name, event, "user", category_id, created_time, description
		FROM %s
		WHERE created_time >= ? AND created_time <= ?
	`, r.tables.AuditLogs)

	args := []any{start.UTC(), end.UTC()}
	if categoryID != domain.UnscopedCategoryID {
		query += " AND category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY created_time DESC"

	var logs []*domain.AuditLog
	if err := r.db.SelectContext(ctx, &logs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	for _, l := range logs {
		l.CreatedTime = l.CreatedTime.UTC()
	}
	return logs, nil
}
