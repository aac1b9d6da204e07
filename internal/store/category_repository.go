package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// CategoryRepository handles categories and the job-category mapping.
// Category 0 is a reserved sentinel meaning "all"; mutations against it are
// rejected.
type CategoryRepository struct {
	db     *sqlx.DB
	tables config.TableNames
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sqlx.DB, tables config.TableNames) *CategoryRepository {
	return &CategoryRepository{db: db, tables: tables}
}

// Add inserts a new category and sets its generated id.
func (r *CategoryRepository) Add(ctx context.Context, category *domain.Category) error {
	now := time.Now().UTC()
	category.CreatedAt = now
	category.UpdatedAt = now

	if r.db.DriverName() == config.DriverPostgres {
		query := r.db.Rebind(fmt.Sprintf(`
			INSERT INTO %s (name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`, r.tables.Categories))

		err := r.db.QueryRowxContext(ctx, query,
			category.Name, category.Description, category.CreatedAt, category.UpdatedAt,
		).Scan(&category.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("category %s: %w", category.Name, ErrDuplicate)
			}
			return fmt.Errorf("failed to add category: %w", err)
		}
		return nil
	}

	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, r.tables.Categories))

	result, err := r.db.ExecContext(ctx, query,
		category.Name, category.Description, category.CreatedAt, category.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %s: %w", category.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to add category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted category id: %w", err)
	}
	category.ID = id
	return nil
}

// GetByID retrieves a category by id. Returns nil without error when no row
// exists.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, name, description, created_at, updated_at
		FROM %s
		WHERE id = ?
	`, r.tables.Categories))

	var category domain.Category
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := fmt.Sprintf(`
		SELECT id, name, description, created_at, updated_at
		FROM %s
		ORDER BY name
	`, r.tables.Categories)

	var categories []*domain.Category
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	if categories == nil {
		categories = []*domain.Category{}
	}
	return categories, nil
}

// Update rewrites a category's name and description.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.Category) error {
	if category.ID == domain.UnscopedCategoryID {
		return ErrReservedCategory
	}
	category.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET name = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, r.tables.Categories))

	result, err := r.db.ExecContext(ctx, query,
		category.Name, category.Description, category.UpdatedAt, category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %s: %w", category.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to update category: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", category.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a category and any job links pointing at it.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	if id == domain.UnscopedCategoryID {
		return ErrReservedCategory
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.tables.Categories)), id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE category_id = ?", r.tables.JobCategories)), id); err != nil {
		return fmt.Errorf("failed to delete job links for category %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetJobCategory replaces the job's category link and back-fills the latest
// ADDED audit row so its category_id matches the link. Both writes happen in
// one transaction. Linking to category 0 removes the link.
func (r *CategoryRepository) SetJobCategory(ctx context.Context, jobID string, categoryID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE job_id = ?", r.tables.JobCategories)), jobID); err != nil {
		return fmt.Errorf("failed to clear job category link: %w", err)
	}

	if categoryID != domain.UnscopedCategoryID {
		if _, err := tx.ExecContext(ctx,
			r.db.Rebind(fmt.Sprintf(
				"INSERT INTO %s (job_id, category_id) VALUES (?, ?)", r.tables.JobCategories)),
			jobID, categoryID); err != nil {
			return fmt.Errorf("failed to link job %s to category %d: %w", jobID, categoryID, err)
		}
	}

	backfill := r.db.Rebind(fmt.Sprintf(`
		UPDATE %[1]s
		SET category_id = ?
		WHERE job_id = ? AND event = ? AND created_time = (
			SELECT MAX(created_time) FROM %[1]s WHERE job_id = ? AND event = ?
		)
	`, r.tables.AuditLogs))

	if _, err := tx.ExecContext(ctx, backfill,
		categoryID, jobID, int(domain.AuditAdded), jobID, int(domain.AuditAdded)); err != nil {
		return fmt.Errorf("failed to back-fill audit category for job %s: %w", jobID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetJobCategoryID returns the job's linked category, 0 when unlinked.
func (r *CategoryRepository) GetJobCategoryID(ctx context.Context, jobID string) (int64, error) {
	query := r.db.Rebind(fmt.Sprintf(
		"SELECT category_id FROM %s WHERE job_id = ?", r.tables.JobCategories))

	var categoryID int64
	if err := r.db.GetContext(ctx, &categoryID, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UnscopedCategoryID, nil
		}
		return 0, fmt.Errorf("failed to get job category: %w", err)
	}
	return categoryID, nil
}
