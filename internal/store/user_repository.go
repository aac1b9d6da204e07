package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// UserRepository handles database operations for operator accounts.
type UserRepository struct {
	db     *sqlx.DB
	tables config.TableNames
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB, tables config.TableNames) *UserRepository {
	return &UserRepository{db: db, tables: tables}
}

// Add inserts a new user and sets its generated id. PasswordHash must
// already be bcrypt-hashed.
func (r *UserRepository) Add(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if r.db.DriverName() == config.DriverPostgres {
		query := r.db.Rebind(fmt.Sprintf(`
			INSERT INTO %s (username, password_hash, is_admin, is_permission, category_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`, r.tables.Users))

		err := r.db.QueryRowxContext(ctx, query,
			user.Username, user.PasswordHash, user.IsAdmin, user.IsPermission,
			user.CategoryID, user.CreatedAt, user.UpdatedAt,
		).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("username %s: %w", user.Username, ErrDuplicate)
			}
			return fmt.Errorf("failed to add user: %w", err)
		}
		return nil
	}

	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (username, password_hash, is_admin, is_permission, category_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.tables.Users))

	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.IsAdmin, user.IsPermission,
		user.CategoryID, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to add user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by id. Returns nil without error when no row
// exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, username, password_hash, is_admin, is_permission, category_id, created_at, updated_at
		FROM %s
		WHERE id = ?
	`, r.tables.Users))

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username. Returns nil without error when
// no row exists.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, username, password_hash, is_admin, is_permission, category_id, created_at, updated_at
		FROM %s
		WHERE username = ?
	`, r.tables.Users))

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, is_admin, is_permission, category_id, created_at, updated_at
		FROM %s
		ORDER BY username
	`, r.tables.Users)

	var users []*domain.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	if users == nil {
		users = []*domain.User{}
	}
	return users, nil
}

// Update rewrites a user's mutable fields.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET username = ?, password_hash = ?, is_admin = ?, is_permission = ?, category_id = ?, updated_at = ?
		WHERE id = ?
	`, r.tables.Users))

	result, err := r.db.ExecContext(ctx, query,
		user.Username, user.PasswordHash, user.IsAdmin, user.IsPermission,
		user.CategoryID, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %s: %w", user.Username, ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", user.ID, ErrNotFound)
	}
	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", r.tables.Users))

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// Exists reports whether a username is present.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := r.db.Rebind(fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE username = ?", r.tables.Users))

	var count int
	if err := r.db.GetContext(ctx, &count, query, username); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// VerifyPassword checks a plaintext password against the stored bcrypt hash.
// Returns the user on success, nil when the user is missing or the password
// does not match.
func (r *UserRepository) VerifyPassword(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := r.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return user, nil
}
