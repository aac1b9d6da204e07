package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/domain"
)

// autoIncrementPK returns the driver-specific auto-increment primary key
// column definition.
func autoIncrementPK(driver string) string {
	if driver == config.DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Init creates tables idempotently and seeds the reserved "all" category.
// When adminPassword is non-empty, a bootstrap admin account is inserted
// unless the username already exists.
func (s *Store) Init(ctx context.Context, adminUsername, adminPassword string) error {
	if err := s.createTables(ctx); err != nil {
		return err
	}
	if err := s.seedCategories(ctx); err != nil {
		return err
	}
	if adminPassword != "" {
		if err := s.seedAdminUser(ctx, adminUsername, adminPassword); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createTables(ctx context.Context) error {
	pk := autoIncrementPK(s.db.DriverName())

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			job_id        TEXT PRIMARY KEY,
			next_run_time TIMESTAMP,
			state         TEXT NOT NULL
		)`, s.tables.Jobs),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			eid            TEXT PRIMARY KEY,
			job_id         TEXT NOT NULL,
			state          INTEGER NOT NULL,
			hostname       TEXT,
			pid            INTEGER,
			scheduled_time TIMESTAMP NOT NULL,
			updated_time   TIMESTAMP NOT NULL,
			description    TEXT,
			result         TEXT,
			category_id    BIGINT
		)`, s.tables.Executions),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			job_id       TEXT NOT NULL,
			job_name     TEXT NOT NULL,
			event        INTEGER NOT NULL,
			"user"       TEXT NOT NULL,
			category_id  BIGINT NOT NULL DEFAULT 0,
			created_time TIMESTAMP NOT NULL,
			description  TEXT
		)`, s.tables.AuditLogs),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            %s,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
			is_permission BOOLEAN NOT NULL DEFAULT TRUE,
			category_id   BIGINT NOT NULL DEFAULT 0,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)`, s.tables.Users, pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          %s,
			name        TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at  TIMESTAMP NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`, s.tables.Categories, pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			job_id      TEXT PRIMARY KEY,
			category_id BIGINT NOT NULL
		)`, s.tables.JobCategories),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// seedCategories inserts the reserved unscoped category. The row exists so
// foreign listings resolve a name for category 0, but it can never be
// modified or deleted through the repository.
func (s *Store) seedCategories(ctx context.Context) error {
	now := time.Now().UTC()
	query := s.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`, s.tables.Categories))

	_, err := s.db.ExecContext(ctx, query,
		domain.UnscopedCategoryID, "all", "All categories", now, now)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	return nil
}

func (s *Store) seedAdminUser(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap password: %w", err)
	}

	now := time.Now().UTC()
	query := s.db.Rebind(fmt.Sprintf(
		`INSERT INTO %s (username, password_hash, is_admin, is_permission, category_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`, s.tables.Users))

	_, err = s.db.ExecContext(ctx, query,
		username, string(hash), true, true, domain.UnscopedCategoryID, now, now)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	s.logger.Info("bootstrap admin user ensured", "username", username)
	return nil
}
