// Package store provides transactional persistence for jobs, executions,
// audit logs, users and categories.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/logger"
)

const (
	// DefaultPingTimeout is the default timeout for ping operations
	DefaultPingTimeout = 5 * time.Second
)

// Store bundles the database connection and its repositories.
type Store struct {
	db     *sqlx.DB
	tables config.TableNames
	logger logger.Interface

	Jobs       *JobRepository
	Executions *ExecutionRepository
	AuditLogs  *AuditLogRepository
	Users      *UserRepository
	Categories *CategoryRepository
}

// New opens a database connection for the configured driver and builds the
// repository set. Call Init before first use.
func New(cfg *config.DatabaseConfig, log logger.Interface) (*Store, error) {
	db, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		tables: cfg.Tables,
		logger: log,
	}
	s.Jobs = NewJobRepository(db, cfg.Tables)
	s.Executions = NewExecutionRepository(db, cfg.Tables)
	s.AuditLogs = NewAuditLogRepository(db, cfg.Tables)
	s.Users = NewUserRepository(db, cfg.Tables)
	s.Categories = NewCategoryRepository(db, cfg.Tables)

	return s, nil
}

// NewConnection creates a new database connection for the configured driver.
func NewConnection(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	if cfg.Driver == config.DriverSQLite {
		// The sqlite driver serializes writes through a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
