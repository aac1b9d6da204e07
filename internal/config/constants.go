// Package config provides configuration management for the scheduler service.
package config

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Default configuration values
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8888"

	// DefaultDatabaseDriver is the default database driver
	DefaultDatabaseDriver = DriverSQLite
	// DefaultDatabaseHost is the default postgres host
	DefaultDatabaseHost = "localhost"
	// DefaultDatabasePort is the default postgres port
	DefaultDatabasePort = "5432"
	// DefaultDatabaseUser is the default postgres user
	DefaultDatabaseUser = "postgres"
	// DefaultDatabaseName is the default postgres database name
	DefaultDatabaseName = "gosched"
	// DefaultDatabaseSSLMode is the default postgres SSL mode
	DefaultDatabaseSSLMode = "disable"
	// DefaultSQLitePath is the default sqlite database file
	DefaultSQLitePath = "datastore.db"

	// DefaultMaxOpenConns is the default maximum number of open connections
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 5

	// DefaultThreadPoolSize is the default number of concurrent job executions
	DefaultThreadPoolSize = 4
	// DefaultMaxInstances is the default per-job concurrent execution cap
	DefaultMaxInstances = 3
	// DefaultTimezone is the default timezone for cron evaluation
	DefaultTimezone = "UTC"

	// DefaultAdminUsername is the default bootstrap admin account name
	DefaultAdminUsername = "admin"

	// DefaultRedisAddr is the default Redis address for leader election
	DefaultRedisAddr = "localhost:6379"
	// DefaultLeaderKey is the default Redis key holding the leadership lease
	DefaultLeaderKey = "gosched:leader"
)

// Default table names
const (
	DefaultJobsTable          = "scheduler_jobs"
	DefaultExecutionsTable    = "scheduler_execution"
	DefaultAuditLogsTable     = "scheduler_jobauditlog"
	DefaultUsersTable         = "scheduler_users"
	DefaultCategoriesTable    = "scheduler_categories"
	DefaultJobCategoriesTable = "scheduler_job_categories"
)
