// Package config provides configuration management for the scheduler service.
// It handles loading, validation, and access to configuration values from both
// YAML files and environment variables using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the interface for configuration management.
type Interface interface {
	// GetServerConfig returns the HTTP server configuration.
	GetServerConfig() *ServerConfig
	// GetDatabaseConfig returns the database configuration.
	GetDatabaseConfig() *DatabaseConfig
	// GetSchedulerConfig returns the scheduler engine configuration.
	GetSchedulerConfig() *SchedulerConfig
	// GetAuthConfig returns the authentication configuration.
	GetAuthConfig() *AuthConfig
	// GetCoordinationConfig returns the leader election configuration.
	GetCoordinationConfig() *CoordinationConfig
	// GetLoggerConfig returns the logger configuration.
	GetLoggerConfig() *LoggerConfig
	// Validate validates the configuration.
	Validate() error
}

// Ensure Config implements Interface
var _ Interface = (*Config)(nil)

// Config represents the application configuration.
type Config struct {
	// Server holds HTTP server configuration
	Server *ServerConfig `yaml:"server"`
	// Database holds database configuration
	Database *DatabaseConfig `yaml:"database"`
	// Scheduler holds scheduler engine configuration
	Scheduler *SchedulerConfig `yaml:"scheduler"`
	// Auth holds authentication configuration
	Auth *AuthConfig `yaml:"auth"`
	// Coordination holds leader election configuration
	Coordination *CoordinationConfig `yaml:"coordination"`
	// Logger holds logger configuration
	Logger *LoggerConfig `yaml:"logger"`
}

// ServerConfig represents HTTP server configuration settings.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8888")
	Address string `yaml:"address"`
	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig represents database configuration settings. Driver selects
// between the postgres and sqlite backends.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file path for the sqlite driver.
	Path string `yaml:"path"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// Tables overrides the default table names.
	Tables TableNames `yaml:"tables"`
}

// TableNames holds the configurable table names.
type TableNames struct {
	Jobs          string `yaml:"jobs"`
	Executions    string `yaml:"executions"`
	AuditLogs     string `yaml:"audit_logs"`
	Users         string `yaml:"users"`
	Categories    string `yaml:"categories"`
	JobCategories string `yaml:"job_categories"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// SchedulerConfig represents scheduler engine configuration settings.
type SchedulerConfig struct {
	// ThreadPoolSize is the number of concurrent job executions.
	ThreadPoolSize int `yaml:"thread_pool_size"`
	// MaxInstances caps concurrently running executions per job.
	MaxInstances int `yaml:"max_instances"`
	// Coalesce collapses a backlog of missed firings into a single run.
	Coalesce bool `yaml:"coalesce"`
	// MisfireGraceTime is how late a firing may start before it is skipped.
	MisfireGraceTime time.Duration `yaml:"misfire_grace_time"`
	// Timezone is the IANA timezone name used to evaluate cron expressions.
	Timezone string `yaml:"timezone"`
	// TickInterval bounds how long the engine sleeps between wake-ups.
	TickInterval time.Duration `yaml:"tick_interval"`
}

// AuthConfig represents authentication configuration settings.
type AuthConfig struct {
	// JWTSecret signs and verifies session tokens.
	JWTSecret string `json:"-" yaml:"jwt_secret"`
	// TokenExpiry is how long an issued token stays valid.
	TokenExpiry time.Duration `yaml:"token_expiry"`
	// AdminUsername and AdminPassword seed the bootstrap admin account.
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `json:"-" yaml:"admin_password"`
}

// CoordinationConfig represents leader election configuration settings.
// When enabled, only the instance holding the Redis lease fires jobs and
// the others stand by warm.
type CoordinationConfig struct {
	Enabled bool `yaml:"enabled"`
	// RedisAddr is the host:port of the Redis server backing the election.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `json:"-" yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	// LeaderKey is the Redis key holding the leadership lease.
	LeaderKey string `yaml:"leader_key"`
	// LeaderTTL is the lease lifetime.
	LeaderTTL time.Duration `yaml:"leader_ttl"`
	// ElectionInterval is how often a standby retries the election.
	ElectionInterval time.Duration `yaml:"election_interval"`
}

// LoggerConfig represents logger configuration settings.
type LoggerConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database.host is required")
		}
		if c.Database.DBName == "" {
			return errors.New("database.dbname is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Scheduler.ThreadPoolSize <= 0 {
		return errors.New("scheduler.thread_pool_size must be positive")
	}
	if c.Scheduler.MaxInstances <= 0 {
		return errors.New("scheduler.max_instances must be positive")
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Coordination != nil && c.Coordination.Enabled {
		if c.Coordination.RedisAddr == "" {
			return errors.New("coordination.redis_addr is required when coordination is enabled")
		}
		if c.Coordination.LeaderKey == "" {
			return errors.New("coordination.leader_key is required when coordination is enabled")
		}
	}
	return nil
}

// Load builds the configuration from Viper. InitializeViper must be called
// first so defaults, config files and env bindings are in place.
func Load() (*Config, error) {
	cfg := &Config{
		Server: &ServerConfig{
			Address:      viper.GetString("server.address"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
			IdleTimeout:  viper.GetDuration("server.idle_timeout"),
		},
		Database: &DatabaseConfig{
			Driver:          viper.GetString("database.driver"),
			Host:            viper.GetString("database.host"),
			Port:            viper.GetString("database.port"),
			User:            viper.GetString("database.user"),
			Password:        viper.GetString("database.password"),
			DBName:          viper.GetString("database.dbname"),
			SSLMode:         viper.GetString("database.sslmode"),
			Path:            viper.GetString("database.path"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: viper.GetDuration("database.conn_max_lifetime"),
			Tables: TableNames{
				Jobs:          viper.GetString("database.tables.jobs"),
				Executions:    viper.GetString("database.tables.executions"),
				AuditLogs:     viper.GetString("database.tables.audit_logs"),
				Users:         viper.GetString("database.tables.users"),
				Categories:    viper.GetString("database.tables.categories"),
				JobCategories: viper.GetString("database.tables.job_categories"),
			},
		},
		Scheduler: &SchedulerConfig{
			ThreadPoolSize:   viper.GetInt("scheduler.thread_pool_size"),
			MaxInstances:     viper.GetInt("scheduler.max_instances"),
			Coalesce:         viper.GetBool("scheduler.coalesce"),
			MisfireGraceTime: viper.GetDuration("scheduler.misfire_grace_time"),
			Timezone:         viper.GetString("scheduler.timezone"),
			TickInterval:     viper.GetDuration("scheduler.tick_interval"),
		},
		Auth: &AuthConfig{
			JWTSecret:     viper.GetString("auth.jwt_secret"),
			TokenExpiry:   viper.GetDuration("auth.token_expiry"),
			AdminUsername: viper.GetString("auth.admin_username"),
			AdminPassword: viper.GetString("auth.admin_password"),
		},
		Coordination: &CoordinationConfig{
			Enabled:          viper.GetBool("coordination.enabled"),
			RedisAddr:        viper.GetString("coordination.redis_addr"),
			RedisPassword:    viper.GetString("coordination.redis_password"),
			RedisDB:          viper.GetInt("coordination.redis_db"),
			LeaderKey:        viper.GetString("coordination.leader_key"),
			LeaderTTL:        viper.GetDuration("coordination.leader_ttl"),
			ElectionInterval: viper.GetDuration("coordination.election_interval"),
		},
		Logger: &LoggerConfig{
			Level:       viper.GetString("logger.level"),
			Development: viper.GetBool("logger.development"),
			Encoding:    viper.GetString("logger.encoding"),
			OutputPaths: viper.GetStringSlice("logger.output_paths"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetServerConfig returns the HTTP server configuration.
func (c *Config) GetServerConfig() *ServerConfig {
	return c.Server
}

// GetDatabaseConfig returns the database configuration.
func (c *Config) GetDatabaseConfig() *DatabaseConfig {
	return c.Database
}

// GetSchedulerConfig returns the scheduler engine configuration.
func (c *Config) GetSchedulerConfig() *SchedulerConfig {
	return c.Scheduler
}

// GetAuthConfig returns the authentication configuration.
func (c *Config) GetAuthConfig() *AuthConfig {
	return c.Auth
}

// GetCoordinationConfig returns the leader election configuration.
func (c *Config) GetCoordinationConfig() *CoordinationConfig {
	return c.Coordination
}

// GetLoggerConfig returns the logger configuration.
func (c *Config) GetLoggerConfig() *LoggerConfig {
	return c.Logger
}
