package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitializeViper initializes Viper configuration from environment variables
// and config files. This must be called before Load() so Viper is properly
// configured.
func InitializeViper() error {
	loadEnvFile()
	setupViper()
	setDefaults()
	readConfigFile()

	if err := bindEnvironmentVariables(); err != nil {
		return fmt.Errorf("failed to bind environment variables: %w", err)
	}

	setupDevelopmentLogging()
	return nil
}

// loadEnvFile loads .env file (ignores error if file doesn't exist).
func loadEnvFile() {
	_ = godotenv.Load()
}

// setupViper configures Viper for environment variable and config file reading.
func setupViper() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
}

// readConfigFile reads config file (ignores error if file doesn't exist).
func readConfigFile() {
	_ = viper.ReadInConfig()
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults - production safe
	viper.SetDefault("server", map[string]any{
		"address":       DefaultServerAddress,
		"read_timeout":  "15s",
		"write_timeout": "15s",
		"idle_timeout":  "60s",
	})

	// Logger defaults - production safe
	viper.SetDefault("logger", map[string]any{
		"level":        "info",
		"development":  false,
		"encoding":     "json",
		"output_paths": []string{"stdout"},
	})

	// Database defaults
	viper.SetDefault("database", map[string]any{
		"driver":            DefaultDatabaseDriver,
		"host":              DefaultDatabaseHost,
		"port":              DefaultDatabasePort,
		"user":              DefaultDatabaseUser,
		"dbname":            DefaultDatabaseName,
		"sslmode":           DefaultDatabaseSSLMode,
		"path":              DefaultSQLitePath,
		"max_open_conns":    DefaultMaxOpenConns,
		"max_idle_conns":    DefaultMaxIdleConns,
		"conn_max_lifetime": "5m",
		"tables": map[string]any{
			"jobs":           DefaultJobsTable,
			"executions":     DefaultExecutionsTable,
			"audit_logs":     DefaultAuditLogsTable,
			"users":          DefaultUsersTable,
			"categories":     DefaultCategoriesTable,
			"job_categories": DefaultJobCategoriesTable,
		},
	})

	// Scheduler defaults mirror a conservative production posture: missed
	// firings are coalesced and anything more than an hour late is skipped.
	viper.SetDefault("scheduler", map[string]any{
		"thread_pool_size":   DefaultThreadPoolSize,
		"max_instances":      DefaultMaxInstances,
		"coalesce":           true,
		"misfire_grace_time": "1h",
		"timezone":           DefaultTimezone,
		"tick_interval":      "1m",
	})

	// Auth defaults
	viper.SetDefault("auth", map[string]any{
		"token_expiry":   "24h",
		"admin_username": DefaultAdminUsername,
	})

	// Coordination defaults. Leader election is opt-in; single-node
	// deployments run without Redis.
	viper.SetDefault("coordination", map[string]any{
		"enabled":           false,
		"redis_addr":        DefaultRedisAddr,
		"redis_db":          0,
		"leader_key":        DefaultLeaderKey,
		"leader_ttl":        "30s",
		"election_interval": "5s",
	})
}

// bindEnvironmentVariables binds all environment variables to config keys.
func bindEnvironmentVariables() error {
	if err := bindAppEnvVars(); err != nil {
		return fmt.Errorf("failed to bind app env vars: %w", err)
	}
	if err := bindDatabaseEnvVars(); err != nil {
		return fmt.Errorf("failed to bind database env vars: %w", err)
	}
	if err := bindAuthEnvVars(); err != nil {
		return fmt.Errorf("failed to bind auth env vars: %w", err)
	}
	if err := bindCoordinationEnvVars(); err != nil {
		return fmt.Errorf("failed to bind coordination env vars: %w", err)
	}
	return nil
}

// bindCoordinationEnvVars binds leader election environment variables to
// config keys.
func bindCoordinationEnvVars() error {
	if err := viper.BindEnv("coordination.enabled", "SCHEDULER_COORDINATION_ENABLED"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_COORDINATION_ENABLED: %w", err)
	}
	if err := viper.BindEnv("coordination.redis_addr", "REDIS_ADDR"); err != nil {
		return fmt.Errorf("failed to bind REDIS_ADDR: %w", err)
	}
	if err := viper.BindEnv("coordination.redis_password", "REDIS_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind REDIS_PASSWORD: %w", err)
	}
	return nil
}

// bindAppEnvVars binds application and logger environment variables to config keys.
func bindAppEnvVars() error {
	if err := viper.BindEnv("logger.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logger.encoding", "LOG_FORMAT"); err != nil {
		return fmt.Errorf("failed to bind LOG_FORMAT: %w", err)
	}
	if err := viper.BindEnv("server.address", "SCHEDULER_SERVER_ADDRESS"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_SERVER_ADDRESS: %w", err)
	}
	if err := viper.BindEnv("scheduler.timezone", "SCHEDULER_TIMEZONE"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_TIMEZONE: %w", err)
	}
	return nil
}

// bindDatabaseEnvVars binds database environment variables to config keys.
func bindDatabaseEnvVars() error {
	if err := viper.BindEnv("database.driver", "DB_DRIVER"); err != nil {
		return fmt.Errorf("failed to bind DB_DRIVER: %w", err)
	}
	if err := viper.BindEnv("database.host", "DB_HOST"); err != nil {
		return fmt.Errorf("failed to bind DB_HOST: %w", err)
	}
	if err := viper.BindEnv("database.port", "DB_PORT"); err != nil {
		return fmt.Errorf("failed to bind DB_PORT: %w", err)
	}
	if err := viper.BindEnv("database.user", "DB_USER"); err != nil {
		return fmt.Errorf("failed to bind DB_USER: %w", err)
	}
	if err := viper.BindEnv("database.password", "DB_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind DB_PASSWORD: %w", err)
	}
	if err := viper.BindEnv("database.dbname", "DB_NAME"); err != nil {
		return fmt.Errorf("failed to bind DB_NAME: %w", err)
	}
	if err := viper.BindEnv("database.sslmode", "DB_SSLMODE"); err != nil {
		return fmt.Errorf("failed to bind DB_SSLMODE: %w", err)
	}
	if err := viper.BindEnv("database.path", "DB_PATH"); err != nil {
		return fmt.Errorf("failed to bind DB_PATH: %w", err)
	}
	return nil
}

// bindAuthEnvVars binds authentication environment variables to config keys.
func bindAuthEnvVars() error {
	if err := viper.BindEnv("auth.jwt_secret", "SCHEDULER_JWT_SECRET"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_JWT_SECRET: %w", err)
	}
	if err := viper.BindEnv("auth.token_expiry", "SCHEDULER_TOKEN_EXPIRY"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_TOKEN_EXPIRY: %w", err)
	}
	if err := viper.BindEnv("auth.admin_username", "SCHEDULER_ADMIN_USER"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_ADMIN_USER: %w", err)
	}
	if err := viper.BindEnv("auth.admin_password", "SCHEDULER_ADMIN_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind SCHEDULER_ADMIN_PASSWORD: %w", err)
	}
	return nil
}

// setupDevelopmentLogging configures logging settings based on environment variables.
// It separates concerns: debug level (controlled by APP_DEBUG) vs development
// formatting (controlled by APP_ENV).
func setupDevelopmentLogging() {
	debugFlag := viper.GetBool("app.debug")
	isDev := viper.GetString("app.env") == "development"

	// Always set debug level when APP_DEBUG=true, regardless of environment.
	// This allows enabling debug logs in production for troubleshooting.
	if debugFlag {
		viper.Set("logger.level", "debug")
	}

	// Development formatting is separate from log level.
	if isDev {
		viper.Set("logger.development", true)
		viper.Set("logger.encoding", "console")
	}
}
