// Package serve runs the scheduler engine and its HTTP control plane.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gosched/internal/api"
	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/coordination"
	"github.com/jonesrussell/gosched/internal/jobs"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/metrics"
	"github.com/jonesrussell/gosched/internal/registry"
	"github.com/jonesrussell/gosched/internal/schedule"
	"github.com/jonesrussell/gosched/internal/scheduler"
	"github.com/jonesrussell/gosched/internal/store"
	"github.com/jonesrussell/gosched/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// Command creates the serve command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:       logger.Level(cfg.Logger.Level),
		Development: cfg.Logger.Development,
		Encoding:    cfg.Logger.Encoding,
		OutputPaths: cfg.Logger.OutputPaths,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.New(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("failed to close store", "error", closeErr)
		}
	}()

	if err := st.Init(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	reg := registry.New()
	if err := jobs.RegisterBuiltins(reg); err != nil {
		return fmt.Errorf("failed to register job classes: %w", err)
	}

	eval, err := schedule.New(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("failed to create schedule evaluator: %w", err)
	}

	pool, err := worker.NewPool(cfg.Scheduler.ThreadPoolSize, log)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}

	var elector *coordination.LeaderElection
	if cfg.Coordination.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Coordination.RedisAddr,
			Password: cfg.Coordination.RedisPassword,
			DB:       cfg.Coordination.RedisDB,
		})
		elector, err = coordination.NewLeaderElection(client, coordination.LeaderConfig{
			Key:              cfg.Coordination.LeaderKey,
			TTL:              cfg.Coordination.LeaderTTL,
			ElectionInterval: cfg.Coordination.ElectionInterval,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create leader election: %w", err)
		}
	}

	m := metrics.New()

	deps := scheduler.Deps{
		Jobs:       st.Jobs,
		Executions: st.Executions,
		AuditLogs:  st.AuditLogs,
		Categories: st.Categories,
		Registry:   reg,
		Evaluator:  eval,
		Pool:       pool,
		Logger:     log,
		Config:     cfg.Scheduler,
		Metrics:    m,
	}
	if elector != nil {
		deps.OkayToRun = elector.OkayToRun
	}

	engine, err := scheduler.New(deps)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	authManager, err := auth.NewManager(cfg.Auth, st.Users, log)
	if err != nil {
		return fmt.Errorf("failed to create auth manager: %w", err)
	}

	server := api.NewServer(api.Deps{
		Config:     cfg,
		Logger:     log,
		Auth:       authManager,
		Engine:     engine,
		Executions: st.Executions,
		AuditLogs:  st.AuditLogs,
		Categories: st.Categories,
		Users:      st.Users,
		Registry:   reg,
		Metrics:    m,
	})

	if elector != nil {
		elector.Start(ctx)
	}

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-stop:
		log.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := engine.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	if elector != nil {
		if err := elector.Stop(shutdownCtx); err != nil {
			log.Error("failed to release leadership", "error", err)
		}
	}
	return nil
}
