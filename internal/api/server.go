// Package api implements the HTTP control plane: auth, job CRUD, execution
// and audit listings, category and user management.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/config"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/metrics"
	"github.com/jonesrussell/gosched/internal/registry"
)

const readHeaderTimeout = 10 * time.Second

// Deps bundles everything the router needs.
type Deps struct {
	Config     config.Interface
	Logger     logger.Interface
	Auth       *auth.Manager
	Engine     JobEngine
	Executions ExecutionReader
	AuditLogs  AuditReader
	Categories CategoryStore
	Users      UserStore
	Registry   *registry.Registry
	Metrics    *metrics.Metrics
}

// Server owns the HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     logger.Interface
}

// NewServer builds the router and binds it to the configured address.
func NewServer(deps Deps) *Server {
	router := SetupRouter(deps)
	serverCfg := deps.Config.GetServerConfig()

	return &Server{
		logger: deps.Logger,
		httpServer: &http.Server{
			Addr:              serverCfg.Address,
			Handler:           router,
			ReadTimeout:       serverCfg.ReadTimeout,
			WriteTimeout:      serverCfg.WriteTimeout,
			IdleTimeout:       serverCfg.IdleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "address", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(deps.Logger))
	router.Use(corsMiddleware())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	jobsHandler := NewJobsHandler(deps.Engine, deps.Registry, deps.Logger)
	executionsHandler := NewExecutionsHandler(deps.Engine, deps.Executions, deps.Logger)
	logsHandler := NewLogsHandler(deps.AuditLogs, deps.Logger)
	categoriesHandler := NewCategoriesHandler(deps.Categories, deps.Logger)
	usersHandler := NewUsersHandler(deps.Users, deps.Logger)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/login", authHandler.Login)

	protected := v1.Group("", deps.Auth.RequireAuth())
	{
		protected.GET("/auth/verify", authHandler.Verify)
		protected.GET("/metainfo", jobsHandler.MetaInfo)

		protected.GET("/jobs", jobsHandler.List)
		protected.GET("/jobs/:id", jobsHandler.Get)
		protected.POST("/jobs", jobsHandler.Create)
		protected.PUT("/jobs/:id", jobsHandler.Modify)
		protected.DELETE("/jobs/:id", jobsHandler.Delete)
		protected.PATCH("/jobs/:id", jobsHandler.Pause)
		protected.OPTIONS("/jobs/:id", jobsHandler.Resume)

		protected.POST("/executions/:id", executionsHandler.Run)
		protected.GET("/executions", executionsHandler.List)
		protected.GET("/executions/:id", executionsHandler.Get)

		protected.GET("/logs", logsHandler.List)

		protected.GET("/categories", categoriesHandler.List)
		protected.GET("/categories/:id", categoriesHandler.Get)
		protected.GET("/users/current", usersHandler.Current)
	}

	admin := protected.Group("", deps.Auth.RequireAdmin())
	{
		admin.POST("/categories", categoriesHandler.Create)
		admin.PUT("/categories/:id", categoriesHandler.Update)
		admin.DELETE("/categories/:id", categoriesHandler.Delete)

		admin.GET("/users", usersHandler.List)
		admin.GET("/users/:id", usersHandler.Get)
		admin.POST("/users", usersHandler.Create)
		admin.PUT("/users/:id", usersHandler.Update)
		admin.DELETE("/users/:id", usersHandler.Delete)
	}

	return router
}

// loggingMiddleware logs every request with latency and status.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("http request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// corsMiddleware adds CORS headers for the dashboard frontend. OPTIONS on
// /api/v1/jobs/:id is a resume request, not a preflight, so only requests
// carrying Access-Control-Request-Method short-circuit.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions &&
			c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
