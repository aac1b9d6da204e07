package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/registry"
	"github.com/jonesrussell/gosched/internal/scheduler"
)

// JobsHandler serves job CRUD, pause/resume and class metainfo.
type JobsHandler struct {
	engine   JobEngine
	registry *registry.Registry
	logger   logger.Interface
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(engine JobEngine, reg *registry.Registry, log logger.Interface) *JobsHandler {
	return &JobsHandler{engine: engine, registry: reg, logger: log}
}

// List handles GET /api/v1/jobs, scoped to the caller's category.
func (h *JobsHandler) List(c *gin.Context) {
	jobs, err := h.engine.ListJobs(c.Request.Context(), scopeFrom(c))
	if err != nil {
		h.logger.Error("failed to list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Get handles GET /api/v1/jobs/:id.
func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.engine.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("failed to load job", "job_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Create handles POST /api/v1/jobs.
func (h *JobsHandler) Create(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, err := h.engine.AddJob(c.Request.Context(), jobParamsFrom(req), actorFrom(c))
	if err != nil {
		if errors.Is(err, scheduler.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to create job", "name", req.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job_id": id})
}

// Modify handles PUT /api/v1/jobs/:id.
func (h *JobsHandler) Modify(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id := c.Param("id")
	err := h.engine.ModifyJob(c.Request.Context(), id, jobParamsFrom(req), actorFrom(c))
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
		case errors.Is(err, scheduler.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to modify job", "job_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to modify job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id})
}

// Delete handles DELETE /api/v1/jobs/:id.
func (h *JobsHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RemoveJob(c.Request.Context(), id, actorFrom(c)); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("failed to delete job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id})
}

// Pause handles PATCH /api/v1/jobs/:id.
func (h *JobsHandler) Pause(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.PauseJob(c.Request.Context(), id, actorFrom(c)); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("failed to pause job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pause job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id})
}

// Resume handles OPTIONS /api/v1/jobs/:id.
func (h *JobsHandler) Resume(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.ResumeJob(c.Request.Context(), id, actorFrom(c)); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrJobNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
		case errors.Is(err, scheduler.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("failed to resume job", "job_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resume job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id})
}

// MetaInfo handles GET /api/v1/metainfo, listing the registered job classes.
func (h *JobsHandler) MetaInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.registry.MetaInfo()})
}

func jobParamsFrom(req JobRequest) scheduler.JobParams {
	return scheduler.JobParams{
		Name:           req.Name,
		JobClassString: req.JobClassString,
		PubArgs:        req.PubArgs,
		Trigger:        triggerFrom(req),
	}
}
