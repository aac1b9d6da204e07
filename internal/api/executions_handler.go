package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/logger"
	"github.com/jonesrussell/gosched/internal/scheduler"
)

// ExecutionsHandler serves manual runs and execution listings.
type ExecutionsHandler struct {
	engine     JobEngine
	executions ExecutionReader
	logger     logger.Interface
}

// NewExecutionsHandler creates an executions handler.
func NewExecutionsHandler(engine JobEngine, executions ExecutionReader, log logger.Interface) *ExecutionsHandler {
	return &ExecutionsHandler{engine: engine, executions: executions, logger: log}
}

// Run handles POST /api/v1/executions/:id, firing the job immediately.
func (h *ExecutionsHandler) Run(c *gin.Context) {
	jobID := c.Param("id")
	eid, err := h.engine.RunJob(c.Request.Context(), jobID, actorFrom(c))
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error("failed to run job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to run job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"execution_id": eid})
}

// List handles GET /api/v1/executions; the default range is the last ten
// minutes.
func (h *ExecutionsHandler) List(c *gin.Context) {
	start, end, err := timeRange(c, defaultExecutionWindow)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	executions, err := h.executions.ListInRange(c.Request.Context(), start, end, scopeFrom(c))
	if err != nil {
		h.logger.Error("failed to list executions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list executions"})
		return
	}

	h.attachJobSummaries(c, executions)
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

// Get handles GET /api/v1/executions/:id.
func (h *ExecutionsHandler) Get(c *gin.Context) {
	id := c.Param("id")
	execution, err := h.executions.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to load execution", "execution_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load execution"})
		return
	}
	if execution == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "execution not found"})
		return
	}

	h.attachJobSummaries(c, []*domain.Execution{execution})
	c.JSON(http.StatusOK, execution)
}

// attachJobSummaries embeds the owning job's declaration into each row so
// listings are self-describing. Rows for deleted jobs keep a nil summary.
func (h *ExecutionsHandler) attachJobSummaries(c *gin.Context, executions []*domain.Execution) {
	summaries := make(map[string]*domain.JobSummary)
	for _, execution := range executions {
		summary, seen := summaries[execution.JobID]
		if !seen {
			job, err := h.engine.GetJob(c.Request.Context(), execution.JobID)
			if err == nil {
				summary = &domain.JobSummary{
					JobID:          job.ID,
					Name:           job.Name,
					JobClassString: job.JobClassString,
					PubArgs:        job.PubArgs,
					Trigger:        job.Trigger,
				}
			}
			summaries[execution.JobID] = summary
		}
		execution.Job = summary
	}
}
