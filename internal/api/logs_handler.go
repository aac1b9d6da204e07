package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/logger"
)

// LogsHandler serves the audit log listing.
type LogsHandler struct {
	auditLogs AuditReader
	logger    logger.Interface
}

// NewLogsHandler creates a logs handler.
func NewLogsHandler(auditLogs AuditReader, log logger.Interface) *LogsHandler {
	return &LogsHandler{auditLogs: auditLogs, logger: log}
}

// List handles GET /api/v1/logs; the default range is the last 24 hours.
func (h *LogsHandler) List(c *gin.Context) {
	start, end, err := timeRange(c, defaultAuditWindow)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, err := h.auditLogs.ListInRange(c.Request.Context(), start, end, scopeFrom(c))
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": len(logs)})
}
