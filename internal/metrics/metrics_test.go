package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gosched/internal/metrics"
)

func TestRecordExecutionAppearsInExposition(t *testing.T) {
	m := metrics.New()
	m.RecordExecution("succeeded", "jobs.echo", 42*time.Millisecond)
	m.RecordExecution("failed", "jobs.echo", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `scheduler_executions_total{state="succeeded"} 1`)
	assert.Contains(t, body, `scheduler_executions_total{state="failed"} 1`)
	assert.Contains(t, body, `scheduler_execution_duration_seconds_count{job_class="jobs.echo"} 2`)
}

func TestGinMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/v1/jobs/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/abc123", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/v1/jobs/:id"`)
	assert.NotContains(t, body, "abc123")
}
