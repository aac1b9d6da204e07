package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/gosched/internal/auth"
	"github.com/jonesrussell/gosched/internal/domain"
	"github.com/jonesrussell/gosched/internal/scheduler"
)

const (
	// defaultExecutionWindow is the listing range when the caller gives none.
	defaultExecutionWindow = 10 * time.Minute
	// defaultAuditWindow is the audit log listing range default.
	defaultAuditWindow = 24 * time.Hour
)

// actorFrom builds the audit identity from the verified claims.
func actorFrom(c *gin.Context) scheduler.Actor {
	claims := auth.ClaimsFrom(c)
	if claims == nil {
		return scheduler.Actor{}
	}
	return scheduler.Actor{
		Username:   claims.Username,
		CategoryID: claims.CategoryID,
	}
}

// scopeFrom returns the caller's visibility category; 0 sees everything.
func scopeFrom(c *gin.Context) int64 {
	claims := auth.ClaimsFrom(c)
	if claims == nil {
		return domain.UnscopedCategoryID
	}
	return claims.CategoryID
}

// timeRange reads time_range_start and time_range_end from the query,
// defaulting to the trailing window ending now. Timestamps are ISO-8601.
func timeRange(c *gin.Context, window time.Duration) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	if raw := c.Query("time_range_start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid time_range_start: %s", raw)
		}
		start = parsed.UTC()
	}
	if raw := c.Query("time_range_end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid time_range_end: %s", raw)
		}
		end = parsed.UTC()
	}
	return start, end, nil
}

// triggerFrom assembles the cron fields of a job request.
func triggerFrom(req JobRequest) domain.CronFields {
	return domain.CronFields{
		Minute:    req.Minute,
		Hour:      req.Hour,
		Day:       req.Day,
		Month:     req.Month,
		DayOfWeek: req.DayOfWeek,
	}
}
