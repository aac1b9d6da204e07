package domain

import (
	"strings"
	"time"
)

// CronFields holds the five cron schedule fields plus month. Empty fields
// default to "*" when the expression is assembled.
type CronFields struct {
	Minute    string `json:"minute,omitempty"`
	Hour      string `json:"hour,omitempty"`
	Day       string `json:"day,omitempty"`
	Month     string `json:"month,omitempty"`
	DayOfWeek string `json:"day_of_week,omitempty"`
}

// IsZero reports whether no field was supplied.
func (f CronFields) IsZero() bool {
	return f.Minute == "" && f.Hour == "" && f.Day == "" && f.Month == "" && f.DayOfWeek == ""
}

// Expression assembles a standard 5-field cron expression
// (minute hour day month day-of-week), defaulting unset fields to "*".
func (f CronFields) Expression() string {
	orStar := func(s string) string {
		if s == "" {
			return "*"
		}
		return s
	}
	return strings.Join([]string{
		orStar(f.Minute),
		orStar(f.Hour),
		orStar(f.Day),
		orStar(f.Month),
		orStar(f.DayOfWeek),
	}, " ")
}

// Job is a persistent declaration binding a job class to a cron schedule.
type Job struct {
	ID             string     `json:"job_id"`
	Name           string     `json:"name"`
	JobClassString string     `json:"job_class_string"`
	PubArgs        JSONList   `json:"pub_args"`
	Trigger        CronFields `json:"trigger"`
	Paused         bool       `json:"paused"`
	// NextRunTime is nil iff the job is paused.
	NextRunTime *time.Time `json:"next_run_time,omitempty"`
	// CategoryID is the linked category, 0 when unscoped.
	CategoryID int64 `json:"category_id"`
	// Runnable is false when the class string does not resolve; the job is
	// kept but never dispatched.
	Runnable bool `json:"runnable"`
}
