// Package domain provides domain models used across the application.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionState tracks the lifecycle of a single firing attempt.
// States advance along one of two paths:
//
//	SCHEDULED -> RUNNING -> SUCCEEDED | FAILED
//	SCHEDULED -> SCHEDULED_ERROR
type ExecutionState int

const (
	ExecutionScheduled ExecutionState = iota
	ExecutionRunning
	ExecutionSucceeded
	ExecutionFailed
	ExecutionScheduledError
)

var executionStateNames = map[ExecutionState]string{
	ExecutionScheduled:      "scheduled",
	ExecutionRunning:        "running",
	ExecutionSucceeded:      "succeeded",
	ExecutionFailed:         "failed",
	ExecutionScheduledError: "scheduled error",
}

// String returns the display name for an execution state.
func (s ExecutionState) String() string {
	if name, ok := executionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsTerminal reports whether no further state writes are permitted.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed || s == ExecutionScheduledError
}

// MarshalJSON encodes the state as its display name.
func (s ExecutionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Execution represents one persisted firing attempt of a job.
type Execution struct {
	ID            string         `db:"eid"            json:"execution_id"`
	JobID         string         `db:"job_id"         json:"job_id"`
	State         ExecutionState `db:"state"          json:"state"`
	Hostname      *string        `db:"hostname"       json:"hostname,omitempty"`
	PID           *int           `db:"pid"            json:"pid,omitempty"`
	ScheduledTime time.Time      `db:"scheduled_time" json:"scheduled_time"`
	UpdatedTime   time.Time      `db:"updated_time"   json:"updated_time"`
	Description   *string        `db:"description"    json:"description,omitempty"`
	Result        *string        `db:"result"         json:"result,omitempty"`
	CategoryID    *int64         `db:"category_id"    json:"category_id,omitempty"`

	// Job summary attached on reads so listings are self-describing.
	Job *JobSummary `db:"-" json:"job,omitempty"`
}

// JobSummary is the job info embedded in execution responses.
type JobSummary struct {
	JobID          string     `json:"job_id"`
	Name           string     `json:"name"`
	JobClassString string     `json:"job_class_string"`
	PubArgs        JSONList   `json:"pub_args"`
	Trigger        CronFields `json:"trigger"`
}
