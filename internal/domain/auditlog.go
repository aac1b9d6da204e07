package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuditEvent identifies the administrative action recorded in an audit row.
type AuditEvent int

const (
	AuditAdded AuditEvent = iota
	AuditModified
	AuditDeleted
	AuditPaused
	AuditResumed
	AuditCustomRun
)

var auditEventNames = map[AuditEvent]string{
	AuditAdded:     "added",
	AuditModified:  "modified",
	AuditDeleted:   "deleted",
	AuditPaused:    "paused",
	AuditResumed:   "resumed",
	AuditCustomRun: "custom_run",
}

// String returns the display name for an audit event.
func (e AuditEvent) String() string {
	if name, ok := auditEventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(e))
}

// MarshalJSON encodes the event as its display name.
func (e AuditEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// AuditLog is an append-only record of an administrative action on a job.
// Rows are never mutated or deleted.
type AuditLog struct {
	JobID       string     `db:"job_id"       json:"job_id"`
	JobName     string     `db:"job_name"     json:"job_name"`
	Event       AuditEvent `db:"event"        json:"event"`
	User        string     `db:"user"         json:"user"`
	CategoryID  int64      `db:"category_id"  json:"category_id"`
	CreatedTime time.Time  `db:"created_time" json:"created_time"`
	Description string     `db:"description"  json:"description"`
}
