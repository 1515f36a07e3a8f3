package model

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
)

// ReportJob is a queued report creation. The schedule endpoint inserts
// one and returns immediately; the worker claims due jobs and writes
// the outcome back here, never to an HTTP response.
type ReportJob struct {
	JobUUID     uuid.UUID    `json:"job_uuid"`
	ReportUUID  uuid.UUID    `json:"report_uuid"`
	UserUUID    uuid.UUID    `json:"user_uuid"`
	Filter      ReportFilter `json:"filter"`
	RunAt       time.Time    `json:"run_at"`
	Status      JobStatus    `json:"status"`
	LastError   *string      `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
