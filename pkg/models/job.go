// Package models contains the wire types shared by the pdftranslate front-ends.
package models

import "time"

// JobStatus is the lifecycle state the backend reports for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further polling should happen after this status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	}
	return false
}

// JobMeta is the backend's view of one PDF translation run. The front-end only ever
// holds a read-only snapshot of it per poll; the backend owns every field.
type JobMeta struct {
	JobID      string         `json:"job_id"`
	Filename   string         `json:"filename"`
	Status     JobStatus      `json:"status"`
	Progress   float64        `json:"progress"`
	Stage      string         `json:"stage"`
	Error      *string        `json:"error"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	ResultPath *string        `json:"result_path"`
	Extra      map[string]any `json:"extra"`
}

// ErrorText returns the job's own error message, or "" when there is none.
func (j *JobMeta) ErrorText() string {
	if j == nil || j.Error == nil {
		return ""
	}
	return *j.Error
}

// JobCreateResponse is returned by POST /jobs.
type JobCreateResponse struct {
	JobID string `json:"job_id"`
}
