package jobview

import (
	"math"

	"github.com/kiranshivaraju/pdftranslate/pkg/models"
)

// Status pill classes.
const (
	ClassPending = "pending"
	ClassOK      = "ok"
	ClassFailed  = "failed"
)

// State is a snapshot of the job screen.
type State struct {
	JobID string
	// Job is nil until the first status fetch completes.
	Job      *models.JobMeta
	Markdown string
	// Error holds the text of the fetch that stopped polling.
	Error string
	// Done is set once polling has stopped for good.
	Done bool
}

func (s State) clone() State {
	if s.Job != nil {
		j := *s.Job
		s.Job = &j
	}
	return s
}

// StatusLabel is the job status, or "loading" before the first snapshot arrives.
func (s State) StatusLabel() string {
	if s.Job == nil {
		return "loading"
	}
	return string(s.Job.Status)
}

// StatusClass maps the status onto the pill class.
func (s State) StatusClass() string {
	if s.Job == nil {
		return ClassPending
	}
	switch s.Job.Status {
	case models.JobStatusSucceeded:
		return ClassOK
	case models.JobStatusFailed:
		return ClassFailed
	default:
		return ClassPending
	}
}

// Percent is the job's progress as a whole percentage.
func (s State) Percent() int {
	if s.Job == nil {
		return 0
	}
	return Percent(s.Job.Progress)
}

// Stage is the backend-reported stage, if any.
func (s State) Stage() string {
	if s.Job == nil {
		return ""
	}
	return s.Job.Stage
}

// JobError is the backend-reported failure text, if any.
func (s State) JobError() string {
	if s.Job == nil {
		return ""
	}
	return s.Job.ErrorText()
}

// Succeeded reports whether the job finished and its Markdown was loaded.
func (s State) Succeeded() bool {
	return s.Job != nil && s.Job.Status == models.JobStatusSucceeded && s.Error == ""
}

// Percent clamps progress to [0, 1] and rounds it to a whole percentage.
// Non-finite input counts as no progress.
func Percent(progress float64) int {
	if math.IsNaN(progress) {
		return 0
	}
	p := math.Max(0, math.Min(1, progress))
	return int(math.Round(p * 100))
}
