// Package upload implements the screen that picks a single PDF and turns it into a
// backend job.
package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
)

var (
	ErrNoFileSelected = errors.New("no file selected")
	ErrSubmitInFlight = errors.New("a submission is already in flight")
)

// State is a snapshot of the upload screen.
type State struct {
	Selected *Candidate
	Loading  bool
	// Error is the text of the last failed submission.
	Error string
	// Notice is set for rejected files when RejectNotice is enabled.
	Notice string
}

// Options configures a View.
type Options struct {
	// OnJobCreated receives the id of every job this view creates.
	OnJobCreated func(jobID string)
	// RejectNotice surfaces a notice for non-PDF picks instead of ignoring them.
	RejectNotice bool
}

// View holds the upload screen state. Only one submission may be in flight.
type View struct {
	client jobsapi.Client
	opts   Options

	mu    sync.Mutex
	state State
}

// NewView creates an upload View submitting through client.
func NewView(client jobsapi.Client, opts Options) *View {
	return &View{client: client, opts: opts}
}

// State returns a copy of the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := v.state
	if s.Selected != nil {
		sel := *s.Selected
		s.Selected = &sel
	}
	return s
}

// Select makes c the selected file if it is a PDF. Anything else leaves the
// selection untouched and returns false. Picks are ignored while a submission is
// in flight.
func (v *View) Select(c Candidate) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state.Loading {
		return false
	}
	if !c.IsPDF() {
		slog.Debug("ignoring non-PDF file", "name", c.Name, "content_type", c.ContentType)
		if v.opts.RejectNotice {
			v.state.Notice = RejectionNotice(c.Name)
		}
		return false
	}

	v.state.Selected = &c
	v.state.Notice = ""
	return true
}

// Submit uploads the selected file and reports the new job id to OnJobCreated.
// On failure the error text is kept in State and the view accepts input again.
func (v *View) Submit(ctx context.Context) (string, error) {
	v.mu.Lock()
	if v.state.Loading {
		v.mu.Unlock()
		return "", ErrSubmitInFlight
	}
	if v.state.Selected == nil {
		v.mu.Unlock()
		return "", ErrNoFileSelected
	}
	selected := *v.state.Selected
	v.state.Loading = true
	v.state.Error = ""
	v.mu.Unlock()

	jobID, err := v.createJob(ctx, selected)

	v.mu.Lock()
	v.state.Loading = false
	if err != nil {
		v.state.Error = err.Error()
	}
	v.mu.Unlock()

	if err != nil {
		slog.Warn("job creation failed", "file", selected.Name, "error", err)
		return "", err
	}

	slog.Info("job created", "job_id", jobID, "file", selected.Name)
	if v.opts.OnJobCreated != nil {
		v.opts.OnJobCreated(jobID)
	}
	return jobID, nil
}

func (v *View) createJob(ctx context.Context, c Candidate) (string, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", c.Name, err)
	}
	defer f.Close()

	// The backend accepts either a .pdf name or this content type, and a candidate
	// only got here by having one of the two.
	return v.client.CreateJob(ctx, jobsapi.File{
		Name:        c.Name,
		ContentType: pdfContentType,
		Content:     f,
	})
}
