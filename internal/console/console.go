// Package console drives the upload and job screens from a terminal.
package console

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/jobview"
	"github.com/kiranshivaraju/pdftranslate/internal/navigation"
	"github.com/kiranshivaraju/pdftranslate/internal/render"
	"github.com/kiranshivaraju/pdftranslate/internal/upload"
)

// Console is the terminal Router. Until Start is called it only records which
// screen the controller chose, so one-shot commands never start polling.
type Console struct {
	ctx     context.Context
	out     io.Writer
	client  jobsapi.Client
	uploads *upload.View
	jobs    *jobview.View

	mu      sync.Mutex
	jobID   string
	live    bool
	changed chan struct{}
}

func newConsole(ctx context.Context, out io.Writer, client jobsapi.Client, uploads *upload.View, jobs *jobview.View) *Console {
	return &Console{
		ctx:     ctx,
		out:     out,
		client:  client,
		uploads: uploads,
		jobs:    jobs,
		changed: make(chan struct{}),
	}
}

func (c *Console) ShowUpload() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jobID = ""
	c.jobs.Unmount()
	c.switchedLocked()
	if c.live {
		c.write(render.Upload(c.out, c.uploads.State()))
	}
}

func (c *Console) ShowJob(jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jobID = jobID
	c.switchedLocked()
	if c.live {
		c.jobs.Mount(c.ctx, jobID)
	}
}

// Start renders the header and begins showing the current screen.
func (c *Console) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.live {
		return
	}
	c.live = true
	c.write(render.Header(c.out))
	if c.jobID == "" {
		c.write(render.Upload(c.out, c.uploads.State()))
		return
	}
	c.jobs.Mount(c.ctx, c.jobID)
}

// JobID is the job currently on screen, or "".
func (c *Console) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// switchedLocked wakes anything following the previous screen.
func (c *Console) switchedLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Console) screenChanged() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// Follow prints a status line whenever the job screen changes and the full screen
// once polling stops. It returns early when ctx is done or the screen switches.
func (c *Console) Follow(ctx context.Context) (jobview.State, error) {
	updates, stop := c.jobs.Subscribe()
	defer stop()
	changed := c.screenChanged()

	last := c.jobs.State()
	if last.JobID == "" {
		return last, jobview.ErrNotMounted
	}
	c.printLine(last)
	if last.Done {
		c.write(c.renderJob(last))
		return last, nil
	}

	for {
		select {
		case <-ctx.Done():
			return c.jobs.State(), ctx.Err()
		case <-changed:
			return c.jobs.State(), jobview.ErrSuperseded
		case s := <-updates:
			if s.JobID != last.JobID {
				continue
			}
			if s.Done {
				c.write(c.renderJob(s))
				return s, nil
			}
			if render.StatusLine(s) != render.StatusLine(last) {
				c.printLine(s)
			}
			last = s
		}
	}
}

func (c *Console) printLine(s jobview.State) {
	_, err := io.WriteString(c.out, render.StatusLine(s)+"\n")
	c.write(err)
}

func (c *Console) renderJob(s jobview.State) error {
	return render.Job(c.out, s, c.client.ResultDownloadURL(s.JobID))
}

func (c *Console) write(err error) {
	if err != nil {
		slog.Warn("failed to write to console", "error", err)
	}
}

var _ navigation.Router = (*Console)(nil)
