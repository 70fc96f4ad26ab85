package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

var ErrEmptyJobID = errors.New("empty job id")

// Router shows exactly one of the two screens.
type Router interface {
	ShowUpload()
	ShowJob(jobID string)
}

// Controller owns the selected job id. The id, the history's current location and
// the screen shown by the Router change together under one lock.
type Controller struct {
	history History
	router  Router
	pops    <-chan *url.URL
	stop    func()

	mu    sync.Mutex
	jobID string
}

// NewController reads the job id from the current location and shows the matching
// screen. Back/forward events are collected from this point on and applied by Run.
func NewController(history History, router Router) *Controller {
	c := &Controller{history: history, router: router}
	c.pops, c.stop = history.Subscribe()
	c.jobID, _ = ReadJobID(history.Current())
	c.showLocked()
	return c
}

// JobID returns the selected job, or "" when the upload screen is shown.
func (c *Controller) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Run follows back/forward navigation until ctx is done. A pop event only signals
// that the location moved: the job id is re-read from the history's current
// location, so a pop that was overtaken by JobCreated or Reset changes nothing.
func (c *Controller) Run(ctx context.Context) error {
	defer c.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-c.pops:
			if !ok {
				return nil
			}
			c.sync()
		}
	}
}

func (c *Controller) sync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.history.Current()
	id, _ := ReadJobID(u)
	slog.Debug("location changed", "location", u.String(), "job_id", id)
	c.setLocked(id)
}

// JobCreated records a new history entry for jobID and shows its job screen.
func (c *Controller) JobCreated(jobID string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	return c.navigate(jobID)
}

// Reset records a history entry without a job and shows the upload screen.
func (c *Controller) Reset() error {
	return c.navigate("")
}

func (c *Controller) navigate(jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := WithJobID(c.history.Current(), jobID)
	if err := c.history.Push(next); err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	c.setLocked(jobID)
	return nil
}

// setLocked switches screens only when the id actually changes.
func (c *Controller) setLocked(jobID string) {
	if jobID == c.jobID {
		return
	}
	c.jobID = jobID
	c.showLocked()
}

func (c *Controller) showLocked() {
	if c.jobID == "" {
		c.router.ShowUpload()
		return
	}
	c.router.ShowJob(c.jobID)
}
