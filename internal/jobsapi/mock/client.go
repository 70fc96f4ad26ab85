package mock

import (
	"context"
	"io"
	"sync"

	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
)

// Client satisfies jobsapi.Client for testing. Nil funcs return zero values.
// Every call is counted per method.
type Client struct {
	CreateJobFunc         func(ctx context.Context, file jobsapi.File) (string, error)
	GetJobFunc            func(ctx context.Context, jobID string) (*models.JobMeta, error)
	GetResultMarkdownFunc func(ctx context.Context, jobID string) (string, error)
	GetPageMarkdownFunc   func(ctx context.Context, jobID string, page int) (string, error)
	HealthFunc            func(ctx context.Context) (*models.HealthResponse, error)
	BaseURL               string

	mu    sync.Mutex
	calls map[string]int
	// Uploaded holds the bytes of every file passed to CreateJob.
	Uploaded [][]byte
}

func (c *Client) record(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[method]++
}

// Calls returns how many times method was invoked.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Client) CreateJob(ctx context.Context, file jobsapi.File) (string, error) {
	c.record("CreateJob")
	if file.Content != nil {
		b, err := io.ReadAll(file.Content)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.Uploaded = append(c.Uploaded, b)
		c.mu.Unlock()
	}
	if c.CreateJobFunc != nil {
		return c.CreateJobFunc(ctx, file)
	}
	return "", nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*models.JobMeta, error) {
	c.record("GetJob")
	if c.GetJobFunc != nil {
		return c.GetJobFunc(ctx, jobID)
	}
	return &models.JobMeta{JobID: jobID, Status: models.JobStatusQueued}, nil
}

func (c *Client) GetResultMarkdown(ctx context.Context, jobID string) (string, error) {
	c.record("GetResultMarkdown")
	if c.GetResultMarkdownFunc != nil {
		return c.GetResultMarkdownFunc(ctx, jobID)
	}
	return "", nil
}

func (c *Client) GetPageMarkdown(ctx context.Context, jobID string, page int) (string, error) {
	c.record("GetPageMarkdown")
	if c.GetPageMarkdownFunc != nil {
		return c.GetPageMarkdownFunc(ctx, jobID, page)
	}
	return "", nil
}

func (c *Client) ResultDownloadURL(jobID string) string {
	base := c.BaseURL
	if base == "" {
		base = "http://backend.test"
	}
	return base + "/jobs/" + jobID + "/result"
}

func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	c.record("Health")
	if c.HealthFunc != nil {
		return c.HealthFunc(ctx)
	}
	return &models.HealthResponse{Status: "ok"}, nil
}

// StatusSequence returns a GetJobFunc that reports each status in turn and then
// repeats the last one. Failed jobs carry failure as their error text.
func StatusSequence(failure string, statuses ...models.JobStatus) func(context.Context, string) (*models.JobMeta, error) {
	var mu sync.Mutex
	i := 0
	return func(_ context.Context, jobID string) (*models.JobMeta, error) {
		mu.Lock()
		defer mu.Unlock()
		s := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		meta := &models.JobMeta{
			JobID:    jobID,
			Filename: "paper.pdf",
			Status:   s,
			Progress: progressFor(s),
			Stage:    string(s),
			Extra:    map[string]any{},
		}
		if s == models.JobStatusFailed {
			msg := failure
			meta.Error = &msg
		}
		return meta, nil
	}
}

func progressFor(s models.JobStatus) float64 {
	switch s {
	case models.JobStatusRunning:
		return 0.5
	case models.JobStatusSucceeded:
		return 1
	}
	return 0
}

var _ jobsapi.Client = (*Client)(nil)
