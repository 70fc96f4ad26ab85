package jobsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
)

// Sentinel errors for backend failures.
var (
	ErrBackendUnreachable = errors.New("backend unreachable")
	ErrBackendTimeout     = errors.New("backend request timeout")
	ErrAPIStatus          = errors.New("backend returned non-success status")
	ErrInvalidResponse    = errors.New("backend returned invalid response")
	ErrCanceled           = errors.New("backend request canceled")
)

// APIError is returned for any non-2xx response. Body holds the raw response text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPIStatus
}

// File is a single document to submit as a new job.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Client is the interface for talking to the translation backend.
type Client interface {
	CreateJob(ctx context.Context, file File) (string, error)
	GetJob(ctx context.Context, jobID string) (*models.JobMeta, error)
	GetResultMarkdown(ctx context.Context, jobID string) (string, error)
	GetPageMarkdown(ctx context.Context, jobID string, page int) (string, error)
	ResultDownloadURL(jobID string) string
	Health(ctx context.Context) (*models.HealthResponse, error)
}

// HTTPClient implements Client using the backend's HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new backend client. A zero timeout leaves requests
// unbounded except by their context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) CreateJob(ctx context.Context, file File) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return "", fmt.Errorf("reading %s: %w", file.Name, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building multipart body: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/jobs", &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var created models.JobCreateResponse
	if err := c.doJSON(httpReq, &created); err != nil {
		return "", err
	}
	if created.JobID == "" {
		return "", fmt.Errorf("%w: empty job_id", ErrInvalidResponse)
	}

	return created.JobID, nil
}

func (c *HTTPClient) GetJob(ctx context.Context, jobID string) (*models.JobMeta, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, err
	}

	var meta models.JobMeta
	if err := c.doJSON(httpReq, &meta); err != nil {
		return nil, err
	}
	switch {
	case meta.Status == "":
		return nil, fmt.Errorf("%w: missing job status", ErrInvalidResponse)
	case !meta.Status.Valid():
		// Unknown statuses are not terminal, so the job keeps being polled.
		slog.Debug("unknown job status", "job_id", jobID, "status", meta.Status)
	}

	return &meta, nil
}

func (c *HTTPClient) GetResultMarkdown(ctx context.Context, jobID string) (string, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, c.ResultDownloadURL(jobID), nil)
	if err != nil {
		return "", err
	}
	return c.doText(httpReq)
}

// GetPageMarkdown fetches the Markdown of a single page. Pages are numbered from 1.
func (c *HTTPClient) GetPageMarkdown(ctx context.Context, jobID string, page int) (string, error) {
	if page < 1 {
		return "", fmt.Errorf("page must be >= 1, got %d", page)
	}
	u := c.jobURL(jobID) + "/pages/" + strconv.Itoa(page)

	httpReq, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	return c.doText(httpReq)
}

// ResultDownloadURL returns the stable link to a job's Markdown result. It performs
// no network call.
func (c *HTTPClient) ResultDownloadURL(jobID string) string {
	return c.jobURL(jobID) + "/result"
}

// Health queries the backend's dependency check. A degraded backend answers 503 with
// a regular health body, which is returned without error.
func (c *HTTPClient) Health(ctx context.Context) (*models.HealthResponse, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var health models.HealthResponse
	if err := json.Unmarshal(raw, &health); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		return nil, fmt.Errorf("%w: decoding health response: %v", ErrInvalidResponse, err)
	}

	return &health, nil
}

func (c *HTTPClient) jobURL(jobID string) string {
	return c.baseURL + "/jobs/" + url.PathEscape(jobID)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	return httpReq, nil
}

func (c *HTTPClient) doJSON(httpReq *http.Request, v any) error {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrInvalidResponse, httpReq.URL.Path, err)
	}
	return nil
}

func (c *HTTPClient) doText(httpReq *http.Request) (string, error) {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyError(err)
	}
	return string(raw), nil
}

// checkStatus turns any non-2xx response into an *APIError carrying the body text.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrBackendTimeout, err)
	}

	return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
