package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/web/response"
)

// PageResult is the body of GET /api/jobs/{jobID}/pages/{page}.
type PageResult struct {
	JobID    string `json:"job_id"`
	Page     int    `json:"page"`
	Markdown string `json:"markdown"`
}

// NewJobHandler returns an http.HandlerFunc for GET /api/jobs/{jobID}.
func NewJobHandler(client jobsapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		meta, err := client.GetJob(r.Context(), jobID)
		if err != nil {
			backendError(w, err)
			return
		}
		response.JSON(w, meta)
	}
}

// NewPageHandler returns an http.HandlerFunc for GET /api/jobs/{jobID}/pages/{page}.
func NewPageHandler(client jobsapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		page, err := strconv.Atoi(chi.URLParam(r, "page"))
		if err != nil || page < 1 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
			return
		}

		md, err := client.GetPageMarkdown(r.Context(), jobID, page)
		if err != nil {
			backendError(w, err)
			return
		}
		response.JSON(w, PageResult{JobID: jobID, Page: page, Markdown: md})
	}
}

// NewHealthHandler returns an http.HandlerFunc for GET /healthz. A degraded
// backend is reported with 503 and its health body.
func NewHealthHandler(client jobsapi.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health, err := client.Health(r.Context())
		if err != nil {
			backendError(w, err)
			return
		}
		if health.Status != "ok" {
			response.JSONStatus(w, http.StatusServiceUnavailable, health)
			return
		}
		response.JSON(w, health)
	}
}

// statusClientClosedRequest is nginx's code for a request the client abandoned.
const statusClientClosedRequest = 499

// backendError maps a jobsapi error onto the JSON error envelope.
func backendError(w http.ResponseWriter, err error) {
	var apiErr *jobsapi.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", err.Error(), nil)
	case errors.As(err, &apiErr):
		response.Error(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error(),
			map[string]int{"status": apiErr.StatusCode})
	case errors.Is(err, jobsapi.ErrCanceled):
		// The caller went away; the status only reaches the request log.
		response.Error(w, statusClientClosedRequest, "REQUEST_CANCELED", err.Error(), nil)
	case errors.Is(err, jobsapi.ErrBackendTimeout):
		response.Error(w, http.StatusGatewayTimeout, "BACKEND_TIMEOUT", err.Error(), nil)
	case errors.Is(err, jobsapi.ErrBackendUnreachable):
		response.Error(w, http.StatusBadGateway, "BACKEND_UNREACHABLE", err.Error(), nil)
	default:
		response.Error(w, http.StatusBadGateway, "BACKEND_ERROR", err.Error(), nil)
	}
}
