// Package web is the browser front-end: server-rendered upload and job pages plus a
// small JSON API proxying the translation backend.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/pdftranslate/internal/web/middleware"
	"github.com/kiranshivaraju/pdftranslate/internal/web/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit *mw.RateLimit

	IndexHandler    http.HandlerFunc
	UploadHandler   http.HandlerFunc
	ResetHandler    http.HandlerFunc
	DownloadHandler http.HandlerFunc
	JobHandler      http.HandlerFunc
	PageHandler     http.HandlerFunc
	HealthHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/healthz", orNotImplemented(deps.HealthHandler))

	// Pages
	r.Get("/", orNotImplemented(deps.IndexHandler))
	r.Post("/reset", orNotImplemented(deps.ResetHandler))
	r.Get("/jobs/{jobID}/download", orNotImplemented(deps.DownloadHandler))
	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}
		r.Post("/upload", orNotImplemented(deps.UploadHandler))
	})

	// JSON API
	r.Get("/api/jobs/{jobID}", orNotImplemented(deps.JobHandler))
	r.Get("/api/jobs/{jobID}/pages/{page}", orNotImplemented(deps.PageHandler))

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
