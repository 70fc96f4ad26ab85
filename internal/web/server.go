package web

import (
	"net/http"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/web/handler"
	mw "github.com/kiranshivaraju/pdftranslate/internal/web/middleware"
)

// Options configures the browser front-end.
type Options struct {
	PollInterval     time.Duration
	RejectNotice     bool
	MaxUploadBytes   int64
	ResultTTL        time.Duration
	UploadsPerMinute int
}

// New wires every handler against client. c holds cached results and upload
// rate-limit counters.
func New(client jobsapi.Client, c cache.Cache, opts Options) http.Handler {
	pages := handler.NewPages(client, handler.PagesConfig{
		PollInterval:   opts.PollInterval,
		RejectNotice:   opts.RejectNotice,
		MaxUploadBytes: opts.MaxUploadBytes,
		Results:        c,
		ResultTTL:      opts.ResultTTL,
	})

	return NewRouter(Dependencies{
		RateLimit:       mw.NewRateLimit(c, opts.UploadsPerMinute),
		IndexHandler:    pages.Index,
		UploadHandler:   pages.Upload,
		ResetHandler:    pages.Reset,
		DownloadHandler: pages.Download,
		JobHandler:      handler.NewJobHandler(client),
		PageHandler:     handler.NewPageHandler(client),
		HealthHandler:   handler.NewHealthHandler(client),
	})
}
