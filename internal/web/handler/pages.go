package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/jobview"
	"github.com/kiranshivaraju/pdftranslate/internal/navigation"
	"github.com/kiranshivaraju/pdftranslate/internal/upload"
	"github.com/kiranshivaraju/pdftranslate/pkg/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	pageTitle    = "PDF Translate Local"
	pageSubtitle = "Scan PDF to OCR to Translation to Markdown"
	uploadField  = "file"
)

// PagesConfig configures the browser pages.
type PagesConfig struct {
	// PollInterval is how often a job page reloads itself until the job is terminal.
	PollInterval   time.Duration
	RejectNotice   bool
	MaxUploadBytes int64
	Results        cache.Cache
	ResultTTL      time.Duration
}

// Pages serves the upload and job pages. The page URL is the navigation state:
// a job_id query parameter selects the job page, its absence the upload page.
type Pages struct {
	client jobsapi.Client
	cfg    PagesConfig
	md     goldmark.Markdown
}

// NewPages creates the page handlers.
func NewPages(client jobsapi.Client, cfg PagesConfig) *Pages {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = jobview.DefaultInterval
	}
	return &Pages{
		client: client,
		cfg:    cfg,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

type page struct {
	Title    string
	Subtitle string
	// Refresh is the meta refresh delay in seconds; zero disables it.
	Refresh int
}

type uploadPage struct {
	page
	Notice      string
	Error       string
	MaxUploadMB int64
}

type jobPage struct {
	page
	State        jobview.State
	Succeeded    bool
	Terminal     bool
	DownloadPath string
	ResultHTML   template.HTML
}

func newPage() page {
	return page{Title: pageTitle, Subtitle: pageSubtitle}
}

// Index handles GET /.
func (p *Pages) Index(w http.ResponseWriter, r *http.Request) {
	jobID, ok := navigation.ReadJobID(r.URL)
	if !ok {
		p.renderUpload(w, http.StatusOK, uploadPage{})
		return
	}

	s := jobview.Once(r.Context(), p.client, jobview.Options{
		Results:   p.cfg.Results,
		ResultTTL: p.cfg.ResultTTL,
	}, jobID)

	data := jobPage{
		page:         newPage(),
		State:        s,
		DownloadPath: "/jobs/" + url.PathEscape(jobID) + "/download",
	}
	if s.Job != nil {
		data.Terminal = s.Job.Status.IsTerminal()
		data.Succeeded = s.Job.Status == models.JobStatusSucceeded
	}
	if !s.Done {
		data.Refresh = int(math.Ceil(p.cfg.PollInterval.Seconds()))
	}
	if data.Succeeded && s.Markdown != "" {
		html, err := p.renderMarkdown(s.Markdown)
		if err != nil {
			slog.Error("failed to render markdown", "job_id", jobID, "error", err)
			data.State.Error = err.Error()
		}
		data.ResultHTML = html
	}

	p.render(w, http.StatusOK, "job.html", data)
}

// Upload handles POST /upload: a multipart form with a single "file" field.
func (p *Pages) Upload(w http.ResponseWriter, r *http.Request) {
	if p.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, p.cfg.MaxUploadBytes)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			p.renderUpload(w, http.StatusRequestEntityTooLarge, uploadPage{
				Error: fmt.Sprintf("File is larger than %d MB.", p.maxUploadMB()),
			})
		case errors.Is(err, http.ErrMissingFile):
			p.renderUpload(w, http.StatusBadRequest, uploadPage{})
		default:
			p.renderUpload(w, http.StatusBadRequest, uploadPage{Error: "Invalid upload form."})
		}
		return
	}
	defer file.Close()

	if !upload.IsPDF(header.Filename, header.Header.Get("Content-Type")) {
		slog.Debug("ignoring non-PDF upload", "name", header.Filename)
		data := uploadPage{}
		if p.cfg.RejectNotice {
			data.Notice = upload.RejectionNotice(header.Filename)
		}
		p.renderUpload(w, http.StatusOK, data)
		return
	}

	jobID, err := p.client.CreateJob(r.Context(), jobsapi.File{
		Name:        header.Filename,
		ContentType: "application/pdf",
		Content:     file,
	})
	if err != nil {
		slog.Warn("job creation failed", "file", header.Filename, "error", err)
		p.renderUpload(w, http.StatusBadGateway, uploadPage{Error: err.Error()})
		return
	}

	slog.Info("job created", "job_id", jobID, "file", header.Filename, "size", header.Size)
	http.Redirect(w, r, navigation.WithJobID(navigation.Root(), jobID).String(), http.StatusSeeOther)
}

// Reset handles POST /reset.
func (p *Pages) Reset(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, navigation.WithJobID(navigation.Root(), "").String(), http.StatusSeeOther)
}

// Download handles GET /jobs/{jobID}/download by sending the browser to the
// backend's result URL.
func (p *Pages) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	http.Redirect(w, r, p.client.ResultDownloadURL(jobID), http.StatusFound)
}

func (p *Pages) renderMarkdown(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	// Raw HTML in the source is dropped by the default renderer.
	return template.HTML(buf.String()), nil
}

func (p *Pages) renderUpload(w http.ResponseWriter, status int, data uploadPage) {
	data.page = newPage()
	data.MaxUploadMB = p.maxUploadMB()
	p.render(w, status, "upload.html", data)
}

func (p *Pages) maxUploadMB() int64 {
	return p.cfg.MaxUploadBytes >> 20
}

func (p *Pages) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", "template", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write page", "template", name, "error", err)
	}
}
