package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/jobview"
	"github.com/kiranshivaraju/pdftranslate/internal/navigation"
	"github.com/kiranshivaraju/pdftranslate/internal/render"
	"github.com/kiranshivaraju/pdftranslate/internal/upload"
)

// ErrRejected is returned by Submit for files the upload screen does not accept.
var ErrRejected = errors.New("file is not a PDF")

// Options configures a Session.
type Options struct {
	Out          io.Writer
	Client       jobsapi.Client
	History      navigation.History
	Jobs         jobview.Options
	RejectNotice bool
}

// Session ties the two screens to a navigation controller: a created job is pushed
// to the history and shown, a reset goes back to the upload screen.
type Session struct {
	Console    *Console
	Controller *navigation.Controller
	Uploads    *upload.View
	Jobs       *jobview.View

	out io.Writer
}

// NewSession builds the screens and reads the current location. Nothing is polled
// until Console.Start.
func NewSession(ctx context.Context, opts Options) *Session {
	s := &Session{out: opts.Out}
	if s.out == nil {
		s.out = io.Discard
	}

	s.Jobs = jobview.NewView(opts.Client, opts.Jobs)
	s.Uploads = upload.NewView(opts.Client, upload.Options{
		RejectNotice: opts.RejectNotice,
		OnJobCreated: func(jobID string) {
			if err := s.Controller.JobCreated(jobID); err != nil {
				slog.Error("failed to show created job", "job_id", jobID, "error", err)
			}
		},
	})
	s.Console = newConsole(ctx, s.out, opts.Client, s.Uploads, s.Jobs)
	s.Controller = navigation.NewController(opts.History, s.Console)
	return s
}

// Listen applies back and forward moves to the screens until ctx is done.
func (s *Session) Listen(ctx context.Context) {
	go func() {
		if err := s.Controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("navigation stopped", "error", err)
		}
	}()
}

// Submit picks the file at path and uploads it. A file that is not a PDF leaves the
// selection alone and nothing is submitted.
func (s *Session) Submit(ctx context.Context, path string) (string, error) {
	c, err := upload.Inspect(path)
	if err != nil {
		return "", err
	}
	if !s.Uploads.Select(c) {
		s.renderUpload()
		return "", ErrRejected
	}

	jobID, err := s.Uploads.Submit(ctx)
	if err != nil {
		s.renderUpload()
		return "", err
	}
	return jobID, nil
}

func (s *Session) renderUpload() {
	if err := render.Upload(s.out, s.Uploads.State()); err != nil {
		slog.Warn("failed to write to console", "error", err)
	}
}

// Watch submits every PDF that lands in the inbox and follows it to completion,
// one at a time, until ctx is done.
func (s *Session) Watch(ctx context.Context, cfg upload.InboxConfig) error {
	paths, errs, err := upload.WatchInbox(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to watch inbox: %w", err)
	}
	slog.Info("watching inbox", "dir", cfg.Dir)
	s.Console.Start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return ctx.Err()
			}
			slog.Warn("inbox error", "error", err)
		case path, ok := <-paths:
			if !ok {
				return ctx.Err()
			}
			jobID, err := s.Submit(ctx, path)
			if errors.Is(err, ErrRejected) {
				slog.Debug("ignoring inbox file", "path", path)
				continue
			}
			if err != nil {
				slog.Warn("inbox submission failed", "path", path, "error", err)
				continue
			}
			if _, err := s.Console.Follow(ctx); err != nil && !errors.Is(err, jobview.ErrSuperseded) {
				return err
			}
			slog.Info("inbox job finished", "job_id", jobID, "path", path)
		}
	}
}
