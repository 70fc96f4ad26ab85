// Package main is the entrypoint for the pdftranslate front-ends: a terminal client
// and the browser front-end server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/config"
	"github.com/kiranshivaraju/pdftranslate/internal/console"
	"github.com/kiranshivaraju/pdftranslate/internal/jobsapi"
	"github.com/kiranshivaraju/pdftranslate/internal/jobview"
	"github.com/kiranshivaraju/pdftranslate/internal/navigation"
	"github.com/kiranshivaraju/pdftranslate/internal/render"
	"github.com/kiranshivaraju/pdftranslate/internal/upload"
	"github.com/urfave/cli/v2"
)

const (
	inboxDebounce   = 500 * time.Millisecond
	historyDebounce = 50 * time.Millisecond
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		slog.Error("pdftranslate failed", "error", err)
		os.Exit(1)
	}
}

// env is what every command needs, built once in the app's Before hook.
type env struct {
	cfg     *config.Config
	client  jobsapi.Client
	results cache.Cache
	history *navigation.FileHistory
	out     io.Writer
	closers []io.Closer
}

func (e *env) jobOptions() jobview.Options {
	return jobview.Options{
		Interval:  e.cfg.Poll.Interval,
		Results:   e.results,
		ResultTTL: e.cfg.Poll.ResultTTL,
	}
}

func (e *env) session(ctx context.Context) *console.Session {
	return console.NewSession(ctx, console.Options{
		Out:          e.out,
		Client:       e.client,
		History:      e.history,
		Jobs:         e.jobOptions(),
		RejectNotice: e.cfg.Upload.RejectNotice,
	})
}

func (e *env) close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	e := &env{out: out}

	return &cli.App{
		Name:      "pdftranslate",
		Usage:     "Submit scanned PDFs for OCR and translation and follow them to Markdown",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "disable coloured output",
				EnvVars: []string{"NO_COLOR"},
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e.cfg = cfg

			json := c.Args().First() == "serve"
			slog.SetDefault(newLogger(errOut, cfg.Log.Level, json))
			if c.Bool("no-color") {
				color.NoColor = true
			}

			results, closer, err := newCache(c.Context, cfg.Redis.URL)
			if err != nil {
				return err
			}
			e.results = results
			if closer != nil {
				e.closers = append(e.closers, closer)
			}

			history, err := navigation.NewFileHistory(cfg.State.File)
			if err != nil {
				return fmt.Errorf("open location state: %w", err)
			}
			e.history = history
			e.client = jobsapi.NewHTTPClient(cfg.API.BaseURL, cfg.API.Timeout)

			slog.Debug("config loaded", "api", cfg.API.BaseURL, "state_file", cfg.State.File)
			return nil
		},
		After: func(*cli.Context) error {
			e.close()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "submit",
				Usage:     "upload a PDF and show its job",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "poll the job until it finishes"},
				},
				Action: e.submit,
			},
			{
				Name:      "status",
				Usage:     "show a job once, defaulting to the current one",
				ArgsUsage: "[JOB_ID]",
				Action:    e.status,
			},
			{
				Name:   "resume",
				Usage:  "show the current screen and follow its job",
				Action: e.resume,
			},
			{
				Name:   "reset",
				Usage:  "leave the job screen and go back to upload",
				Action: e.reset,
			},
			{
				Name:   "back",
				Usage:  "go to the previous location",
				Action: e.move((*navigation.FileHistory).Back),
			},
			{
				Name:   "forward",
				Usage:  "go to the next location",
				Action: e.move((*navigation.FileHistory).Forward),
			},
			{
				Name:      "inbox",
				Usage:     "submit every PDF dropped into a directory",
				ArgsUsage: "[DIR]",
				Action:    e.inbox,
			},
			{
				Name:      "result",
				Usage:     "print a finished job's Markdown",
				ArgsUsage: "JOB_ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "url", Usage: "print the download link instead"},
					&cli.IntFlag{Name: "page", Usage: "print a single page (from 1)"},
				},
				Action: e.result,
			},
			{
				Name:   "health",
				Usage:  "check the backend's dependencies",
				Action: e.health,
			},
			{
				Name:  "serve",
				Usage: "run the browser front-end",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Usage: "listen port (default PDFTRANSLATE_PORT)"},
				},
				Action: e.serve,
			},
		},
	}
}

func (e *env) submit(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("submit needs a FILE", 2)
	}

	s := e.session(c.Context)
	jobID, err := s.Submit(c.Context, path)
	if errors.Is(err, console.ErrRejected) {
		return cli.Exit(upload.RejectionNotice(path), 1)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Job %s created.\n", jobID)

	if !c.Bool("follow") {
		return nil
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	e.listen(ctx, s)
	s.Console.Start()
	return e.follow(ctx, s)
}

func (e *env) status(c *cli.Context) error {
	jobID := c.Args().First()
	if jobID == "" {
		var ok bool
		if jobID, ok = navigation.ReadJobID(e.history.Current()); !ok {
			return cli.Exit("no job selected; pass a JOB_ID or submit a file", 1)
		}
	}

	s := jobview.Once(c.Context, e.client, e.jobOptions(), jobID)
	return render.Job(e.out, s, e.client.ResultDownloadURL(jobID))
}

func (e *env) resume(c *cli.Context) error {
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	s := e.session(ctx)
	e.listen(ctx, s)
	s.Console.Start()
	if s.Console.JobID() == "" {
		return nil
	}
	return e.follow(ctx, s)
}

// listen applies back, forward and reset run from other terminals to this session.
func (e *env) listen(ctx context.Context, s *console.Session) {
	if err := e.history.Watch(ctx, historyDebounce); err != nil {
		slog.Warn("not following navigation from other terminals", "error", err)
	}
	s.Listen(ctx)
}

// follow polls the shown job until it finishes. When the screen moves to another
// job, that job is followed instead; moving to the upload screen ends it.
func (e *env) follow(ctx context.Context, s *console.Session) error {
	for {
		st, err := s.Console.Follow(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, jobview.ErrSuperseded), errors.Is(err, jobview.ErrNotMounted):
			if s.Console.JobID() == "" {
				return nil
			}
			continue
		case err != nil:
			return err
		}
		if st.Error != "" || st.JobError() != "" {
			return cli.Exit("", 1)
		}
		return nil
	}
}

func (e *env) reset(c *cli.Context) error {
	s := e.session(c.Context)
	if err := s.Controller.Reset(); err != nil {
		return err
	}
	s.Console.Start()
	return nil
}

func (e *env) move(step func(*navigation.FileHistory) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := step(e.history); err != nil {
			if errors.Is(err, navigation.ErrNoEntry) {
				return cli.Exit("no more history in that direction", 1)
			}
			return err
		}
		if jobID, ok := navigation.ReadJobID(e.history.Current()); ok {
			fmt.Fprintf(e.out, "Job %s\n", jobID)
			return nil
		}
		fmt.Fprintln(e.out, "Upload")
		return nil
	}
}

func (e *env) inbox(c *cli.Context) error {
	dir := c.Args().First()
	if dir == "" {
		dir = e.cfg.Upload.InboxDir
	}
	if dir == "" {
		return cli.Exit("inbox needs a DIR or PDFTRANSLATE_INBOX_DIR", 2)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	s := e.session(ctx)
	e.listen(ctx, s)
	err := s.Watch(ctx, upload.InboxConfig{Dir: dir, Debounce: inboxDebounce})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *env) result(c *cli.Context) error {
	jobID := c.Args().First()
	if jobID == "" {
		return cli.Exit("result needs a JOB_ID", 2)
	}

	if c.Bool("url") {
		fmt.Fprintln(e.out, e.client.ResultDownloadURL(jobID))
		return nil
	}

	var (
		md  string
		err error
	)
	if page := c.Int("page"); c.IsSet("page") {
		md, err = e.client.GetPageMarkdown(c.Context, jobID, page)
	} else {
		md, err = jobview.FetchResult(c.Context, e.client, e.results, e.cfg.Poll.ResultTTL, jobID)
	}
	if err != nil {
		return err
	}

	if _, err := io.WriteString(e.out, md); err != nil {
		return err
	}
	if !strings.HasSuffix(md, "\n") {
		fmt.Fprintln(e.out)
	}
	return nil
}

func (e *env) health(c *cli.Context) error {
	h, err := e.client.Health(c.Context)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "backend: %s\n", h.Status)
	fmt.Fprintf(e.out, "  ocr:    %s\n", serviceLine(h.OCR.OK, h.OCR.Detail))
	fmt.Fprintf(e.out, "  ollama: %s\n", serviceLine(h.Ollama.OK, h.Ollama.Detail))
	if h.Status != "ok" {
		return cli.Exit("", 1)
	}
	return nil
}

func serviceLine(ok bool, detail string) string {
	if ok {
		return color.GreenString("ok") + " " + detail
	}
	return color.RedString("down") + " " + detail
}

func newLogger(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newCache returns Redis when redisURL is set and an in-process cache otherwise.
// The closer is nil for the in-process cache.
func newCache(ctx context.Context, redisURL string) (cache.Cache, io.Closer, error) {
	if redisURL == "" {
		return cache.NewMemoryCache(), nil, nil
	}

	rc, err := cache.NewRedisCache(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := rc.Ping(ctx); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Debug("redis connected")
	return rc, rc, nil
}
