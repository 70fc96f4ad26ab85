package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/web"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 30 * time.Second

func (e *env) serve(c *cli.Context) error {
	port := e.cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	handler := web.New(e.client, e.results, web.Options{
		PollInterval:     e.cfg.Poll.Interval,
		RejectNotice:     e.cfg.Upload.RejectNotice,
		MaxUploadBytes:   e.cfg.Server.MaxUploadBytes,
		ResultTTL:        e.cfg.Poll.ResultTTL,
		UploadsPerMinute: e.cfg.Server.UploadsPerMinute,
	})

	return listenAndServe(c.Context, fmt.Sprintf(":%d", port), handler)
}

// listenAndServe runs srv until ctx is done, then drains connections.
func listenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
