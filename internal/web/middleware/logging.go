package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/navigation"
)

// responseRecorder captures what a handler sent so it can be logged afterwards.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logger writes one line per request. Server errors log at error level, client
// errors at warn, and health checks at debug.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("remote_addr", r.RemoteAddr),
		}
		if id, ok := GetRequestID(r); ok {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if jobID, ok := navigation.ReadJobID(r.URL); ok {
			attrs = append(attrs, slog.String("job_id", jobID))
		}
		if loc := rec.Header().Get("Location"); loc != "" {
			attrs = append(attrs, slog.String("location", loc))
		}

		slog.LogAttrs(context.WithoutCancel(r.Context()), levelFor(r, rec.status), "request", attrs...)
	})
}

func levelFor(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case r.URL.Path == "/healthz":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
