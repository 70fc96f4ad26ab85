package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/kiranshivaraju/pdftranslate/internal/web/response"
)

// Recovery turns a handler panic into a 500: the JSON error envelope under /api/
// and a plain text message on pages. Nothing is written when the handler had
// already started its response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}

			requestID, _ := GetRequestID(r)
			slog.Error("panic recovered",
				"error", v,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
			)
			if rec.status != 0 {
				return
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
				return
			}
			http.Error(w, "Something went wrong. Reload the page to try again.", http.StatusInternalServerError)
		}()
		next.ServeHTTP(rec, r)
	})
}
