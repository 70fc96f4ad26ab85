package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/pdftranslate/internal/cache"
	"github.com/kiranshivaraju/pdftranslate/internal/web/response"
)

const (
	defaultUploadsPerMinute = 30
	rateWindow              = 60 * time.Second
)

// RateLimit caps job submissions per client address in fixed one-minute windows,
// counted in the shared cache.
type RateLimit struct {
	cache         cache.Cache
	uploadsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, uploadsPerMin int) *RateLimit {
	if uploadsPerMin <= 0 {
		uploadsPerMin = defaultUploadsPerMinute
	}
	return &RateLimit{cache: c, uploadsPerMin: uploadsPerMin}
}

// Limit counts the request against the caller's window and rejects it with 429
// once the window is exhausted.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := cache.UploadRateLimitKey(clientAddr(r))
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateWindow)
		if err != nil {
			// Fail open when the counter store is down.
			slog.Warn("rate limit counter unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := max(rl.uploadsPerMin-int(count), 0)
		resetTime := time.Now().Add(rateWindow).Unix()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.uploadsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if count > int64(rl.uploadsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many uploads, try again in a minute", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
