package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestLogger returns middleware that logs one structured line per
// request: method, route, status, duration and response size. Server
// errors log at error level, everything else at info.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			attrs := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", sw.status,
				"duration", time.Since(start),
				"bytes", sw.bytes,
				"remote", r.RemoteAddr,
			}
			if sw.status >= http.StatusInternalServerError {
				logger.Error("request", attrs...)
			} else {
				logger.Info("request", attrs...)
			}
		})
	}
}
