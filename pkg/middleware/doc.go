// Package middleware provides HTTP middleware for gantry applications:
// Prometheus metrics, OpenTelemetry tracing, structured request logging
// and per-client rate limiting. All middleware is plain
// func(http.Handler) http.Handler, so it composes with the router's
// middleware options and with any other net/http stack.
package middleware
