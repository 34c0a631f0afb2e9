package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "gantry").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "gantry",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	responseSize     *prometheus.HistogramVec
}

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of HTTP requests processed",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method", "route"}),

		requestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_in_flight",
			Help:        "Number of HTTP requests currently being served",
			ConstLabels: config.ConstLabels,
		}),

		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "response_size_bytes",
			Help:        "HTTP response body size in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576},
		}, []string{"method", "route"}),
	}
}

// Prometheus creates middleware that records request metrics.
//
// Metrics collected:
//   - gantry_requests_total: Counter of requests by method, route and status
//   - gantry_request_duration_seconds: Histogram of request duration
//   - gantry_requests_in_flight: Gauge of concurrently served requests
//   - gantry_response_size_bytes: Histogram of response body sizes
//
// The route label uses the matched route pattern, not the raw URL path,
// to keep label cardinality bounded.
//
// Example:
//
//	app := gantry.NewApp(
//	    gantry.WithMiddleware(middleware.Prometheus()),
//	)
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := initMetrics(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start).Seconds()

			route := routePattern(r)
			m.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			m.requestDuration.WithLabelValues(r.Method, route).Observe(elapsed)
			m.responseSize.WithLabelValues(r.Method, route).Observe(float64(sw.bytes))
		})
	}
}

// routePattern returns the chi route pattern that matched the request,
// falling back to the raw path when the middleware runs outside a chi
// mux.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}
