package middleware

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for gantry applications.
const defaultTracerName = "gantry"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "gantry").
	TracerName string

	// Filter determines which requests to trace.
	// Return true to trace the request, false to skip.
	// If nil, all requests are traced.
	Filter func(r *http.Request) bool

	// AttributeExtractor extracts custom attributes from the request.
	// Called for each traced request.
	AttributeExtractor func(r *http.Request) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithRequestFilter sets a filter function for requests.
func WithRequestFilter(filter func(r *http.Request) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(r *http.Request) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// OpenTelemetry creates middleware that traces every request.
//
// The middleware creates a server span per request named after the
// matched route, injects the span context into the request context for
// downstream calls, and records the response status on the span.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) func(http.Handler) http.Handler {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	config.tracer = otel.Tracer(config.TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Filter != nil && !config.Filter(r) {
				next.ServeHTTP(w, r)
				return
			}

			route := routePattern(r)
			attrs := []attribute.KeyValue{
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("url.path", r.URL.Path),
			}
			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(r)...)
			}

			spanCtx, span := config.tracer.Start(
				r.Context(),
				fmt.Sprintf("%s %s", r.Method, route),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(time.Now()),
			)
			defer span.End()

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(spanCtx))

			span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
