package router

import (
	"context"
	"net/http"

	"github.com/gantry-web/gantry/pkg/httperr"
	"github.com/gantry-web/gantry/pkg/ws"
)

// Method sentinels for non-HTTP handlers in a route's method map.
const (
	MethodWebSocket = "websocket"
	MethodMount     = "mount"
)

// HTTPFunc is an HTTP route handler. Returned errors are routed through
// the application's error resolver.
type HTTPFunc func(w http.ResponseWriter, r *http.Request) error

// WebSocketFunc handles an upgraded WebSocket connection.
type WebSocketFunc func(r *http.Request, conn *ws.Conn) error

// Middleware wraps a handler in the standard net/http style.
type Middleware func(http.Handler) http.Handler

// Guard is a pre-dispatch predicate. It runs after routing and before the
// handler; a non-nil error rejects the request and is routed through the
// error handler, so guards typically return typed httperr values
// (401, 403).
type Guard func(r *http.Request) error

type handlerKind int

const (
	kindHTTP handlerKind = iota
	kindWebSocket
	kindMount
)

// Handler is a route handler descriptor built by one of the New*Handler
// constructors. A descriptor carries its own relative path, so it can be
// registered directly or collected from a Controller.
type Handler struct {
	kind       handlerKind
	name       string
	path       string
	methods    []string
	fn         HTTPFunc
	wsFn       WebSocketFunc
	mount      http.Handler
	middleware []Middleware
	guards     []Guard

	// dependencies are named values exposed to the handler through the
	// request context. Router-level entries are folded in at registration
	// with handler-level entries winning on key collision.
	dependencies map[string]any
}

// Name returns the handler's registered name, or "" when unnamed.
func (h *Handler) Name() string { return h.name }

// Path returns the handler's relative path.
func (h *Handler) Path() string { return h.path }

// Methods returns the HTTP methods the handler serves, or the sentinel
// method for WebSocket and mount handlers.
func (h *Handler) Methods() []string {
	switch h.kind {
	case kindWebSocket:
		return []string{MethodWebSocket}
	case kindMount:
		return []string{MethodMount}
	default:
		return h.methods
	}
}

// Dependencies returns a copy of the handler's resolved dependency map.
func (h *Handler) Dependencies() map[string]any {
	if len(h.dependencies) == 0 {
		return nil
	}
	out := make(map[string]any, len(h.dependencies))
	for k, v := range h.dependencies {
		out[k] = v
	}
	return out
}

// HandlerOption configures a handler descriptor at construction time.
type HandlerOption func(*Handler)

// WithPath sets the handler's path relative to the router it is
// registered on. Defaults to "/".
func WithPath(path string) HandlerOption {
	return func(h *Handler) { h.path = path }
}

// WithMethods sets the HTTP methods the handler serves. Defaults to GET.
func WithMethods(methods ...string) HandlerOption {
	return func(h *Handler) { h.methods = methods }
}

// WithName attaches a diagnostic name to the handler.
func WithName(name string) HandlerOption {
	return func(h *Handler) { h.name = name }
}

// WithMiddleware wraps the handler with per-route middleware, applied
// innermost-last.
func WithMiddleware(mw ...Middleware) HandlerOption {
	return func(h *Handler) { h.middleware = append(h.middleware, mw...) }
}

// WithGuards attaches pre-dispatch guards to the handler, checked in the
// given order after any inherited router guards.
func WithGuards(guards ...Guard) HandlerOption {
	return func(h *Handler) { h.guards = append(h.guards, guards...) }
}

// WithDependency exposes a named value to the handler through the request
// context, overriding a router-level entry of the same name.
func WithDependency(name string, value any) HandlerOption {
	return func(h *Handler) {
		if h.dependencies == nil {
			h.dependencies = map[string]any{}
		}
		h.dependencies[name] = value
	}
}

type depsContextKey struct{}

func withDependencies(ctx context.Context, deps map[string]any) context.Context {
	return context.WithValue(ctx, depsContextKey{}, deps)
}

// DependenciesFromContext returns the dependency map resolved for the
// current route, or nil outside a compiled route.
func DependenciesFromContext(ctx context.Context) map[string]any {
	deps, _ := ctx.Value(depsContextKey{}).(map[string]any)
	return deps
}

// Dependency looks up one named dependency from the request context.
func Dependency(ctx context.Context, name string) (any, bool) {
	v, ok := DependenciesFromContext(ctx)[name]
	return v, ok
}

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// NewHTTPHandler builds an HTTP handler descriptor. The configuration is
// validated here, at construction, so registration can assume a
// well-formed descriptor.
func NewHTTPHandler(fn HTTPFunc, opts ...HandlerOption) (*Handler, error) {
	if fn == nil {
		return nil, httperr.Config("http handler requires a callable target")
	}
	h := &Handler{kind: kindHTTP, path: "/", fn: fn}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.methods) == 0 {
		h.methods = []string{http.MethodGet}
	}
	seen := map[string]bool{}
	for _, m := range h.methods {
		if !knownMethods[m] {
			return nil, httperr.Config("unknown HTTP method %q", m)
		}
		if seen[m] {
			return nil, httperr.Config("method %q listed twice on handler %q", m, h.name)
		}
		seen[m] = true
	}
	h.path = normalizePath(h.path)
	return h, nil
}

// NewWebSocketHandler builds a WebSocket handler descriptor.
func NewWebSocketHandler(fn WebSocketFunc, opts ...HandlerOption) (*Handler, error) {
	if fn == nil {
		return nil, httperr.Config("websocket handler requires a callable target")
	}
	h := &Handler{kind: kindWebSocket, path: "/", wsFn: fn}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.methods) > 0 {
		return nil, httperr.Config("websocket handler %q cannot declare HTTP methods", h.name)
	}
	h.path = normalizePath(h.path)
	return h, nil
}

// NewMountHandler builds a descriptor that mounts a sub-application at a
// path prefix.
func NewMountHandler(mount http.Handler, opts ...HandlerOption) (*Handler, error) {
	if mount == nil {
		return nil, httperr.Config("mount handler requires a handler to mount")
	}
	h := &Handler{kind: kindMount, path: "/", mount: mount}
	for _, opt := range opts {
		opt(h)
	}
	if len(h.methods) > 0 {
		return nil, httperr.Config("mount handler %q cannot declare HTTP methods", h.name)
	}
	h.path = normalizePath(h.path)
	return h, nil
}
