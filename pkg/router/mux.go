package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gantry-web/gantry/pkg/httperr"
	"github.com/gantry-web/gantry/pkg/ws"
)

type compiler struct {
	upgrader   *websocket.Upgrader
	errHandler httperr.Handler
	logger     *slog.Logger

	// cross-cutting config of the compiled router, applied ahead of each
	// handler's own guards and dependencies.
	guards []Guard
	deps   map[string]any
}

// CompileOption configures route table compilation.
type CompileOption func(*compiler)

// WithUpgrader sets the WebSocket upgrader used by websocket routes.
func WithUpgrader(u *websocket.Upgrader) CompileOption {
	return func(c *compiler) { c.upgrader = u }
}

// WithErrorHandler routes handler errors somewhere other than the default
// JSON error response, typically an httperr.Resolver.
func WithErrorHandler(h httperr.Handler) CompileOption {
	return func(c *compiler) { c.errHandler = h }
}

// WithLogger sets the logger for upgrade and handler failures that have
// no response to attach to.
func WithLogger(logger *slog.Logger) CompileOption {
	return func(c *compiler) { c.logger = logger }
}

// Compile freezes the route table onto a chi mux. The returned handler is
// read-only; later Register calls do not affect it.
func (r *Router) Compile(opts ...CompileOption) (http.Handler, error) {
	c := &compiler{
		errHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			httperr.WriteResponse(w, err)
		},
		logger: slog.Default(),
		guards: r.guards,
		deps:   r.dependencies,
	}
	for _, opt := range opts {
		opt(c)
	}

	mux := chi.NewRouter()
	for _, mw := range r.middleware {
		mux.Use(mw)
	}

	for _, route := range r.routes {
		if err := c.mountRoute(mux, route); err != nil {
			return nil, err
		}
	}

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		c.errHandler(w, req, httperr.NotFound("no route for %s", req.URL.Path))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		c.errHandler(w, req, httperr.MethodNotAllowed("method %s not allowed for %s", req.Method, req.URL.Path))
	})

	return mux, nil
}

func (c *compiler) mountRoute(mux *chi.Mux, route *Route) error {
	if h := route.Handler(MethodMount); h != nil {
		mux.Mount(route.Path, c.applyMiddleware(h, c.guarded(h, h.mount)))
		return nil
	}
	if h := route.Handler(MethodWebSocket); h != nil {
		mux.Method(http.MethodGet, route.Path, c.applyMiddleware(h, c.guarded(h, c.websocketHandler(h))))
		return nil
	}

	for _, method := range route.Methods() {
		h := route.Handler(method)
		mux.Method(method, route.Path, c.applyMiddleware(h, c.guarded(h, c.httpHandler(h))))
	}
	if route.Handler(http.MethodOptions) == nil {
		// The synthesized OPTIONS response passes through the same
		// middleware as the route's most recent handler.
		fallback := &Handler{
			kind:       kindHTTP,
			fn:         route.optionsHandler(),
			middleware: route.handlers[0].middleware,
		}
		mux.Method(http.MethodOptions, route.Path, c.applyMiddleware(fallback, c.httpHandler(fallback)))
	}
	return nil
}

// guarded runs the compiled router's guards then the handler's own, and
// exposes the merged dependency map through the request context. Guard
// failures go to the error handler without reaching the handler.
func (c *compiler) guarded(h *Handler, inner http.Handler) http.Handler {
	guards := append(append([]Guard{}, c.guards...), h.guards...)
	deps := mergeDependencies(c.deps, h.dependencies)
	if len(guards) == 0 && len(deps) == 0 {
		return inner
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(deps) > 0 {
			r = r.WithContext(withDependencies(r.Context(), deps))
		}
		for _, guard := range guards {
			if err := guard(r); err != nil {
				c.errHandler(w, r, err)
				return
			}
		}
		inner.ServeHTTP(w, r)
	})
}

func (c *compiler) httpHandler(h *Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.fn(w, r); err != nil {
			c.errHandler(w, r, err)
		}
	})
}

func (c *compiler) websocketHandler(h *Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Upgrade(c.upgrader, w, r)
		if err != nil {
			// Upgrade already wrote the failure response.
			c.logger.Error("websocket upgrade failed", "path", r.URL.Path, "error", err)
			return
		}
		if err := h.wsFn(r, conn); err != nil && !ws.IsDisconnect(err) {
			c.logger.Error("websocket handler failed", "path", r.URL.Path, "error", err)
		}
		_ = conn.Close(r.Context(), ws.CloseNormal, "")
	})
}

func (c *compiler) applyMiddleware(h *Handler, inner http.Handler) http.Handler {
	wrapped := inner
	for i := len(h.middleware) - 1; i >= 0; i-- {
		wrapped = h.middleware[i](wrapped)
	}
	return wrapped
}
