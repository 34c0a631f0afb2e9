package router

import (
	"github.com/gantry-web/gantry/pkg/httperr"
)

// Controller groups handlers under a shared path prefix. Implementations
// are plain structs exposing their handlers; Register collects them bound
// to the registering router's prefix.
type Controller interface {
	BasePath() string
	Handlers() []*Handler
}

// Router owns a slice of the route table under a path prefix. Routers
// nest: registering a router onto another merges their tables under the
// joined prefix.
type Router struct {
	path       string
	middleware []Middleware
	guards     []Guard

	// dependencies are named values inherited by every handler registered
	// under this router; handler-level entries win on key collision.
	dependencies map[string]any

	routes []*Route

	arena *arena
	index int
}

// RouterOption configures a Router at construction.
type RouterOption func(*Router)

// WithRouterMiddleware attaches middleware applied to every route the
// router serves, including nested routers.
func WithRouterMiddleware(mw ...Middleware) RouterOption {
	return func(r *Router) { r.middleware = append(r.middleware, mw...) }
}

// WithRouterGuards attaches guards checked before every handler the
// router serves, ahead of the handlers' own guards.
func WithRouterGuards(guards ...Guard) RouterOption {
	return func(r *Router) { r.guards = append(r.guards, guards...) }
}

// WithRouterDependency exposes a named value to every handler registered
// under the router.
func WithRouterDependency(name string, value any) RouterOption {
	return func(r *Router) {
		if r.dependencies == nil {
			r.dependencies = map[string]any{}
		}
		r.dependencies[name] = value
	}
}

// New creates a router rooted at path.
func New(path string, opts ...RouterOption) *Router {
	r := &Router{path: normalizePath(path)}
	r.arena = newArena(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the router's own prefix.
func (r *Router) Path() string { return r.path }

// Routes returns the router's route table in registration order.
func (r *Router) Routes() []*Route { return r.routes }

// Register adds a registration target to the route table and returns the
// routes it affected. The target must be a *Handler, a *Router or a
// Controller; anything else is a configuration error.
func (r *Router) Register(value any) ([]*Route, error) {
	switch target := value.(type) {
	case *Handler:
		if target == nil {
			return nil, httperr.Config("cannot register a nil handler")
		}
		route, err := r.registerHandler(r.path, target)
		if err != nil {
			return nil, err
		}
		return []*Route{route}, nil

	case *Router:
		if target == nil {
			return nil, httperr.Config("cannot register a nil router")
		}
		return r.registerRouter(target)

	case Controller:
		return r.registerController(target)

	default:
		return nil, httperr.Config("cannot register value of type %T: expected *Handler, *Router or Controller", value)
	}
}

// MustRegister is Register for static route tables assembled at startup;
// it panics on configuration errors.
func (r *Router) MustRegister(value any) []*Route {
	routes, err := r.Register(value)
	if err != nil {
		panic(err)
	}
	return routes
}

func (r *Router) registerController(c Controller) ([]*Route, error) {
	handlers := c.Handlers()
	if len(handlers) == 0 {
		return nil, httperr.Config("controller at %s exposes no handlers", c.BasePath())
	}
	prefix := joinPaths(r.path, c.BasePath())
	var affected []*Route
	for _, h := range handlers {
		if h == nil {
			return nil, httperr.Config("controller at %s contains a nil handler", c.BasePath())
		}
		route, err := r.registerHandler(prefix, h)
		if err != nil {
			return nil, err
		}
		affected = append(affected, route)
	}
	return dedupeRoutes(affected), nil
}

func (r *Router) registerRouter(child *Router) ([]*Route, error) {
	if err := r.arena.adopt(r.index, child); err != nil {
		return nil, err
	}
	var affected []*Route
	for _, childRoute := range child.routes {
		full := joinPaths(r.path, childRoute.Path)
		for i := len(childRoute.handlers) - 1; i >= 0; i-- {
			h := childRoute.handlers[i]
			route, err := r.mergeAt(full, h, child)
			if err != nil {
				return nil, err
			}
			affected = append(affected, route)
		}
	}
	return dedupeRoutes(affected), nil
}

func (r *Router) registerHandler(prefix string, h *Handler) (*Route, error) {
	full := joinPaths(prefix, h.path)
	return r.mergeAt(full, h, nil)
}

// mergeAt folds a handler into the route at path, creating the route if
// the path is new. A non-nil from is the nested router whose cross-cutting
// config (middleware, guards, dependencies) the handler inherits. Merging
// replaces the existing Route value with a fresh one carrying the union of
// handlers, so previously returned routes stay immutable.
func (r *Router) mergeAt(path string, h *Handler, from *Router) (*Route, error) {
	if from != nil && (len(from.middleware) > 0 || len(from.guards) > 0 || len(from.dependencies) > 0) {
		wrapped := *h
		wrapped.middleware = append(append([]Middleware{}, from.middleware...), h.middleware...)
		wrapped.guards = append(append([]Guard{}, from.guards...), h.guards...)
		wrapped.dependencies = mergeDependencies(from.dependencies, h.dependencies)
		h = &wrapped
	}

	existing, pos := r.findRoute(path)
	if existing == nil {
		route := newRoute(path)
		if err := route.add(h); err != nil {
			return nil, err
		}
		r.routes = append(r.routes, route)
		return route, nil
	}

	merged := newRoute(path)
	merged.byMethod = make(map[string]*Handler, len(existing.byMethod)+1)
	for m, eh := range existing.byMethod {
		merged.byMethod[m] = eh
	}
	merged.handlers = append([]*Handler{}, existing.handlers...)
	if err := merged.add(h); err != nil {
		return nil, err
	}
	if err := r.updateRoute(pos, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// findRoute scans the table for an exact path match. The table is small
// and only consulted during startup, so a linear scan is fine.
func (r *Router) findRoute(path string) (*Route, int) {
	for i, route := range r.routes {
		if route.Path == path {
			return route, i
		}
	}
	return nil, -1
}

// updateRoute swaps the route at pos. A miss here means the table was
// mutated between lookup and update, which cannot happen during
// single-threaded startup registration; treat it as fatal.
func (r *Router) updateRoute(pos int, route *Route) error {
	if pos < 0 || pos >= len(r.routes) || r.routes[pos].Path != route.Path {
		return httperr.Config("route table lost entry for %s during merge", route.Path)
	}
	r.routes[pos] = route
	return nil
}

// HandlerMap flattens the route table into path → method → handler.
func (r *Router) HandlerMap() map[string]map[string]*Handler {
	out := make(map[string]map[string]*Handler, len(r.routes))
	for _, route := range r.routes {
		methods := make(map[string]*Handler, len(route.byMethod))
		for m, h := range route.byMethod {
			methods[m] = h
		}
		out[route.Path] = methods
	}
	return out
}

// mergeDependencies overlays override onto base without mutating either.
func mergeDependencies(base, override map[string]any) map[string]any {
	if len(base) == 0 {
		return override
	}
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// dedupeRoutes collapses repeated paths, keeping the most recent Route
// value for each since merges replace earlier ones.
func dedupeRoutes(routes []*Route) []*Route {
	byPath := map[string]int{}
	var out []*Route
	for _, rt := range routes {
		if i, ok := byPath[rt.Path]; ok {
			out[i] = rt
			continue
		}
		byPath[rt.Path] = len(out)
		out = append(out, rt)
	}
	return out
}
