package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gantry-web/gantry/pkg/httperr"
)

// Route is one entry in the route table: a path and the handlers serving
// it, keyed by HTTP method or by a non-HTTP sentinel. At most one
// WebSocket or mount handler may own a path.
type Route struct {
	Path string

	// byMethod maps an HTTP method or sentinel to its handler.
	byMethod map[string]*Handler

	// handlers preserves registration order, newest first.
	handlers []*Handler
}

func newRoute(path string) *Route {
	return &Route{Path: path, byMethod: map[string]*Handler{}}
}

// Methods returns the methods served at this path, sorted.
func (rt *Route) Methods() []string {
	methods := make([]string, 0, len(rt.byMethod))
	for m := range rt.byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Handler returns the handler registered for method, or nil.
func (rt *Route) Handler(method string) *Handler {
	return rt.byMethod[method]
}

// Handlers returns the route's handlers, most recently registered first.
func (rt *Route) Handlers() []*Handler {
	return rt.handlers
}

// IsHTTP reports whether the route serves plain HTTP methods.
func (rt *Route) IsHTTP() bool {
	_, isWS := rt.byMethod[MethodWebSocket]
	_, isMount := rt.byMethod[MethodMount]
	return !isWS && !isMount
}

// add merges a handler into the route. New handlers are prepended so the
// most recent registration is visible first; a duplicate method is a
// configuration error.
func (rt *Route) add(h *Handler) error {
	for _, method := range h.Methods() {
		if existing, ok := rt.byMethod[method]; ok {
			return httperr.Config("handler %q for %s %s conflicts with existing handler %q",
				h.name, method, rt.Path, existing.name)
		}
	}
	if !rt.IsHTTP() || h.kind != kindHTTP {
		if len(rt.handlers) > 0 {
			return httperr.Config("path %s already has a non-HTTP handler", rt.Path)
		}
	}
	for _, method := range h.Methods() {
		rt.byMethod[method] = h
	}
	rt.handlers = append([]*Handler{h}, rt.handlers...)
	return nil
}

// allowHeader lists the methods for an auto-generated OPTIONS response.
func (rt *Route) allowHeader() string {
	methods := rt.Methods()
	if _, ok := rt.byMethod[http.MethodOptions]; !ok {
		methods = append(methods, http.MethodOptions)
		sort.Strings(methods)
	}
	return strings.Join(methods, ", ")
}

// optionsHandler answers OPTIONS for routes that did not register one.
func (rt *Route) optionsHandler() HTTPFunc {
	allow := rt.allowHeader()
	return func(w http.ResponseWriter, r *http.Request) error {
		w.Header().Set("Allow", allow)
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}
