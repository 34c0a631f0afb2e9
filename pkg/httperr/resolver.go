package httperr

import (
	"errors"
	"net/http"
)

// Handler writes a response for a resolved error.
type Handler func(w http.ResponseWriter, r *http.Request, err error)

// Predicate reports whether a rule applies to the given error. Predicates
// are typically built with errors.As against a concrete error type.
type Predicate func(err error) bool

type rule struct {
	match   Predicate
	handler Handler
}

// Resolver maps request-time errors to handlers.
//
// Resolution order: an exact status-code match wins, then the predicate
// rules are checked in registration order, then the 500 handler (if
// registered) catches any error that does not carry a status code. Register
// rules for the most specific error types first; there is no reflection
// over type hierarchies.
type Resolver struct {
	status map[int]Handler
	rules  []rule
}

// NewResolver creates an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{status: make(map[int]Handler)}
}

// OnStatus registers a handler for errors carrying the given status code.
func (r *Resolver) OnStatus(code int, h Handler) *Resolver {
	r.status[code] = h
	return r
}

// On appends a predicate rule. Rules are checked in the order they were
// registered, so register the most derived error types first.
func (r *Resolver) On(match Predicate, h Handler) *Resolver {
	r.rules = append(r.rules, rule{match: match, handler: h})
	return r
}

// OnType registers a rule matching errors assignable to T via errors.As.
func OnType[T error](r *Resolver, h Handler) *Resolver {
	return r.On(func(err error) bool {
		var target T
		return errors.As(err, &target)
	}, h)
}

// Resolve returns the handler for err, or nil if none is registered.
func (r *Resolver) Resolve(err error) Handler {
	if r == nil {
		return nil
	}

	var httpErr *Error
	hasStatus := errors.As(err, &httpErr)

	if hasStatus {
		if h, ok := r.status[httpErr.StatusCode]; ok {
			return h
		}
	}

	for _, rule := range r.rules {
		if rule.match(err) {
			return rule.handler
		}
	}

	// The generic 500 handler catches errors without a status code.
	if !hasStatus {
		if h, ok := r.status[http.StatusInternalServerError]; ok {
			return h
		}
	}

	return nil
}

// Handle resolves err and invokes the matching handler, falling back to
// WriteResponse when nothing matches.
func (r *Resolver) Handle(w http.ResponseWriter, req *http.Request, err error) {
	if h := r.Resolve(err); h != nil {
		h(w, req, err)
		return
	}
	WriteResponse(w, err)
}
