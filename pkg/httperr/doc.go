// Package httperr defines the framework error taxonomy and the handler
// resolution used to turn errors raised during a request into structured
// HTTP responses.
//
// Errors fall into three groups: configuration errors (fatal, raised while
// the application is being assembled), protocol errors (surfaced to the
// caller as typed errors during a request) and request errors carrying an
// HTTP status code. A Resolver maps a request-time error to a handler by
// checking status-code registrations first, then an ordered list of
// predicate rules, then an optional generic 500 fallback.
package httperr
