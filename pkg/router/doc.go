// Package router builds an application's route table from handlers,
// controllers and nested routers, then compiles it onto a chi mux for
// dispatch.
//
// Registration is explicit: handlers are constructed with builders
// (NewHTTPHandler, NewWebSocketHandler, NewMountHandler) that validate
// their configuration eagerly, and Register flattens controllers and
// nested routers into Route entries keyed by path. HTTP handlers for the
// same path merge into a single Route; a path can carry at most one
// WebSocket or mount handler.
//
// The route table is mutated only during startup. Compile produces a
// read-only http.Handler, so request dispatch needs no locking.
package router
