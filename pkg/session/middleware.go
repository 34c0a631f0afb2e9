package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Backend loads a session from a request and stores it back into a
// response. Both session backends implement it.
type Backend interface {
	Load(r *http.Request) (map[string]any, error)
	Store(w http.ResponseWriter, r *http.Request, session map[string]any) error
}

// Session is the per-request mutable session mapping handlers work with.
// It is safe for concurrent use.
type Session struct {
	mu       sync.RWMutex
	values   map[string]any
	modified bool
}

func newSession(values map[string]any) *Session {
	if values == nil {
		values = map[string]any{}
	}
	return &Session{values: values}
}

// Get returns the value stored under key, or nil.
func (s *Session) Get(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set stores value under key.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.modified = true
}

// Delete removes key from the session.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.modified = true
}

// Clear empties the session, which expires its cookies on the next
// response.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]any{}
	s.modified = true
}

// Values returns a copy of the session mapping.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Modified reports whether the session changed during the request.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

type contextKey struct{}

// FromContext returns the request's session, or nil when the session
// middleware is not installed.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// Middleware loads the session before the handler runs and stores it back
// just before the first byte of the response is written. Cookies have to
// ride on the response headers, so the store happens on header flush, not
// after the handler returns.
func Middleware(backend Backend, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			values, err := backend.Load(r)
			if err != nil {
				logger.Error("session load failed", "error", err)
				values = map[string]any{}
			}
			sess := newSession(values)

			sw := &sessionWriter{
				ResponseWriter: w,
				beforeHeader: func() {
					if err := backend.Store(w, r, sess.Values()); err != nil {
						logger.Error("session store failed", "error", err)
					}
				},
			}

			ctx := context.WithValue(r.Context(), contextKey{}, sess)
			next.ServeHTTP(sw, r.WithContext(ctx))

			// Handlers that never write still need the session flushed.
			sw.flushSession()
		})
	}
}

// sessionWriter defers session persistence until the response headers are
// about to go out.
type sessionWriter struct {
	http.ResponseWriter
	beforeHeader func()
	flushed      bool
}

func (w *sessionWriter) flushSession() {
	if w.flushed {
		return
	}
	w.flushed = true
	w.beforeHeader()
}

func (w *sessionWriter) WriteHeader(status int) {
	w.flushSession()
	w.ResponseWriter.WriteHeader(status)
}

func (w *sessionWriter) Write(p []byte) (int, error) {
	w.flushSession()
	return w.ResponseWriter.Write(p)
}

func (w *sessionWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
