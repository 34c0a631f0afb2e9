package gantry

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gantry-web/gantry/pkg/httperr"
	"github.com/gantry-web/gantry/pkg/router"
	"github.com/gantry-web/gantry/pkg/session"
	"github.com/gantry-web/gantry/pkg/storage"
	"github.com/gantry-web/gantry/pkg/ws"
)

// App is the application entry point. It owns the root router, the error
// resolver, the session backend and optional shared storage, and compiles
// them into a single http.Handler.
type App struct {
	router   *router.Router
	resolver *httperr.Resolver
	logger   *slog.Logger

	store          storage.Storage
	sessionBackend session.Backend
	sessionConfig  session.Config
	middleware     []router.Middleware
	upgrader       *websocket.Upgrader

	// securitySchemes is metadata for external API document assemblers;
	// the app itself only records it.
	securitySchemes map[string]any

	compileOnce sync.Once
	compiled    http.Handler
	compileErr  error
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the application logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithSessionSecret enables encrypted cookie sessions with the given
// secret (16, 24 or 32 bytes).
func WithSessionSecret(secret []byte) Option {
	return func(a *App) {
		cfg := session.DefaultConfig(secret)
		a.sessionConfig = cfg
	}
}

// WithSessionConfig overrides the full session configuration.
func WithSessionConfig(cfg session.Config) Option {
	return func(a *App) { a.sessionConfig = cfg }
}

// WithStorage attaches a shared storage engine. When set together with a
// session config lacking a secret, sessions are kept server-side in this
// store.
func WithStorage(store storage.Storage) Option {
	return func(a *App) { a.store = store }
}

// WithMiddleware appends application-wide middleware, outermost first.
func WithMiddleware(mw ...router.Middleware) Option {
	return func(a *App) { a.middleware = append(a.middleware, mw...) }
}

// WithResolver replaces the default error resolver.
func WithResolver(r *httperr.Resolver) Option {
	return func(a *App) { a.resolver = r }
}

// WithUpgrader sets the WebSocket upgrader for websocket routes.
func WithUpgrader(u *websocket.Upgrader) Option {
	return func(a *App) { a.upgrader = u }
}

// WithSecurityScheme records a named security scheme for external
// OpenAPI document assemblers. The app does not interpret it.
func WithSecurityScheme(name string, scheme any) Option {
	return func(a *App) { a.securitySchemes[name] = scheme }
}

// NewApp builds an application. Configuration problems, like an invalid
// session secret, surface here rather than at first request.
func NewApp(opts ...Option) (*App, error) {
	a := &App{
		router:          router.New("/"),
		logger:          slog.Default(),
		securitySchemes: map[string]any{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.resolver == nil {
		a.resolver = defaultResolver()
	}

	if len(a.sessionConfig.Secret) > 0 {
		backend, err := session.NewCookieBackend(a.sessionConfig)
		if err != nil {
			return nil, err
		}
		a.sessionBackend = backend
	} else if a.sessionConfig.Key != "" && a.store != nil {
		backend, err := session.NewStoreBackend(a.sessionConfig, a.store)
		if err != nil {
			return nil, err
		}
		a.sessionBackend = backend
	}

	return a, nil
}

// defaultResolver maps framework error types onto responses: typed HTTP
// errors keep their status, WebSocket disconnects and configuration
// errors become 500s, and any other error hits the generic 500 handler,
// which never echoes internal error text to the client.
func defaultResolver() *httperr.Resolver {
	r := httperr.NewResolver()
	httperr.OnType[*ws.DisconnectError](r, func(w http.ResponseWriter, _ *http.Request, err error) {
		httperr.WriteResponse(w, httperr.New(http.StatusInternalServerError, "").Wrap(err))
	})
	httperr.OnType[*httperr.ConfigError](r, func(w http.ResponseWriter, _ *http.Request, err error) {
		httperr.WriteResponse(w, httperr.New(http.StatusInternalServerError, "").Wrap(err))
	})
	r.OnStatus(http.StatusInternalServerError, func(w http.ResponseWriter, _ *http.Request, err error) {
		httperr.WriteResponse(w, httperr.New(http.StatusInternalServerError, "").Wrap(err))
	})
	return r
}

// Router exposes the root router for registration.
func (a *App) Router() *router.Router { return a.router }

// Register adds a handler, controller or nested router to the app's
// route table.
func (a *App) Register(value any) ([]*router.Route, error) {
	return a.router.Register(value)
}

// MustRegister is Register that panics on configuration errors.
func (a *App) MustRegister(value any) []*router.Route {
	return a.router.MustRegister(value)
}

// Storage returns the app's shared storage engine, or nil.
func (a *App) Storage() storage.Storage { return a.store }

// SecuritySchemes returns the recorded security scheme metadata.
func (a *App) SecuritySchemes() map[string]any { return a.securitySchemes }

// Handler compiles the route table into an http.Handler. The first call
// freezes the table; registrations after that are not served.
func (a *App) Handler() (http.Handler, error) {
	a.compileOnce.Do(func() {
		mux, err := a.router.Compile(
			router.WithErrorHandler(a.resolver.Handle),
			router.WithUpgrader(a.upgrader),
			router.WithLogger(a.logger),
		)
		if err != nil {
			a.compileErr = err
			return
		}

		h := mux
		if a.sessionBackend != nil {
			h = session.Middleware(a.sessionBackend, a.logger)(h)
		}
		for i := len(a.middleware) - 1; i >= 0; i-- {
			h = a.middleware[i](h)
		}
		a.compiled = a.recoverer(h)
	})
	return a.compiled, a.compileErr
}

// ServeHTTP implements http.Handler. Compilation errors surface as 500s
// through the resolver.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, err := a.Handler()
	if err != nil {
		a.logger.Error("route table compilation failed", "error", err)
		a.resolver.Handle(w, r, err)
		return
	}
	h.ServeHTTP(w, r)
}

// ListenAndServe starts an HTTP server on addr. It blocks until the
// context is cancelled, then shuts down gracefully.
func (a *App) ListenAndServe(ctx context.Context, addr string) error {
	if _, err := a.Handler(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// recoverer converts handler panics into resolver-handled errors so a
// panicking route cannot take down the server.
func (a *App) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.logger.Error("panic in handler", "path", r.URL.Path, "panic", rec)
				a.resolver.Handle(w, r, httperr.Internal("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
