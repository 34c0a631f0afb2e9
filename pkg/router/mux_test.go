package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gantry-web/gantry/pkg/httperr"
	"github.com/gantry-web/gantry/pkg/ws"
)

func compile(t *testing.T, r *Router, opts ...CompileOption) http.Handler {
	t.Helper()
	h, err := r.Compile(opts...)
	require.NoError(t, err)
	return h
}

func TestCompileDispatch(t *testing.T) {
	r := New("/")

	get, err := NewHTTPHandler(func(w http.ResponseWriter, _ *http.Request) error {
		fmt.Fprint(w, "get")
		return nil
	}, WithPath("/x"))
	require.NoError(t, err)
	post, err := NewHTTPHandler(func(w http.ResponseWriter, _ *http.Request) error {
		fmt.Fprint(w, "post")
		return nil
	}, WithPath("/x"), WithMethods(http.MethodPost))
	require.NoError(t, err)

	_, err = r.Register(get)
	require.NoError(t, err)
	_, err = r.Register(post)
	require.NoError(t, err)

	mux := compile(t, r)

	tests := []struct {
		method   string
		path     string
		status   int
		body     string
	}{
		{http.MethodGet, "/x", http.StatusOK, "get"},
		{http.MethodPost, "/x", http.StatusOK, "post"},
		{http.MethodDelete, "/x", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
		if tt.body != "" {
			assert.Equal(t, tt.body, w.Body.String())
		}
	}
}

func TestCompileAutoOptions(t *testing.T) {
	r := New("/")
	_, err := r.Register(mustHTTP(t, WithPath("/x"), WithMethods(http.MethodGet, http.MethodPost)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, r).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	allow := w.Header().Get("Allow")
	for _, m := range []string{"GET", "POST", "OPTIONS"} {
		assert.Contains(t, allow, m)
	}
}

func TestCompileGuards(t *testing.T) {
	deny := func(r *http.Request) error {
		if r.Header.Get("X-Token") != "secret" {
			return httperr.Forbidden("missing token")
		}
		return nil
	}

	r := New("/", WithRouterGuards(deny))
	handlerRan := false
	h, err := NewHTTPHandler(func(w http.ResponseWriter, _ *http.Request) error {
		handlerRan = true
		return nil
	}, WithPath("/x"))
	require.NoError(t, err)
	_, err = r.Register(h)
	require.NoError(t, err)

	mux := compile(t, r)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":403`)
	assert.False(t, handlerRan, "guard failure must not reach the handler")

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Token", "secret")
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, handlerRan)
}

func TestCompileGuardOrder(t *testing.T) {
	var order []string
	tag := func(name string) Guard {
		return func(*http.Request) error {
			order = append(order, name)
			return nil
		}
	}

	child := New("/api", WithRouterGuards(tag("router")))
	h, err := NewHTTPHandler(okFunc, WithPath("/x"), WithGuards(tag("handler")))
	require.NoError(t, err)
	_, err = child.Register(h)
	require.NoError(t, err)

	root := New("/", WithRouterGuards(tag("root")))
	_, err = root.Register(child)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, root).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"root", "router", "handler"}, order)
}

func TestCompileGuardInheritance(t *testing.T) {
	child := New("/admin", WithRouterGuards(func(*http.Request) error {
		return httperr.Unauthorized("admin only")
	}))
	_, err := child.Register(mustHTTP(t, WithPath("/panel")))
	require.NoError(t, err)

	root := New("/")
	_, err = root.Register(child)
	require.NoError(t, err)
	_, err = root.Register(mustHTTP(t, WithPath("/open")))
	require.NoError(t, err)

	mux := compile(t, root)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/panel", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, w.Code, "sibling routes must not inherit the nested router's guards")
}

func TestCompileDependencies(t *testing.T) {
	child := New("/api",
		WithRouterDependency("store", "router-store"),
		WithRouterDependency("cache", "router-cache"),
	)
	h, err := NewHTTPHandler(func(w http.ResponseWriter, r *http.Request) error {
		store, _ := Dependency(r.Context(), "store")
		cache, _ := Dependency(r.Context(), "cache")
		fmt.Fprintf(w, "%v %v", store, cache)
		return nil
	}, WithPath("/x"), WithDependency("store", "handler-store"))
	require.NoError(t, err)
	_, err = child.Register(h)
	require.NoError(t, err)

	root := New("/")
	_, err = root.Register(child)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, root).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "handler-store router-cache", w.Body.String())
}

func TestCompileAutoOptionsMiddleware(t *testing.T) {
	stamp := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Stamped", "yes")
			next.ServeHTTP(w, r)
		})
	}

	r := New("/")
	_, err := r.Register(mustHTTP(t, WithPath("/x"), WithMiddleware(stamp)))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, r).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Stamped"), "per-route middleware must wrap the synthesized OPTIONS handler")
	assert.Contains(t, w.Header().Get("Allow"), "OPTIONS")
}

func TestCompileErrorHandling(t *testing.T) {
	r := New("/")
	failing, err := NewHTTPHandler(func(http.ResponseWriter, *http.Request) error {
		return fmt.Errorf("backend down")
	}, WithPath("/fail"))
	require.NoError(t, err)
	_, err = r.Register(failing)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"status_code":500`)
}

func TestCompileMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	r := New("/", WithRouterMiddleware(tag("router")))
	h, err := NewHTTPHandler(func(w http.ResponseWriter, _ *http.Request) error {
		order = append(order, "handler")
		return nil
	}, WithPath("/x"), WithMiddleware(tag("route")))
	require.NoError(t, err)
	_, err = r.Register(h)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, []string{"router", "route", "handler"}, order)
}

func TestCompileMount(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "mounted:", r.URL.Path)
	})

	r := New("/")
	mount, err := NewMountHandler(inner, WithPath("/sub"))
	require.NoError(t, err)
	_, err = r.Register(mount)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	compile(t, r).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sub/deep/path", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mounted:")
}

func TestCompileWebSocket(t *testing.T) {
	r := New("/")
	echo, err := NewWebSocketHandler(func(req *http.Request, conn *ws.Conn) error {
		for {
			msg, err := conn.ReceiveText(req.Context())
			if err != nil {
				return err
			}
			if err := conn.SendText(req.Context(), "echo: "+msg); err != nil {
				return err
			}
		}
	}, WithPath("/echo"))
	require.NoError(t, err)
	_, err = r.Register(echo)
	require.NoError(t, err)

	srv := httptest.NewServer(compile(t, r))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/echo"
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()
	defer resp.Body.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hi")))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", string(data))
}
