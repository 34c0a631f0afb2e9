// Package gantry is a web application framework built around an explicit
// route table, encrypted or store-backed sessions, a pluggable expiring
// key/value storage layer and a WebSocket state machine.
//
// An application wires handlers into a router, wraps the router in an
// App and serves it:
//
//	hello, _ := router.NewHTTPHandler(func(w http.ResponseWriter, r *http.Request) error {
//	    fmt.Fprint(w, "hello")
//	    return nil
//	}, router.WithPath("/hello"))
//
//	app, _ := gantry.NewApp(gantry.WithSessionSecret(secret))
//	app.MustRegister(hello)
//	app.ListenAndServe(ctx, ":8080")
package gantry
