// Package ws implements the server side of a WebSocket connection as a
// small event-driven state machine layered over a pluggable Transport.
//
// A connection moves through four states: it starts in init, becomes
// connected once the handshake event is observed, alternates between
// connect and receive while traffic flows, and ends in disconnect, which
// is terminal. Sends are rejected after disconnect, and receives after
// disconnect fail without touching the transport.
//
// A Conn is owned by a single goroutine; it is not safe for concurrent
// use.
package ws
