// Package session provides HTTP session handling with two interchangeable
// backends: an encrypted client-side cookie backend that needs no server
// state, and a server-side backend that keeps payloads in a storage engine
// and hands the client only an opaque session ID.
//
// The cookie backend encrypts the session mapping with AES-GCM, binds an
// expiry timestamp into the authenticated associated data, and splits the
// encoded result across as many cookies as needed to stay under the 4 KiB
// cookie limit. Tampered or expired cookies silently load as an empty
// session.
package session
