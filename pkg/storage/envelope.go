package storage

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Envelope wraps a stored payload together with its optional absolute
// expiry time. It is the unit persisted by backends that have no native
// notion of per-key TTLs.
type Envelope struct {
	// ExpiresAt is the UTC instant after which the payload is considered
	// gone. Nil means the value never expires.
	ExpiresAt *time.Time `cbor:"expires_at"`

	// Data is the opaque payload.
	Data []byte `cbor:"data"`
}

// NewEnvelope builds an Envelope, converting a relative TTL into an
// absolute UTC expiry. A non-positive expiresIn produces an envelope
// without expiry.
func NewEnvelope(data []byte, expiresIn time.Duration) Envelope {
	env := Envelope{Data: data}
	if expiresIn > 0 {
		at := time.Now().UTC().Add(expiresIn)
		env.ExpiresAt = &at
	}
	return env
}

// Expired reports whether the envelope's expiry has passed at now.
func (e Envelope) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime at now. The boolean is false
// when no expiry was set.
func (e Envelope) ExpiresIn(now time.Time) (time.Duration, bool) {
	if e.ExpiresAt == nil {
		return 0, false
	}
	return e.ExpiresAt.Sub(now), true
}

// Renew slides the expiry forward by renewFor from now. Envelopes without
// an expiry are left untouched.
func (e *Envelope) Renew(now time.Time, renewFor time.Duration) {
	if e.ExpiresAt == nil || renewFor <= 0 {
		return
	}
	at := now.UTC().Add(renewFor)
	e.ExpiresAt = &at
}

// Encode serializes the envelope to its binary wire form.
func (e Envelope) Encode() ([]byte, error) {
	return cbor.Marshal(e)
}

// DecodeEnvelope parses an envelope previously produced by Encode.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	err := cbor.Unmarshal(raw, &env)
	return env, err
}
