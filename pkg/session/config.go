package session

import (
	"net/http"
	"time"

	"github.com/gantry-web/gantry/pkg/httperr"
)

// DefaultMaxAge is how long a session stays valid unless configured
// otherwise.
const DefaultMaxAge = 14 * 24 * time.Hour

// Config holds the settings shared by both session backends. Secret is
// only used by the cookie backend; everything else also shapes the
// session-ID cookie emitted by the store backend.
type Config struct {
	// Secret is the AES key. Its length selects the cipher strength and
	// must be exactly 16, 24 or 32 bytes.
	Secret []byte

	// Key is the cookie name. Chunked cookies append "-<n>" to it.
	Key string

	// MaxAge bounds the session lifetime.
	MaxAge time.Duration

	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultConfig returns a Config with the given secret and conventional
// cookie attributes.
func DefaultConfig(secret []byte) Config {
	return Config{
		Secret:   secret,
		Key:      "session",
		MaxAge:   DefaultMaxAge,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Validate checks the config and returns a configuration error describing
// the first problem found.
func (c Config) Validate() error {
	if len(c.Key) < 1 || len(c.Key) > 256 {
		return httperr.Config("session key must be between 1 and 256 characters")
	}
	if c.MaxAge <= 0 {
		return httperr.Config("session max age must be greater than 0")
	}
	switch len(c.Secret) {
	case 16, 24, 32:
	default:
		return httperr.Config("session secret length must be 16 (128 bit), 24 (192 bit) or 32 (256 bit)")
	}
	return nil
}

// cookie builds an http.Cookie carrying value under name with the
// configured attributes.
func (c Config) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   int(c.MaxAge / time.Second),
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}

// clearingCookie builds a cookie that expires name immediately. The value
// "null" matches what clients already hold for cleared sessions.
func (c Config) clearingCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "null",
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   -1,
		Secure:   c.Secure,
		HttpOnly: c.HTTPOnly,
		SameSite: c.SameSite,
	}
}
