package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gantry-web/gantry/pkg/httperr"
	"github.com/gantry-web/gantry/pkg/storage"
)

// sessionIDBytes is the entropy of a generated session ID; the cookie
// carries its base64url encoding.
const sessionIDBytes = 32

// StoreBackend keeps session payloads server-side in a storage engine.
// The client only holds an opaque session ID, so payload size is
// unbounded and sessions can be revoked centrally.
type StoreBackend struct {
	config Config
	store  storage.Storage
}

// NewStoreBackend validates the config and binds the backend to a storage
// engine. The config secret is not used; only cookie attributes and the
// max age apply.
func NewStoreBackend(cfg Config, store storage.Storage) (*StoreBackend, error) {
	if len(cfg.Key) < 1 || len(cfg.Key) > 256 {
		return nil, httperr.Config("session key must be between 1 and 256 characters")
	}
	if cfg.MaxAge <= 0 {
		return nil, httperr.Config("session max age must be greater than 0")
	}
	if store == nil {
		return nil, httperr.Config("store backend requires a storage engine")
	}
	return &StoreBackend{config: cfg, store: store}, nil
}

func generateSessionID() (string, error) {
	raw := make([]byte, sessionIDBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func (b *StoreBackend) sessionID(r *http.Request) string {
	c, err := r.Cookie(b.config.Key)
	if err != nil || c.Value == "" || c.Value == "null" {
		return ""
	}
	return c.Value
}

// Load fetches the session payload for the request's session ID and
// slides its expiry forward by the configured max age. A missing ID,
// missing payload or undecodable payload loads as an empty session.
func (b *StoreBackend) Load(r *http.Request) (map[string]any, error) {
	id := b.sessionID(r)
	if id == "" {
		return map[string]any{}, nil
	}

	data, err := b.store.Get(r.Context(), id, b.config.MaxAge)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return map[string]any{}, nil
	}

	var session map[string]any
	if err := json.Unmarshal(data, &session); err != nil || session == nil {
		return map[string]any{}, nil
	}
	return session, nil
}

// Store persists the session and sets the ID cookie. An empty session
// deletes the stored payload and expires the cookie.
func (b *StoreBackend) Store(w http.ResponseWriter, r *http.Request, session map[string]any) error {
	id := b.sessionID(r)

	if len(session) == 0 {
		if id != "" {
			if err := b.store.Delete(r.Context(), id); err != nil {
				return err
			}
			http.SetCookie(w, b.config.clearingCookie(b.config.Key))
		}
		return nil
	}

	if id == "" {
		var err error
		if id, err = generateSessionID(); err != nil {
			return err
		}
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	if err := b.store.Set(r.Context(), id, data, b.config.MaxAge); err != nil {
		return err
	}
	http.SetCookie(w, b.config.cookie(b.config.Key, id))
	return nil
}
