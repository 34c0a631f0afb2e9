package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"time"
)

const (
	nonceSize = 12
	// Chunks leave headroom under the 4 KiB cookie limit for the cookie
	// name and attributes.
	chunkSize = 4096 - 64
)

// aadMarker separates the ciphertext from the associated data inside the
// encoded cookie payload.
var aadMarker = []byte("additional_authenticated_data=")

type expiryClaim struct {
	ExpiresAt int64 `json:"expires_at"`
}

// CookieBackend stores the whole session, encrypted, on the client.
type CookieBackend struct {
	config   Config
	aead     cipher.AEAD
	cookieRe *regexp.Regexp

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewCookieBackend validates the config and builds the AES-GCM cipher for
// its secret.
func NewCookieBackend(cfg Config) (*CookieBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(cfg.Secret)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &CookieBackend{
		config:   cfg,
		aead:     aead,
		cookieRe: regexp.MustCompile("^" + regexp.QuoteMeta(cfg.Key) + `(-\d+)?$`),
		now:      time.Now,
	}, nil
}

// DumpData serializes and encrypts a session mapping and splits the
// encoded result into cookie-sized chunks.
//
// The payload layout before base64 is nonce, ciphertext, the associated
// data marker, then the associated data itself: a JSON object holding the
// absolute expiry timestamp. Binding the expiry into the authenticated
// data means tampering with it invalidates the ciphertext.
func (b *CookieBackend) DumpData(data map[string]any) ([]string, error) {
	serialized, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	aad, err := json.Marshal(expiryClaim{ExpiresAt: b.now().Unix() + int64(b.config.MaxAge/time.Second)})
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	encrypted := b.aead.Seal(nil, nonce, serialized, aad)

	payload := make([]byte, 0, len(nonce)+len(encrypted)+len(aadMarker)+len(aad))
	payload = append(payload, nonce...)
	payload = append(payload, encrypted...)
	payload = append(payload, aadMarker...)
	payload = append(payload, aad...)
	encoded := base64.StdEncoding.EncodeToString(payload)

	var chunks []string
	for i := 0; i < len(encoded); i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunks = append(chunks, encoded[i:end])
	}
	return chunks, nil
}

// LoadData reverses DumpData. Every failure mode, malformed base64, a
// missing marker, a stale expiry, an authentication tag mismatch, yields
// an empty session rather than an error so a bad cookie can never break a
// request.
func (b *CookieBackend) LoadData(chunks []string) map[string]any {
	empty := map[string]any{}

	decoded, err := base64.StdEncoding.DecodeString(joinChunks(chunks))
	if err != nil || len(decoded) < nonceSize {
		return empty
	}
	nonce := decoded[:nonceSize]

	markerAt := bytes.Index(decoded, aadMarker)
	if markerAt < nonceSize {
		return empty
	}
	aad := decoded[markerAt+len(aadMarker):]

	var claim expiryClaim
	if err := json.Unmarshal(aad, &claim); err != nil {
		return empty
	}
	if claim.ExpiresAt <= b.now().Unix() {
		return empty
	}

	plaintext, err := b.aead.Open(nil, nonce, decoded[nonceSize:markerAt], aad)
	if err != nil {
		return empty
	}

	var session map[string]any
	if err := json.Unmarshal(plaintext, &session); err != nil {
		return empty
	}
	if session == nil {
		return empty
	}
	return session
}

func joinChunks(chunks []string) string {
	var sb bytes.Buffer
	for _, c := range chunks {
		sb.WriteString(c)
	}
	return sb.String()
}

// CookieKeys returns the names of the session cookies present on the
// request: the configured key itself or the key with a numeric chunk
// suffix, sorted by name. The sort is lexicographic, so chunk "10"
// orders before chunk "2"; sessions large enough to hit double-digit
// chunk counts keep the ordering their cookies were stored with.
func (b *CookieBackend) CookieKeys(r *http.Request) []string {
	var keys []string
	for _, c := range r.Cookies() {
		if b.cookieRe.MatchString(c.Name) {
			keys = append(keys, c.Name)
		}
	}
	sort.Strings(keys)
	return keys
}

// Load reconstructs the session from the request's cookies. It never
// fails; absent or invalid cookies produce an empty session.
func (b *CookieBackend) Load(r *http.Request) (map[string]any, error) {
	keys := b.CookieKeys(r)
	if len(keys) == 0 {
		return map[string]any{}, nil
	}
	byName := make(map[string]string, len(keys))
	for _, c := range r.Cookies() {
		byName[c.Name] = c.Value
	}
	chunks := make([]string, 0, len(keys))
	for _, key := range keys {
		chunks = append(chunks, byName[key])
	}
	return b.LoadData(chunks), nil
}

// Store writes the session to response cookies named "<key>-<i>". When
// the session shrank since the request, surplus chunk cookies are expired
// so stale chunks cannot linger; an empty session expires every session
// cookie the client sent.
func (b *CookieBackend) Store(w http.ResponseWriter, r *http.Request, session map[string]any) error {
	existing := b.CookieKeys(r)

	var toClear []string
	if len(session) > 0 {
		chunks, err := b.DumpData(session)
		if err != nil {
			return err
		}
		for i, chunk := range chunks {
			name := b.config.Key + "-" + strconv.Itoa(i)
			http.SetCookie(w, b.config.cookie(name, chunk))
		}
		if len(existing) > len(chunks) {
			toClear = existing[len(chunks):]
		}
	} else {
		toClear = existing
	}

	for _, name := range toClear {
		http.SetCookie(w, b.config.clearingCookie(name))
	}
	return nil
}
