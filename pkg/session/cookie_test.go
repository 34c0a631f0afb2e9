package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

var testSecret = []byte("0123456789abcdef") // 16 bytes

func newTestBackend(t *testing.T) *CookieBackend {
	t.Helper()
	b, err := NewCookieBackend(DefaultConfig(testSecret))
	if err != nil {
		t.Fatalf("NewCookieBackend failed: %v", err)
	}
	return b
}

func TestNewCookieBackendValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.Secret = []byte("tooshort") }},
		{"long secret", func(c *Config) { c.Secret = make([]byte, 33) }},
		{"empty key", func(c *Config) { c.Key = "" }},
		{"oversized key", func(c *Config) { c.Key = strings.Repeat("k", 257) }},
		{"zero max age", func(c *Config) { c.MaxAge = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(testSecret)
			tt.mutate(&cfg)
			if _, err := NewCookieBackend(cfg); err == nil {
				t.Error("NewCookieBackend accepted invalid config")
			}
		})
	}

	for _, n := range []int{16, 24, 32} {
		if _, err := NewCookieBackend(DefaultConfig(make([]byte, n))); err != nil {
			t.Errorf("NewCookieBackend rejected %d-byte secret: %v", n, err)
		}
	}
}

func TestCookieBackendRoundTrip(t *testing.T) {
	b := newTestBackend(t)

	session := map[string]any{"user": "ada", "visits": float64(3)}
	chunks, err := b.DumpData(session)
	if err != nil {
		t.Fatalf("DumpData failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("small session produced %d chunks, want 1", len(chunks))
	}

	got := b.LoadData(chunks)
	if !reflect.DeepEqual(got, session) {
		t.Errorf("LoadData = %v, want %v", got, session)
	}
}

func TestCookieBackendExpiry(t *testing.T) {
	b := newTestBackend(t)

	chunks, err := b.DumpData(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("DumpData failed: %v", err)
	}

	// Move the clock past the configured max age.
	b.now = func() time.Time { return time.Now().Add(DefaultMaxAge + time.Hour) }

	if got := b.LoadData(chunks); len(got) != 0 {
		t.Errorf("LoadData of expired session = %v, want empty", got)
	}
}

func TestCookieBackendTamper(t *testing.T) {
	b := newTestBackend(t)

	chunks, err := b.DumpData(map[string]any{"user": "ada"})
	if err != nil {
		t.Fatalf("DumpData failed: %v", err)
	}

	t.Run("flipped ciphertext bit", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(chunks[0])
		if err != nil {
			t.Fatal(err)
		}
		raw[nonceSize] ^= 0x01
		tampered := base64.StdEncoding.EncodeToString(raw)

		if got := b.LoadData([]string{tampered}); len(got) != 0 {
			t.Errorf("LoadData of tampered cookie = %v, want empty", got)
		}
	})

	t.Run("malformed base64", func(t *testing.T) {
		if got := b.LoadData([]string{"%%% not base64 %%%"}); len(got) != 0 {
			t.Errorf("LoadData of garbage = %v, want empty", got)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("tiny"))
		if got := b.LoadData([]string{short}); len(got) != 0 {
			t.Errorf("LoadData of truncated payload = %v, want empty", got)
		}
	})

	t.Run("missing associated data", func(t *testing.T) {
		raw := make([]byte, nonceSize+32)
		noAAD := base64.StdEncoding.EncodeToString(raw)
		if got := b.LoadData([]string{noAAD}); len(got) != 0 {
			t.Errorf("LoadData without associated data = %v, want empty", got)
		}
	})
}

func TestCookieBackendChunking(t *testing.T) {
	b := newTestBackend(t)

	// Large enough to guarantee several chunks.
	session := map[string]any{"blob": strings.Repeat("x", 3*chunkSize)}
	chunks, err := b.DumpData(session)
	if err != nil {
		t.Fatalf("DumpData failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("large session produced %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > chunkSize {
			t.Errorf("chunk %d has %d bytes, limit %d", i, len(c), chunkSize)
		}
	}

	// Concatenating the chunks in index order reproduces the payload.
	got := b.LoadData(chunks)
	if !reflect.DeepEqual(got, session) {
		t.Error("chunked session did not round trip")
	}
}

func TestCookieKeys(t *testing.T) {
	b := newTestBackend(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, name := range []string{"session-0", "session-1", "other", "session", "sessionx", "session-2a"} {
		r.AddCookie(&http.Cookie{Name: name, Value: "v"})
	}

	got := b.CookieKeys(r)
	want := []string{"session", "session-0", "session-1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CookieKeys = %v, want %v", got, want)
	}
}

func TestCookieBackendStore(t *testing.T) {
	b := newTestBackend(t)

	t.Run("shrinking session clears surplus chunks", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, name := range []string{"session-0", "session-1", "session-2"} {
			r.AddCookie(&http.Cookie{Name: name, Value: "old"})
		}

		w := httptest.NewRecorder()
		if err := b.Store(w, r, map[string]any{"k": "v"}); err != nil {
			t.Fatalf("Store failed: %v", err)
		}

		cookies := w.Result().Cookies()
		byName := map[string]*http.Cookie{}
		for _, c := range cookies {
			byName[c.Name] = c
		}

		if c := byName["session-0"]; c == nil || c.Value == "null" {
			t.Error("session-0 was not rewritten with fresh data")
		}
		for _, name := range []string{"session-1", "session-2"} {
			c := byName[name]
			if c == nil {
				t.Errorf("%s was not cleared", name)
				continue
			}
			if c.Value != "null" || c.MaxAge >= 0 {
				t.Errorf("%s = (%q, MaxAge %d), want cleared", name, c.Value, c.MaxAge)
			}
		}
	})

	t.Run("empty session clears everything", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "session-0", Value: "old"})
		r.AddCookie(&http.Cookie{Name: "session-1", Value: "old"})

		w := httptest.NewRecorder()
		if err := b.Store(w, r, nil); err != nil {
			t.Fatalf("Store failed: %v", err)
		}

		cookies := w.Result().Cookies()
		if len(cookies) != 2 {
			t.Fatalf("got %d cookies, want 2 clearing cookies", len(cookies))
		}
		for _, c := range cookies {
			if c.Value != "null" {
				t.Errorf("%s value = %q, want %q", c.Name, c.Value, "null")
			}
		}
	})
}
