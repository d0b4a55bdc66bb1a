package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seednode/foosball/internal/teams"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealIP(t *testing.T) {
	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote only", "10.0.0.1:5555", nil, "10.0.0.1:5555"},
		{"cloudflare", "10.0.0.1:5555", map[string]string{"CF-Connecting-IP": "203.0.113.9"}, "203.0.113.9:5555"},
		{"x-real-ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2:5555"},
		{"garbage header", "10.0.0.1:5555", map[string]string{"X-Real-IP": "nope"}, "10.0.0.1:5555"},
		{"ipv6", "[2001:db8::1]:80", nil, "[2001:db8::1]:80"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, realIP(r))
		})
	}
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.0 kB", humanReadableSize(1000))
	assert.Equal(t, "1.5 MB", humanReadableSize(1_500_000))
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	securityHeaders(&Config{}, w)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	securityHeaders(&Config{tlsCert: "c", tlsKey: "k"}, w)
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tm := newTableManager(ctx, cfg, clockwork.NewFakeClock(), teams.NewSeededSource(1), nil)
	t.Cleanup(func() {
		cancel()
		tm.closeAll()
	})

	return withCORS(cfg, newRouter(cfg, make(chan error, 8), tm))
}

func get(t *testing.T, h http.Handler, path string, headers map[string]string) *http.Response {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	return w.Result()
}

func TestRouter_Endpoints(t *testing.T) {
	h := newTestRouter(t, &Config{teamSize: 2})

	cases := []struct {
		path   string
		status int
		body   string
	}{
		{"/healthz", http.StatusOK, "Ok\n"},
		{"/version", http.StatusOK, "foosball v" + releaseVersion + "\n"},
		{"/assets/picker/app.css", http.StatusOK, ""},
		{"/assets/nope.js", http.StatusNotFound, ""},
		{"/favicons/favicon.svg", http.StatusOK, ""},
		{"/", http.StatusTemporaryRedirect, ""},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp := get(t, h, tc.path, nil)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.body != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tc.body, string(body))
			}
		})
	}
}

func TestRouter_Prefix(t *testing.T) {
	h := newTestRouter(t, &Config{teamSize: 2, prefix: "/games"})

	resp := get(t, h, "/games/healthz", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, h, "/games/", nil)
	_ = resp.Body.Close()
	assert.Equal(t, "/games/teams", resp.Header.Get("Location"))
}

func TestWithCORS(t *testing.T) {
	closed := newTestRouter(t, &Config{teamSize: 2})
	resp := get(t, closed, "/healthz", map[string]string{"Origin": "https://example.com"})
	_ = resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	open := newTestRouter(t, &Config{teamSize: 2, allowedOrigins: []string{"https://example.com"}})
	resp = get(t, open, "/healthz", map[string]string{"Origin": "https://example.com"})
	_ = resp.Body.Close()
	assert.Equal(t, "https://example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp = get(t, open, "/healthz", map[string]string{"Origin": "https://elsewhere.com"})
	_ = resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServePage_ReturnsOnCancel(t *testing.T) {
	cfg := &Config{bind: "127.0.0.1", port: 0, teamSize: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServePage(ctx, cfg)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ServePage did not return after cancel")
	}
}

func TestDrainErrors_StopsWhenClosed(t *testing.T) {
	errs := make(chan error, 1)
	errs <- io.ErrUnexpectedEOF
	close(errs)

	done := make(chan struct{})
	go func() {
		drainErrors(errs)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drainErrors kept running")
	}
}
