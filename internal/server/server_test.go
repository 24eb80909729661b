package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthz(t *testing.T) {
	req, err := http.NewRequest("GET", "/healthz", nil)
	assert.NoError(t, err)

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(healthz)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCorsMiddleware(t *testing.T) {
	called := false
	handler := cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		req, err := http.NewRequest("OPTIONS", "/api/upload", nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.False(t, called)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Device-Id")
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Device-Name")
	})

	t.Run("request", func(t *testing.T) {
		called = false
		req, err := http.NewRequest("GET", "/api/files", nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, called)
	})
}

func TestLimitBodyMiddleware(t *testing.T) {
	handler := limitBody(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Body.Read(make([]byte, 64)); err != nil && err.Error() == "http: request body too large" {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), 10)

	t.Run("body within limit", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/", strings.NewReader("123456789"))
		assert.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("body exceeds limit", func(t *testing.T) {
		req, err := http.NewRequest("POST", "/", strings.NewReader("12345678901"))
		assert.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})
}

func TestRecoverer(t *testing.T) {
	handler := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(rr, req) })
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	var captured *responseWriter
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))
	}))

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.NotNil(t, captured)
	assert.Equal(t, http.StatusTeapot, captured.statusCode)
	assert.Equal(t, int64(5), captured.written)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="a.txt"`, contentDisposition("a.txt"))
	assert.Equal(t, `attachment; filename="say \"hi\".txt"`, contentDisposition(`say "hi".txt`))
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Port:            8080,
			Host:            "0.0.0.0",
			Dir:             "shared-files",
			MaxUploadSize:   1024,
			MetadataBackend: BackendJSON,
			LogLevel:        "info",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"sqlite", func(c *Config) { c.MetadataBackend = BackendSQLite }, false},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"no dir", func(c *Config) { c.Dir = " " }, true},
		{"zero upload size", func(c *Config) { c.MaxUploadSize = 0 }, true},
		{"unknown backend", func(c *Config) { c.MetadataBackend = "redis" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigDefaultDBPath(t *testing.T) {
	cfg := Config{Port: 1, Dir: "shared", MaxUploadSize: 1, MetadataBackend: BackendSQLite, LogLevel: "debug"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "shared/.meta.db", cfg.DBPath)
	assert.Equal(t, "0.0.0.0:1", (&Config{Host: "0.0.0.0", Port: 1}).Addr())
}
