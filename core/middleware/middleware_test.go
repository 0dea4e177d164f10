package middleware_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/middleware"
)

func TestChain(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := middleware.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := middleware.GetRequestID(r.Context())
		_, _ = io.WriteString(w, id)
	})

	t.Run("generates an id", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		middleware.RequestID()(echo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		id := rec.Header().Get("X-Request-ID")
		assert.Len(t, id, 36)
		assert.Equal(t, id, rec.Body.String())
	})

	t.Run("reuses incoming id when allowed", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")

		rec := httptest.NewRecorder()
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{UseExisting: true})(echo).ServeHTTP(rec, req)
		assert.Equal(t, "abc", rec.Body.String())

		rec = httptest.NewRecorder()
		middleware.RequestID()(echo).ServeHTTP(rec, req)
		assert.NotEqual(t, "abc", rec.Body.String())
	})
}

func TestLogging(t *testing.T) {
	t.Parallel()

	t.Run("logs status and request id", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		h := middleware.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}), middleware.RequestID(), middleware.Logging(log))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions", nil))

		out := buf.String()
		assert.Contains(t, out, "status=418")
		assert.Contains(t, out, "path=/sessions")
		assert.Contains(t, out, "request_id=")
		assert.Contains(t, out, "level=INFO")
	})

	t.Run("server errors are logged at error level", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		h := middleware.Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Contains(t, buf.String(), "level=ERROR")
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		mw := middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger: slog.New(slog.NewTextHandler(&buf, nil)),
			Skip:   func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, "/health") },
		})
		mw(http.NotFoundHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))

		assert.Empty(t, buf.String())
	})

	t.Run("hijack passes through", func(t *testing.T) {
		t.Parallel()

		var hijacked atomic.Bool
		h := middleware.Logging(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			hijacked.Store(true)
			_ = conn.Close()
		}))

		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)

		resp, err := http.Get(srv.URL)
		if err == nil {
			_ = resp.Body.Close()
		}
		assert.True(t, hijacked.Load())
	})
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	t.Run("api defaults", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		middleware.SecurityHeaders()(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("development drops hsts", func(t *testing.T) {
		t.Parallel()

		cfg := middleware.APISecurity
		cfg.IsDevelopment = true
		cfg.CustomHeaders = map[string]string{"X-Service": "sessiond"}

		rec := httptest.NewRecorder()
		middleware.SecurityHeadersWithConfig(cfg)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
		assert.Equal(t, "sessiond", rec.Header().Get("X-Service"))
	})
}
