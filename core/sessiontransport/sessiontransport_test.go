package sessiontransport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestExtract(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		token   string
		source  sessiontransport.Source
		wantErr error
	}{
		{
			name:   "bearer header",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") },
			token:  "abc",
			source: sessiontransport.SourceHeader,
		},
		{
			name:   "lowercase scheme",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") },
			token:  "abc",
			source: sessiontransport.SourceHeader,
		},
		{
			name:    "basic scheme",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
			source:  sessiontransport.SourceHeader,
			wantErr: sessiontransport.ErrInvalidToken,
		},
		{
			name:    "empty bearer",
			setup:   func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
			source:  sessiontransport.SourceHeader,
			wantErr: sessiontransport.ErrInvalidToken,
		},
		{
			name:   "subprotocol",
			setup:  func(r *http.Request) { r.Header.Set("Sec-WebSocket-Protocol", "sessionhub.v1, bearer.xyz") },
			token:  "xyz",
			source: sessiontransport.SourceSubprotocol,
		},
		{
			name: "header wins over query",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
				r.URL.RawQuery = "token=qqq"
			},
			token:  "abc",
			source: sessiontransport.SourceHeader,
		},
		{
			name:   "query",
			setup:  func(r *http.Request) { r.URL.RawQuery = "token=qqq" },
			token:  "qqq",
			source: sessiontransport.SourceQuery,
		},
		{
			name:    "nothing",
			setup:   func(*http.Request) {},
			source:  sessiontransport.SourceNone,
			wantErr: sessiontransport.ErrNoToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			tt.setup(r)

			token, source, err := sessiontransport.Extract(r)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.token, token)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestJWT(t *testing.T) {
	t.Parallel()

	t.Run("issue and verify", func(t *testing.T) {
		t.Parallel()

		tr, err := sessiontransport.NewJWT(secret, time.Minute, sessiontransport.WithJWTIssuer("sessionhub"))
		require.NoError(t, err)

		access, expiresAt, err := tr.Issue("user-1", "sess-token")
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

		id, err := tr.Verify(context.Background(), access)
		require.NoError(t, err)
		assert.Equal(t, sessiontransport.Identity{PrincipalID: "user-1", SessionToken: "sess-token"}, id)
	})

	t.Run("foreign key", func(t *testing.T) {
		t.Parallel()

		a, err := sessiontransport.NewJWT(secret, time.Minute)
		require.NoError(t, err)
		b, err := sessiontransport.NewJWT(strings.Repeat("k", 32), time.Minute)
		require.NoError(t, err)

		access, _, err := a.Issue("user-1", "sess-token")
		require.NoError(t, err)

		_, err = b.Verify(context.Background(), access)
		assert.ErrorIs(t, err, sessiontransport.ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		t.Parallel()

		tr, err := sessiontransport.NewJWT(secret, time.Minute)
		require.NoError(t, err)

		_, err = tr.Verify(context.Background(), "")
		assert.ErrorIs(t, err, sessiontransport.ErrNoToken)
	})

	t.Run("default ttl", func(t *testing.T) {
		t.Parallel()

		tr, err := sessiontransport.NewJWT(secret, 0)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, tr.AccessTTL())
	})
}

func TestNewJWTFromConfig(t *testing.T) {
	t.Parallel()

	_, err := sessiontransport.NewJWTFromConfig(sessiontransport.DefaultJWTConfig())
	assert.ErrorIs(t, err, sessiontransport.ErrMissingSecret)

	cfg := sessiontransport.DefaultJWTConfig()
	cfg.SecretKey = "short"
	_, err = sessiontransport.NewJWTFromConfig(cfg)
	assert.Error(t, err)

	cfg.SecretKey = secret
	tr, err := sessiontransport.NewJWTFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.AccessTTL, tr.AccessTTL())
}
