package sessionapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/core/sessionapi"
	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
)

const secret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	manager *session.Manager
	tokens  *sessiontransport.JWT
	api     *sessionapi.API
}

func newFixture(t *testing.T, opts ...sessionapi.Option) *fixture {
	t.Helper()

	manager, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)
	tokens, err := sessiontransport.NewJWT(secret, time.Minute)
	require.NoError(t, err)
	api, err := sessionapi.New(manager, tokens, opts...)
	require.NoError(t, err)

	return &fixture{manager: manager, tokens: tokens, api: api}
}

func (f *fixture) login(t *testing.T, principalID string) (session.Session, string) {
	t.Helper()

	sess, err := f.manager.Create(context.Background(), session.CreateParams{
		PrincipalID: principalID,
		Device:      session.DeviceFromUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"),
	})
	require.NoError(t, err)
	access, _, err := f.tokens.Issue(principalID, sess.Token)
	require.NoError(t, err)
	return sess, access
}

func (f *fixture) do(t *testing.T, method, path, access string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, nil)
	if access != "" {
		r.Header.Set("Authorization", "Bearer "+access)
	}
	w := httptest.NewRecorder()
	f.api.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestAuthentication(t *testing.T) {
	t.Parallel()

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		w := f.do(t, http.MethodGet, "/sessions", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "unauthorized", decode[sessionapi.HTTPError](t, w).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		w := f.do(t, http.MethodGet, "/sessions", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token for an ended session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		sess, access := f.login(t, "user-1")
		_, err := f.manager.Delete(context.Background(), sess.ID, fabric.ReasonUserInitiated)
		require.NoError(t, err)

		w := f.do(t, http.MethodGet, "/sessions", access)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _ = f.login(t, "user-1")
	current, access := f.login(t, "user-1")
	_, _ = f.login(t, "user-2")

	w := f.do(t, http.MethodGet, "/sessions", access)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[sessionapi.ListResponse](t, w)
	require.Len(t, resp.Sessions, 2)

	var currents int
	for _, v := range resp.Sessions {
		if v.Current {
			currents++
			assert.Equal(t, current.ID.String(), v.ID)
		}
		assert.Equal(t, "chrome", v.BrowserFamily)
	}
	assert.Equal(t, 1, currents)
	assert.NotContains(t, w.Body.String(), current.Token)
}

func TestDeleteOne(t *testing.T) {
	t.Parallel()

	t.Run("own session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		other, _ := f.login(t, "user-1")
		_, access := f.login(t, "user-1")

		w := f.do(t, http.MethodDelete, "/sessions/"+other.ID.String(), access)
		assert.Equal(t, http.StatusNoContent, w.Code)

		sess, err := f.manager.GetByID(context.Background(), other.ID)
		require.NoError(t, err)
		assert.Nil(t, sess)
	})

	t.Run("foreign session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		victim, _ := f.login(t, "user-2")
		_, access := f.login(t, "user-1")

		w := f.do(t, http.MethodDelete, "/sessions/"+victim.ID.String(), access)
		assert.Equal(t, http.StatusForbidden, w.Code)

		sess, err := f.manager.GetByID(context.Background(), victim.ID)
		require.NoError(t, err)
		assert.NotNil(t, sess)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, access := f.login(t, "user-1")
		w := f.do(t, http.MethodDelete, "/sessions/"+uuid.NewString(), access)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, access := f.login(t, "user-1")
		w := f.do(t, http.MethodDelete, "/sessions/abc", access)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, _ = f.login(t, "user-1")
	_, _ = f.login(t, "user-1")
	_, access := f.login(t, "user-1")

	w := f.do(t, http.MethodDelete, "/sessions", access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[sessionapi.DeleteAllResponse](t, w).Deleted)

	active, err := f.manager.GetActive(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	w = f.do(t, http.MethodGet, "/sessions", access)
	assert.Equal(t, http.StatusOK, w.Code, "caller keeps its session")
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, access := f.login(t, "user-1")

	w := f.do(t, http.MethodGet, "/sessions/current/timeout", access)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[sessionapi.TimeoutResponse](t, w)
	assert.False(t, info.IsDead)
	assert.InDelta(t, (30 * time.Minute).Seconds(), float64(info.TimeRemainingSeconds), 5)

	w = f.do(t, http.MethodPost, "/sessions/current/touch", access)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[sessionapi.View](t, w).Current)
}

type mockSessions struct {
	mock.Mock
	sessionapi.Sessions
}

func (m *mockSessions) GetByToken(ctx context.Context, token string) (*session.Session, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*session.Session)
	return s, args.Error(1)
}

func TestStoreUnavailable(t *testing.T) {
	t.Parallel()

	sessions := &mockSessions{}
	sessions.On("GetByToken", mock.Anything, "sess-token").
		Return(nil, errors.Join(session.ErrLoadSession, session.ErrStoreUnavailable)).Once()

	tokens, err := sessiontransport.NewJWT(secret, time.Minute)
	require.NoError(t, err)
	api, err := sessionapi.New(sessions, tokens)
	require.NoError(t, err)

	access, _, err := tokens.Issue("user-1", "sess-token")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	r.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	api.ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	sessions.AssertExpectations(t)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	preflight := func(api *sessionapi.API) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		w := httptest.NewRecorder()
		api.ServeHTTP(w, r)
		return w
	}

	t.Run("configured origin", func(t *testing.T) {
		t.Parallel()

		cfg := sessionapi.DefaultConfig()
		cfg.AllowedOrigins = []string{"https://app.example.com"}
		f := newFixture(t, sessionapi.WithConfig(cfg))

		w := preflight(f.api)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		w := preflight(f.api)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := sessionapi.New(nil, nil)
	assert.ErrorIs(t, err, sessionapi.ErrMissingSessions)

	manager, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)
	_, err = sessionapi.New(manager, nil)
	assert.ErrorIs(t, err, sessionapi.ErrMissingVerifier)
}
