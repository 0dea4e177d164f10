package sessionapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
)

// Sessions is the part of session.Manager the API depends on.
type Sessions interface {
	GetActive(ctx context.Context, principalID string) ([]session.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error)
	GetByToken(ctx context.Context, token string) (*session.Session, error)
	Touch(ctx context.Context, token string) (*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID, reason fabric.Reason) (*session.Session, error)
	DeleteAllExcept(ctx context.Context, principalID, keepToken string) (int, error)
	TimeoutInfo(ctx context.Context, token string) (session.TimeoutInfo, error)
}

// API serves the session management endpoints:
//
//	GET    /sessions                  list the caller's sessions
//	DELETE /sessions                  terminate all but the caller's session
//	DELETE /sessions/{id}             terminate one of the caller's sessions
//	GET    /sessions/current/timeout  inactivity budget of the caller's session
//	POST   /sessions/current/touch    record activity on the caller's session
type API struct {
	sessions Sessions
	verifier sessiontransport.Verifier
	cfg      Config
	logger   *slog.Logger
	handler  http.Handler
}

// Option configures the API.
type Option func(*API)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(a *API) {
		a.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates the session API.
func New(sessions Sessions, verifier sessiontransport.Verifier, opts ...Option) (*API, error) {
	if sessions == nil {
		return nil, ErrMissingSessions
	}
	if verifier == nil {
		return nil, ErrMissingVerifier
	}

	a := &API{
		sessions: sessions,
		verifier: verifier,
		cfg:      DefaultConfig(),
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /sessions", a.authenticated(a.list))
	mux.Handle("DELETE /sessions", a.authenticated(a.deleteAll))
	mux.Handle("DELETE /sessions/{id}", a.authenticated(a.deleteOne))
	mux.Handle("GET /sessions/current/timeout", a.authenticated(a.timeout))
	mux.Handle("POST /sessions/current/touch", a.authenticated(a.touch))

	corsOpts := cors.Options{
		AllowedOrigins:   a.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: a.cfg.AllowCredentials,
		MaxAge:           a.cfg.MaxAge,
	}
	if len(a.cfg.AllowedOrigins) == 0 {
		// rs/cors treats an empty list as "*".
		corsOpts.AllowOriginFunc = func(string) bool { return false }
	}
	a.handler = cors.New(corsOpts).Handler(mux)

	return a, nil
}

// NewFromConfig creates the API from cfg. Options may override config values.
func NewFromConfig(cfg Config, sessions Sessions, verifier sessiontransport.Verifier, opts ...Option) (*API, error) {
	return New(sessions, verifier, append([]Option{WithConfig(cfg)}, opts...)...)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// caller is the authenticated session behind a request.
type caller struct {
	principalID string
	session     session.Session
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, c caller) error

// authenticated resolves the caller's live session before running next.
func (a *API) authenticated(next handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		token, _, err := sessiontransport.Extract(r)
		if err != nil {
			writeError(w, ErrUnauthorized.WithMessage("missing or malformed access token"))
			return
		}
		id, err := a.verifier.Verify(ctx, token)
		if err != nil {
			writeError(w, ErrUnauthorized.WithMessage("invalid or expired access token"))
			return
		}

		sess, err := a.sessions.GetByToken(ctx, id.SessionToken)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if sess == nil || sess.PrincipalID != id.PrincipalID {
			writeError(w, ErrUnauthorized.WithMessage("session has ended"))
			return
		}

		if err := next(w, r, caller{principalID: sess.PrincipalID, session: *sess}); err != nil {
			a.fail(w, r, err)
		}
	})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := toHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "session api request failed",
			logger.Component("sessionapi"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, err)
}

func (a *API) list(w http.ResponseWriter, r *http.Request, c caller) error {
	active, err := a.sessions.GetActive(r.Context(), c.principalID)
	if err != nil {
		return err
	}

	resp := ListResponse{Sessions: make([]View, 0, len(active))}
	for _, s := range active {
		resp.Sessions = append(resp.Sessions, newView(s, c.session.Token))
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (a *API) deleteAll(w http.ResponseWriter, r *http.Request, c caller) error {
	n, err := a.sessions.DeleteAllExcept(r.Context(), c.principalID, c.session.Token)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, DeleteAllResponse{Deleted: n})
	return nil
}

func (a *API) deleteOne(w http.ResponseWriter, r *http.Request, c caller) error {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return ErrBadRequest.WithMessage("session id must be a UUID")
	}

	sess, err := a.sessions.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotFound.WithMessage("session not found")
	}
	if sess.PrincipalID != c.principalID {
		a.logger.WarnContext(r.Context(), "attempt to terminate a foreign session",
			logger.Component("sessionapi"),
			logger.PrincipalID(c.principalID),
			logger.SessionID(id),
		)
		return ErrForbidden.WithMessage("session belongs to another account")
	}

	if _, err := a.sessions.Delete(r.Context(), id, fabric.ReasonRemoteLogout); err != nil {
		return err
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

func (a *API) timeout(w http.ResponseWriter, r *http.Request, c caller) error {
	info, err := a.sessions.TimeoutInfo(r.Context(), c.session.Token)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, TimeoutResponse{
		IsDead:               info.IsDead,
		TimeRemainingSeconds: int64(info.TimeRemaining.Seconds()),
		LastActivityAt:       info.LastActivityAt,
		ExpiresAt:            info.ExpiresAt,
	})
	return nil
}

func (a *API) touch(w http.ResponseWriter, r *http.Request, c caller) error {
	sess, err := a.sessions.Touch(r.Context(), c.session.Token)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrUnauthorized.WithMessage("session has ended")
	}
	writeJSON(w, http.StatusOK, newView(*sess, c.session.Token))
	return nil
}
