package sessiond

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/pkg/clientip"
)

// LoginResult is what a client needs after authenticating.
type LoginResult struct {
	Session     session.Session
	AccessToken string
	ExpiresAt   time.Time
}

// Login opens a session for an already authenticated principal and issues
// an access token bound to it. Device details and the origin address come
// from r. Credential checks happen before this call and are not sessiond's
// concern.
func (app *App) Login(ctx context.Context, r *http.Request, principalID string) (LoginResult, error) {
	if principalID == "" {
		return LoginResult{}, ErrMissingPrincipal
	}

	ip := clientip.GetIP(r)
	sess, err := app.manager.Create(ctx, session.CreateParams{
		PrincipalID:   principalID,
		Device:        session.DeviceFromUserAgent(r.UserAgent()),
		OriginAddress: ip,
	})
	if err != nil {
		return LoginResult{}, err
	}

	token, expiresAt, err := app.jwt.Issue(principalID, sess.Token)
	if err != nil {
		return LoginResult{}, err
	}

	app.logger.InfoContext(ctx, "session opened",
		logger.PrincipalID(principalID),
		logger.SessionID(sess.ID),
		logger.ClientIP(ip),
		logger.UserAgent(r.UserAgent()),
	)

	return LoginResult{Session: sess, AccessToken: token, ExpiresAt: expiresAt}, nil
}
