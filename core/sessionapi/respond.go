package sessionapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrymomot/sessionhub/core/session"
)

// View is the public shape of a session. The token is never exposed.
type View struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	BrowserFamily  string    `json:"browser_family"`
	OSFamily       string    `json:"os_family"`
	FormFactor     string    `json:"form_factor"`
	OriginAddress  string    `json:"origin_address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Current        bool      `json:"current"`
}

func newView(s session.Session, currentToken string) View {
	return View{
		ID:             s.ID.String(),
		Label:          s.Device.Label(),
		BrowserFamily:  s.Device.BrowserFamily,
		OSFamily:       s.Device.OSFamily,
		FormFactor:     s.Device.FormFactor,
		OriginAddress:  s.OriginAddress,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		Current:        s.Token == currentToken,
	}
}

// ListResponse is the body of GET /sessions.
type ListResponse struct {
	Sessions []View `json:"sessions"`
}

// DeleteAllResponse is the body of DELETE /sessions.
type DeleteAllResponse struct {
	Deleted int `json:"deleted"`
}

// TimeoutResponse is the body of GET /sessions/current/timeout.
type TimeoutResponse struct {
	IsDead               bool      `json:"is_dead"`
	TimeRemainingSeconds int64     `json:"time_remaining_seconds"`
	LastActivityAt       time.Time `json:"last_activity_at"`
	ExpiresAt            time.Time `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	httpErr := toHTTPError(err)
	writeJSON(w, httpErr.Status, httpErr)
}

// toHTTPError maps domain errors to HTTP errors.
func toHTTPError(err error) HTTPError {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	switch {
	case errors.Is(err, session.ErrStoreUnavailable):
		return ErrServiceUnavailable
	case errors.Is(err, session.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, session.ErrInvalidReason), errors.Is(err, session.ErrMissingPrincipal):
		return ErrBadRequest
	}
	return ErrInternal
}
