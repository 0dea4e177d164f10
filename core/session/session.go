package session

import (
	"cmp"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionhub/pkg/useragent"
)

// DeviceInfo describes the client a session was created from.
type DeviceInfo struct {
	BrowserFamily string `json:"browser_family"`
	OSFamily      string `json:"os_family"`
	FormFactor    string `json:"form_factor"`
}

// DeviceFromUserAgent derives a DeviceInfo from a User-Agent header.
// Unparseable values produce "unknown" fields instead of an error.
func DeviceFromUserAgent(ua string) DeviceInfo {
	parsed, err := useragent.Parse(ua)
	if err != nil {
		return DeviceInfo{
			BrowserFamily: "unknown",
			OSFamily:      useragent.OSUnknown,
			FormFactor:    useragent.DeviceTypeUnknown,
		}
	}
	return DeviceInfo{
		BrowserFamily: parsed.BrowserName(),
		OSFamily:      parsed.OS(),
		FormFactor:    parsed.DeviceType(),
	}
}

// Label returns a display string such as "Chrome on macOS (desktop)".
func (d DeviceInfo) Label() string {
	return useragent.BrowserDisplayName(d.BrowserFamily) + " on " +
		useragent.OSDisplayName(d.OSFamily) + " (" + d.FormFactor + ")"
}

// Session is one authenticated device context of a principal.
type Session struct {
	ID          uuid.UUID
	PrincipalID string

	// Token is 32 random bytes, base64url encoded. It identifies the session
	// and is independent from any access token issued for it.
	Token string

	Device        DeviceInfo
	OriginAddress string

	CreatedAt      time.Time
	LastActivityAt time.Time
	// ExpiresAt is fixed at creation and never extended.
	ExpiresAt time.Time
}

// IsExpired reports whether the absolute lifetime has passed.
func (s Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// IsIdle reports whether the session saw no activity for longer than inactivity.
func (s Session) IsIdle(now time.Time, inactivity time.Duration) bool {
	return now.Sub(s.LastActivityAt) > inactivity
}

// IsDead reports whether either timeout has elapsed.
func (s Session) IsDead(now time.Time, inactivity time.Duration) bool {
	return s.IsExpired(now) || s.IsIdle(now, inactivity)
}

// TimeRemaining is the time left before the inactivity timeout, never negative.
func (s Session) TimeRemaining(now time.Time, inactivity time.Duration) time.Duration {
	return max(0, inactivity-now.Sub(s.LastActivityAt))
}

// SortByCreatedAt orders sessions oldest first. Ties are broken by ID so the
// order is stable across stores.
func SortByCreatedAt(ss []Session) {
	slices.SortFunc(ss, func(a, b Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

// CreateParams describes a new session.
type CreateParams struct {
	PrincipalID   string
	Device        DeviceInfo
	OriginAddress string
}

func newSession(p CreateParams, now time.Time, lifetime time.Duration) (Session, error) {
	if p.PrincipalID == "" {
		return Session{}, ErrMissingPrincipal
	}

	token, err := generateToken()
	if err != nil {
		return Session{}, errors.Join(ErrTokenGeneration, err)
	}

	now = now.UTC()
	return Session{
		ID:             uuid.New(),
		PrincipalID:    p.PrincipalID,
		Token:          token,
		Device:         p.Device,
		OriginAddress:  p.OriginAddress,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(lifetime),
	}, nil
}

// generateToken creates a cryptographically secure random token using 32 bytes (256 bits)
// encoded as base64 URL-safe string without padding.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
