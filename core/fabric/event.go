package fabric

import "time"

// Kind is the wire discriminator of an Event.
type Kind string

const (
	KindForceLogout        Kind = "force-logout"
	KindSessionListChanged Kind = "session-list-changed"
)

// Reason explains why a force-logout was issued.
type Reason string

const (
	ReasonUserInitiated  Reason = "user-initiated"
	ReasonRemoteLogout   Reason = "remote-logout"
	ReasonSessionExpired Reason = "session-expired"
	ReasonSecurity       Reason = "security"
)

// Valid reports whether r is one of the known reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonUserInitiated, ReasonRemoteLogout, ReasonSessionExpired, ReasonSecurity:
		return true
	}
	return false
}

// Message returns the default user-facing text for r.
func (r Reason) Message() string {
	switch r {
	case ReasonUserInitiated:
		return "You have been signed out from this device."
	case ReasonRemoteLogout:
		return "This session was ended from another device."
	case ReasonSessionExpired:
		return "Your session has expired. Please sign in again."
	case ReasonSecurity:
		return "You have been signed out for security reasons."
	}
	return "You have been signed out."
}

// Event is a session-affecting notification addressed to every live
// connection of one principal. The set of implementations is closed:
// ForceLogout and SessionListChanged.
type Event interface {
	Kind() Kind
	isEvent()
}

// ForceLogout tells connections to drop their session.
//
// TargetSessionToken, when set, names the one session that was terminated;
// other connections only refresh. ExcludeSessionToken names a session that
// must not receive the event at all.
type ForceLogout struct {
	Reason              Reason    `json:"reason"`
	Message             string    `json:"message"`
	Timestamp           time.Time `json:"timestamp"`
	TargetSessionToken  string    `json:"target_session_token,omitempty"`
	ExcludeSessionToken string    `json:"exclude_session_token,omitempty"`
}

// NewForceLogout builds a ForceLogout with the default message for reason.
func NewForceLogout(reason Reason, at time.Time) ForceLogout {
	return ForceLogout{
		Reason:    reason,
		Message:   reason.Message(),
		Timestamp: at.UTC(),
	}
}

func (ForceLogout) Kind() Kind { return KindForceLogout }
func (ForceLogout) isEvent()   {}

// SessionListChanged hints that the principal's session list should be re-fetched.
type SessionListChanged struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewSessionListChanged builds a SessionListChanged stamped with at.
func NewSessionListChanged(at time.Time) SessionListChanged {
	return SessionListChanged{Timestamp: at.UTC()}
}

func (SessionListChanged) Kind() Kind { return KindSessionListChanged }
func (SessionListChanged) isEvent()   {}
