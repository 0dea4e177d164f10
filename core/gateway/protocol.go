package gateway

import (
	"time"

	"github.com/dmitrymomot/sessionhub/core/fabric"
)

// Inbound command types.
const (
	CommandPing             = "ping"
	CommandLogoutAllDevices = "logout-all-devices"
	CommandLogoutDevice     = "logout-device"
)

// Outbound message types besides the fabric event kinds.
const (
	MessagePong  = "pong"
	MessageError = "error"
)

// Error codes carried by error messages.
const (
	ErrorCodeMalformed       = "malformed-command"
	ErrorCodeUnknownCommand  = "unknown-command"
	ErrorCodeInvalidSession  = "invalid-session-id"
	ErrorCodeSessionNotFound = "session-not-found"
	ErrorCodeForbidden       = "forbidden"
	ErrorCodeInternal        = "internal-error"
)

// Command is a client request received over a bound connection.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

// Message is everything the gateway sends to a client. Session tokens never
// leave the server; Targeted tells the receiving connection that the event
// names its own session.
type Message struct {
	Type      string        `json:"type"`
	Reason    fabric.Reason `json:"reason,omitempty"`
	Message   string        `json:"message,omitempty"`
	Targeted  bool          `json:"targeted,omitempty"`
	Code      string        `json:"code,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func forceLogoutMessage(ev fabric.ForceLogout, targeted bool) Message {
	return Message{
		Type:      string(fabric.KindForceLogout),
		Reason:    ev.Reason,
		Message:   ev.Message,
		Targeted:  targeted,
		Timestamp: ev.Timestamp,
	}
}

func listChangedMessage(ev fabric.SessionListChanged) Message {
	return Message{
		Type:      string(fabric.KindSessionListChanged),
		Timestamp: ev.Timestamp,
	}
}

func pongMessage(at time.Time) Message {
	return Message{Type: MessagePong, Timestamp: at.UTC()}
}

func errorMessage(code, text string, at time.Time) Message {
	return Message{Type: MessageError, Code: code, Message: text, Timestamp: at.UTC()}
}
