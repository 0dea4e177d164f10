package fabric

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope is the unit carried by the shared pub/sub transport.
type Envelope struct {
	PrincipalID string          `json:"principal_id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Origin      string          `json:"origin,omitempty"`
	SentAt      time.Time       `json:"sent_at"`
}

// Seal wraps ev into an Envelope addressed to principalID.
func Seal(principalID string, ev Event, origin string, at time.Time) (Envelope, error) {
	if principalID == "" {
		return Envelope{}, ErrMissingPrincipal
	}

	switch ev.(type) {
	case ForceLogout, SessionListChanged:
	default:
		return Envelope{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, errors.Join(ErrEncodeEvent, err)
	}

	return Envelope{
		PrincipalID: principalID,
		Kind:        ev.Kind(),
		Payload:     payload,
		Origin:      origin,
		SentAt:      at.UTC(),
	}, nil
}

// Open decodes the event carried by e.
func (e Envelope) Open() (Event, error) {
	switch e.Kind {
	case KindForceLogout:
		var ev ForceLogout
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, errors.Join(ErrDecodeEvent, err)
		}
		if !ev.Reason.Valid() {
			return nil, fmt.Errorf("%w: reason %q", ErrDecodeEvent, ev.Reason)
		}
		return ev, nil
	case KindSessionListChanged:
		var ev SessionListChanged
		if err := json.Unmarshal(e.Payload, &ev); err != nil {
			return nil, errors.Join(ErrDecodeEvent, err)
		}
		return ev, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnknownEvent, e.Kind)
}
