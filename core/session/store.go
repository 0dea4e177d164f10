package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InsertParams carries the eviction policy inputs for Store.Insert.
type InsertParams struct {
	// MaxSessions is the cap on sessions a principal may hold after the insert.
	MaxSessions int
	// Now is the reference time for purging dead sessions.
	Now time.Time
	// IdleCutoff marks sessions with LastActivityAt before it as dead.
	IdleCutoff time.Time
}

// Store persists sessions. Implementations must be safe for concurrent use
// and must serialize Insert per principal at the storage layer.
//
// Lookups and single deletes return ErrNotFound when nothing matches. Errors
// caused by the datastore being unavailable are joined with ErrStoreUnavailable.
type Store interface {
	// Insert atomically purges the principal's dead sessions, evicts the oldest
	// live sessions by CreatedAt until fewer than MaxSessions remain, and
	// inserts sess. It returns the sessions evicted because of the cap.
	Insert(ctx context.Context, sess Session, p InsertParams) ([]Session, error)

	GetByID(ctx context.Context, id uuid.UUID) (Session, error)
	GetByToken(ctx context.Context, token string) (Session, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]Session, error)

	// Touch moves LastActivityAt forward to now for a live session.
	// Dead or missing sessions yield ErrNotFound and are left unchanged.
	Touch(ctx context.Context, token string, now, idleCutoff time.Time) (Session, error)

	Delete(ctx context.Context, id uuid.UUID) (Session, error)
	// DeleteByPrincipal removes every session of the principal except the one
	// whose token equals keepToken. An empty keepToken removes all.
	DeleteByPrincipal(ctx context.Context, principalID, keepToken string) ([]Session, error)
	// DeleteExpired removes sessions past ExpiresAt or idle since before idleCutoff.
	DeleteExpired(ctx context.Context, now, idleCutoff time.Time) ([]Session, error)
}
