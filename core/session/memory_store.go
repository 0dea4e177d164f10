package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. A single mutex serializes
// every mutation, which makes Insert atomic across principals. It is meant
// for tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]Session
	byToken map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]Session),
		byToken: make(map[string]uuid.UUID),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Insert(ctx context.Context, sess Session, p InsertParams) ([]Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[sess.Token]; ok {
		return nil, ErrDuplicateToken
	}

	live := make([]Session, 0, p.MaxSessions)
	for _, existing := range s.byID {
		if existing.PrincipalID != sess.PrincipalID {
			continue
		}
		if dead(existing, p.Now, p.IdleCutoff) {
			s.remove(existing)
			continue
		}
		live = append(live, existing)
	}

	SortByCreatedAt(live)

	var evicted []Session
	for len(live) >= p.MaxSessions && len(live) > 0 {
		s.remove(live[0])
		evicted = append(evicted, live[0])
		live = live[1:]
	}

	s.byID[sess.ID] = sess
	s.byToken[sess.Token] = sess.ID
	return evicted, nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (Session, error) {
	if err := ctxErr(ctx); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) GetByToken(ctx context.Context, token string) (Session, error) {
	if err := ctxErr(ctx); err != nil {
		return Session{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemoryStore) ListByPrincipal(ctx context.Context, principalID string) ([]Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, sess := range s.byID {
		if sess.PrincipalID == principalID {
			out = append(out, sess)
		}
	}
	SortByCreatedAt(out)
	return out, nil
}

func (s *MemoryStore) Touch(ctx context.Context, token string, now, idleCutoff time.Time) (Session, error) {
	if err := ctxErr(ctx); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	sess := s.byID[id]
	if dead(sess, now, idleCutoff) {
		return Session{}, ErrNotFound
	}
	if now.After(sess.LastActivityAt) {
		sess.LastActivityAt = now
		s.byID[id] = sess
	}
	return sess, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) (Session, error) {
	if err := ctxErr(ctx); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	s.remove(sess)
	return sess, nil
}

func (s *MemoryStore) DeleteByPrincipal(ctx context.Context, principalID, keepToken string) ([]Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []Session
	for _, sess := range s.byID {
		if sess.PrincipalID != principalID {
			continue
		}
		if keepToken != "" && sess.Token == keepToken {
			continue
		}
		s.remove(sess)
		deleted = append(deleted, sess)
	}
	SortByCreatedAt(deleted)
	return deleted, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now, idleCutoff time.Time) ([]Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []Session
	for _, sess := range s.byID {
		if dead(sess, now, idleCutoff) {
			s.remove(sess)
			deleted = append(deleted, sess)
		}
	}
	SortByCreatedAt(deleted)
	return deleted, nil
}

// Len returns the number of stored sessions, dead ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// remove must be called with mu held for writing.
func (s *MemoryStore) remove(sess Session) {
	delete(s.byID, sess.ID)
	delete(s.byToken, sess.Token)
}

func dead(sess Session, now, idleCutoff time.Time) bool {
	return now.After(sess.ExpiresAt) || sess.LastActivityAt.Before(idleCutoff)
}

// ctxErr reports an ended context the way the SQL stores report a timed out
// query, so ErrStoreUnavailable means the same thing for every backend.
func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}
