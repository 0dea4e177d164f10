package session

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/logger"
)

// Publisher hands session events to the broadcast fabric. Publish must not
// block on network I/O; delivery happens asynchronously.
type Publisher interface {
	Publish(ctx context.Context, principalID string, ev fabric.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, fabric.Event) error { return nil }

// TimeoutInfo describes how long a session has left.
type TimeoutInfo struct {
	IsDead         bool
	TimeRemaining  time.Duration
	LastActivityAt time.Time
	ExpiresAt      time.Time
}

// Manager owns session lifecycle rules on top of a Store: lazy expiry,
// the per-principal cap, activity tracking and the events each mutation emits.
// Events are published only after the store call returned successfully, and a
// failed publish never fails the mutation.
type Manager struct {
	store     Store
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		m.cfg = cfg
	}
}

// WithLifetime sets the absolute session lifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) {
		m.cfg.Lifetime = d
	}
}

// WithInactivityTimeout sets the idle timeout.
func WithInactivityTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.cfg.InactivityTimeout = d
	}
}

// WithMaxSessions sets the per-principal cap.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		m.cfg.MaxSessions = n
	}
}

// WithOperationTimeout bounds each store call.
func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.cfg.OperationTimeout = d
	}
}

// WithPublisher sets where session events go. Without it events are discarded.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager over store. The resulting config is validated.
func NewManager(store Store, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrMissingStore
	}

	m := &Manager{
		store:     store,
		publisher: noopPublisher{},
		cfg:       DefaultConfig(),
		logger:    logger.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromConfig creates a Manager from cfg. Options may override config values.
func NewFromConfig(cfg Config, store Store, opts ...Option) (*Manager, error) {
	return NewManager(store, append([]Option{WithConfig(cfg)}, opts...)...)
}

// Config returns the effective configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Create stores a new session for the principal, evicting the oldest ones
// beyond the cap in the same atomic unit, and emits session-list-changed.
func (m *Manager) Create(ctx context.Context, p CreateParams) (Session, error) {
	now := m.now()
	sess, err := newSession(p, now, m.cfg.Lifetime)
	if err != nil {
		return Session{}, err
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	evicted, err := m.store.Insert(opCtx, sess, InsertParams{
		MaxSessions: m.cfg.MaxSessions,
		Now:         now.UTC(),
		IdleCutoff:  m.idleCutoff(now),
	})
	if err != nil {
		m.logger.ErrorContext(ctx, "session create failed",
			logger.Component("session"),
			logger.PrincipalID(p.PrincipalID),
			logger.Error(err),
		)
		return Session{}, errors.Join(ErrCreateSession, err)
	}

	for _, e := range evicted {
		m.logger.InfoContext(ctx, "session evicted by cap",
			logger.Component("session"),
			logger.PrincipalID(e.PrincipalID),
			logger.SessionID(e.ID),
			slog.Int("max_sessions", m.cfg.MaxSessions),
		)
	}

	// One hint covers both the new session and any eviction.
	m.publish(ctx, sess.PrincipalID, fabric.NewSessionListChanged(now))

	return sess, nil
}

// GetActive lists the principal's live sessions, most recently active first.
// Dead sessions found on the way are deleted.
func (m *Manager) GetActive(ctx context.Context, principalID string) ([]Session, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	all, err := m.store.ListByPrincipal(opCtx, principalID)
	if err != nil {
		return nil, errors.Join(ErrLoadSession, err)
	}

	now := m.now()
	active := make([]Session, 0, len(all))
	for _, s := range all {
		if s.IsDead(now, m.cfg.InactivityTimeout) {
			m.expire(opCtx, s)
			continue
		}
		active = append(active, s)
	}

	slices.SortFunc(active, func(a, b Session) int {
		if c := b.LastActivityAt.Compare(a.LastActivityAt); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return active, nil
}

// GetByID returns the live session with id, or nil when absent or dead.
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	sess, err := m.store.GetByID(opCtx, id)
	return m.live(opCtx, sess, err)
}

// GetByToken returns the live session with token, or nil when absent or dead.
func (m *Manager) GetByToken(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	sess, err := m.store.GetByToken(opCtx, token)
	return m.live(opCtx, sess, err)
}

// Touch records activity on the session. A missing or dead session yields nil
// without an error: activity racing with deletion is expected. A dead session
// is deleted on the way.
func (m *Manager) Touch(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	now := m.now()
	sess, err := m.store.Touch(opCtx, token, now.UTC(), m.idleCutoff(now))
	if errors.Is(err, ErrNotFound) {
		// Stores refuse to touch dead rows without removing them.
		if stale, gerr := m.store.GetByToken(opCtx, token); gerr == nil && stale.IsDead(now, m.cfg.InactivityTimeout) {
			m.expire(opCtx, stale)
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrTouchSession, err)
	}
	return &sess, nil
}

// Delete removes the session and emits force-logout targeted at it.
// Deleting an already removed session returns nil without an error.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID, reason fabric.Reason) (*Session, error) {
	if !reason.Valid() {
		return nil, ErrInvalidReason
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	sess, err := m.store.Delete(opCtx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "session delete failed",
			logger.Component("session"),
			logger.SessionID(id),
			logger.Reason(string(reason)),
			logger.Error(err),
		)
		return nil, errors.Join(ErrDeleteSession, err)
	}

	ev := fabric.NewForceLogout(reason, m.now())
	ev.TargetSessionToken = sess.Token
	m.publish(ctx, sess.PrincipalID, ev)

	return &sess, nil
}

// DeleteAllExcept removes every session of the principal except the one with
// keepToken, then emits one force-logout excluding keepToken and one
// session-list-changed. It returns the number of deleted sessions.
func (m *Manager) DeleteAllExcept(ctx context.Context, principalID, keepToken string) (int, error) {
	if principalID == "" {
		return 0, ErrMissingPrincipal
	}

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	deleted, err := m.store.DeleteByPrincipal(opCtx, principalID, keepToken)
	if err != nil {
		m.logger.ErrorContext(ctx, "bulk session delete failed",
			logger.Component("session"),
			logger.PrincipalID(principalID),
			logger.Error(err),
		)
		return 0, errors.Join(ErrDeleteSession, err)
	}
	if len(deleted) == 0 {
		return 0, nil
	}

	now := m.now()
	ev := fabric.NewForceLogout(fabric.ReasonUserInitiated, now)
	ev.ExcludeSessionToken = keepToken
	m.publish(ctx, principalID, ev)
	m.publish(ctx, principalID, fabric.NewSessionListChanged(now))

	return len(deleted), nil
}

// SweepExpired deletes every dead session and returns them. It emits nothing;
// grouping notifications is the caller's job.
func (m *Manager) SweepExpired(ctx context.Context) ([]Session, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	now := m.now()
	deleted, err := m.store.DeleteExpired(opCtx, now.UTC(), m.idleCutoff(now))
	if err != nil {
		return nil, errors.Join(ErrSweepSessions, err)
	}
	return deleted, nil
}

// TimeoutInfo reports the inactivity budget left for the session with token.
// Absent sessions report IsDead.
func (m *Manager) TimeoutInfo(ctx context.Context, token string) (TimeoutInfo, error) {
	sess, err := m.GetByToken(ctx, token)
	if err != nil {
		return TimeoutInfo{}, err
	}
	if sess == nil {
		return TimeoutInfo{IsDead: true}, nil
	}

	now := m.now()
	return TimeoutInfo{
		IsDead:         sess.IsDead(now, m.cfg.InactivityTimeout),
		TimeRemaining:  sess.TimeRemaining(now, m.cfg.InactivityTimeout),
		LastActivityAt: sess.LastActivityAt,
		ExpiresAt:      sess.ExpiresAt,
	}, nil
}

func (m *Manager) live(ctx context.Context, sess Session, err error) (*Session, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrLoadSession, err)
	}
	if sess.IsDead(m.now(), m.cfg.InactivityTimeout) {
		m.expire(ctx, sess)
		return nil, nil
	}
	return &sess, nil
}

// expire deletes a dead session found on a read path. Failures are logged
// only; the sweep collects whatever is left.
func (m *Manager) expire(ctx context.Context, sess Session) {
	if _, err := m.store.Delete(ctx, sess.ID); err != nil && !errors.Is(err, ErrNotFound) {
		m.logger.WarnContext(ctx, "lazy expiry delete failed",
			logger.Component("session"),
			logger.PrincipalID(sess.PrincipalID),
			logger.SessionID(sess.ID),
			logger.Error(err),
		)
	}
}

func (m *Manager) publish(ctx context.Context, principalID string, ev fabric.Event) {
	if err := m.publisher.Publish(context.WithoutCancel(ctx), principalID, ev); err != nil {
		m.logger.WarnContext(ctx, "session event not published",
			logger.Component("session"),
			logger.PrincipalID(principalID),
			logger.Event(string(ev.Kind())),
			logger.Error(err),
		)
	}
}

func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.OperationTimeout)
}

func (m *Manager) idleCutoff(now time.Time) time.Time {
	return now.UTC().Add(-m.cfg.InactivityTimeout)
}
