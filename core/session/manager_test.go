package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/session"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, principalID string, ev fabric.Event) error {
	args := m.Called(ctx, principalID, ev)
	return args.Error(0)
}

type published struct {
	principalID string
	event       fabric.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, principalID string, ev fabric.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{principalID: principalID, event: ev})
	return nil
}

func (p *recordingPublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T, opts ...session.Option) (*session.Manager, *session.MemoryStore, *fakeClock) {
	t.Helper()

	store := session.NewMemoryStore()
	clock := newFakeClock()
	m, err := session.NewManager(store, append([]session.Option{session.WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return m, store, clock
}

func create(t *testing.T, m *session.Manager, principalID string) session.Session {
	t.Helper()

	sess, err := m.Create(context.Background(), session.CreateParams{
		PrincipalID:   principalID,
		Device:        session.DeviceFromUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		OriginAddress: "203.0.113.7",
	})
	require.NoError(t, err)
	return sess
}

func TestManagerCreate(t *testing.T) {
	t.Parallel()

	t.Run("stores a fresh session and hints a list change", func(t *testing.T) {
		t.Parallel()

		pub := &mockPublisher{}
		pub.On("Publish", mock.Anything, "user-1", mock.AnythingOfType("fabric.SessionListChanged")).Return(nil).Once()

		m, _, clock := newManager(t, session.WithPublisher(pub))
		sess := create(t, m, "user-1")

		assert.NotEqual(t, uuid.Nil, sess.ID)
		assert.Len(t, sess.Token, 43)
		assert.Equal(t, "user-1", sess.PrincipalID)
		assert.Equal(t, clock.Now(), sess.CreatedAt)
		assert.Equal(t, sess.CreatedAt, sess.LastActivityAt)
		assert.Equal(t, clock.Now().Add(m.Config().Lifetime), sess.ExpiresAt)
		assert.Equal(t, "chrome", sess.Device.BrowserFamily)
		assert.Equal(t, "203.0.113.7", sess.OriginAddress)

		pub.AssertExpectations(t)
	})

	t.Run("requires a principal", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t)
		_, err := m.Create(context.Background(), session.CreateParams{})
		assert.ErrorIs(t, err, session.ErrMissingPrincipal)
	})

	t.Run("publish failure does not fail the create", func(t *testing.T) {
		t.Parallel()

		pub := &mockPublisher{}
		pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(fabric.ErrQueueFull)

		m, store, _ := newManager(t, session.WithPublisher(pub))
		create(t, m, "user-1")
		assert.Equal(t, 1, store.Len())
	})

	t.Run("tokens are unique", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t, session.WithMaxSessions(50))
		seen := make(map[string]struct{})
		for range 50 {
			sess := create(t, m, "user-1")
			_, dup := seen[sess.Token]
			require.False(t, dup)
			seen[sess.Token] = struct{}{}
		}
	})
}

func TestManagerCapEviction(t *testing.T) {
	t.Parallel()

	t.Run("sixth login evicts the oldest", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		m, _, clock := newManager(t, session.WithMaxSessions(5), session.WithPublisher(pub))
		ctx := context.Background()

		var created []session.Session
		for range 5 {
			created = append(created, create(t, m, "user-1"))
			clock.Advance(time.Minute)
		}

		t6 := create(t, m, "user-1")

		active, err := m.GetActive(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, active, 5)
		assert.Equal(t, t6.ID, active[0].ID)

		gone, err := m.GetByToken(ctx, created[0].Token)
		require.NoError(t, err)
		assert.Nil(t, gone)

		for _, s := range created[1:] {
			got, err := m.GetByID(ctx, s.ID)
			require.NoError(t, err)
			assert.NotNil(t, got)
		}

		events := pub.all()
		require.Len(t, events, 6)
		assert.Equal(t, fabric.KindSessionListChanged, events[5].event.Kind())
	})

	t.Run("dead sessions free capacity before eviction", func(t *testing.T) {
		t.Parallel()

		m, _, clock := newManager(t,
			session.WithMaxSessions(2),
			session.WithInactivityTimeout(10*time.Minute),
		)
		ctx := context.Background()

		stale := create(t, m, "user-1")
		clock.Advance(9 * time.Minute)
		fresh := create(t, m, "user-1")
		clock.Advance(2 * time.Minute)

		// stale is idle now; fresh is still live and must survive the next create.
		create(t, m, "user-1")

		got, err := m.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)

		got, err = m.GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("other principals are unaffected", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t, session.WithMaxSessions(1))
		ctx := context.Background()

		a := create(t, m, "user-a")
		create(t, m, "user-b")

		got, err := m.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

func TestManagerConcurrentCreates(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	m, err := session.NewManager(store, session.WithMaxSessions(1))
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Create(context.Background(), session.CreateParams{PrincipalID: "user-1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.ListByPrincipal(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestManagerLazyExpiry(t *testing.T) {
	t.Parallel()

	t.Run("idle session disappears one millisecond past the timeout", func(t *testing.T) {
		t.Parallel()

		m, store, clock := newManager(t, session.WithInactivityTimeout(30*time.Minute))
		ctx := context.Background()
		sess := create(t, m, "user-1")

		clock.Advance(30 * time.Minute)
		got, err := m.GetByID(ctx, sess.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "exactly at the timeout the session is still live")

		clock.Advance(time.Millisecond)

		active, err := m.GetActive(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, active)

		got, err = m.GetByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		assert.Zero(t, store.Len())
	})

	t.Run("absolute lifetime wins over activity", func(t *testing.T) {
		t.Parallel()

		m, _, clock := newManager(t,
			session.WithLifetime(time.Hour),
			session.WithInactivityTimeout(30*time.Minute),
		)
		ctx := context.Background()
		sess := create(t, m, "user-1")

		for range 4 {
			clock.Advance(20 * time.Minute)
			_, err := m.Touch(ctx, sess.Token)
			require.NoError(t, err)
		}

		got, err := m.GetByToken(ctx, sess.Token)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("lazy delete failure still reports absent", func(t *testing.T) {
		t.Parallel()

		store := &flakyDeleteStore{MemoryStore: session.NewMemoryStore()}
		clock := newFakeClock()
		m, err := session.NewManager(store, session.WithClock(clock.Now))
		require.NoError(t, err)

		sess := create(t, m, "user-1")
		clock.Advance(m.Config().InactivityTimeout + time.Second)

		got, err := m.GetByID(context.Background(), sess.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

type flakyDeleteStore struct {
	*session.MemoryStore
}

func (s *flakyDeleteStore) Delete(context.Context, uuid.UUID) (session.Session, error) {
	return session.Session{}, errors.Join(session.ErrStoreUnavailable, errors.New("timeout"))
}

func TestManagerGetActive(t *testing.T) {
	t.Parallel()

	m, _, clock := newManager(t)
	ctx := context.Background()

	first := create(t, m, "user-1")
	clock.Advance(time.Minute)
	second := create(t, m, "user-1")
	clock.Advance(time.Minute)

	_, err := m.Touch(ctx, first.Token)
	require.NoError(t, err)

	active, err := m.GetActive(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)

	none, err := m.GetActive(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestManagerTouch(t *testing.T) {
	t.Parallel()

	t.Run("moves last activity forward", func(t *testing.T) {
		t.Parallel()

		m, _, clock := newManager(t)
		sess := create(t, m, "user-1")
		clock.Advance(5 * time.Minute)

		got, err := m.Touch(context.Background(), sess.Token)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, clock.Now(), got.LastActivityAt)
		assert.Equal(t, sess.ExpiresAt, got.ExpiresAt)
	})

	t.Run("absent token is not an error", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t)
		got, err := m.Touch(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = m.Touch(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("dead session is not revived", func(t *testing.T) {
		t.Parallel()

		m, store, clock := newManager(t)
		sess := create(t, m, "user-1")
		clock.Advance(m.Config().InactivityTimeout + time.Millisecond)

		got, err := m.Touch(context.Background(), sess.Token)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 0, store.Len(), "dead session must be deleted on touch")
	})

	t.Run("session past its lifetime is deleted", func(t *testing.T) {
		t.Parallel()

		m, store, clock := newManager(t,
			session.WithLifetime(time.Hour),
			session.WithInactivityTimeout(45*time.Minute),
		)
		live := create(t, m, "user-1")
		clock.Advance(30 * time.Minute)
		_, err := m.Touch(context.Background(), live.Token)
		require.NoError(t, err)
		other := create(t, m, "user-1")
		clock.Advance(31 * time.Minute)

		got, err := m.Touch(context.Background(), live.Token)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 1, store.Len())

		got, err = m.Touch(context.Background(), other.Token)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, other.ID, got.ID)
	})
}

func TestManagerDelete(t *testing.T) {
	t.Parallel()

	t.Run("targets the removed session and is idempotent", func(t *testing.T) {
		t.Parallel()

		pub := &mockPublisher{}
		pub.On("Publish", mock.Anything, "user-1", mock.AnythingOfType("fabric.SessionListChanged")).Return(nil)

		m, _, _ := newManager(t, session.WithPublisher(pub))
		sess := create(t, m, "user-1")

		pub.On("Publish", mock.Anything, "user-1", mock.MatchedBy(func(ev fabric.ForceLogout) bool {
			return ev.Reason == fabric.ReasonRemoteLogout &&
				ev.TargetSessionToken == sess.Token &&
				ev.ExcludeSessionToken == ""
		})).Return(nil).Once()

		ctx := context.Background()
		deleted, err := m.Delete(ctx, sess.ID, fabric.ReasonRemoteLogout)
		require.NoError(t, err)
		require.NotNil(t, deleted)
		assert.Equal(t, sess.ID, deleted.ID)

		again, err := m.Delete(ctx, sess.ID, fabric.ReasonRemoteLogout)
		require.NoError(t, err)
		assert.Nil(t, again)

		pub.AssertExpectations(t)
		pub.AssertNumberOfCalls(t, "Publish", 2)
	})

	t.Run("rejects unknown reasons", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t)
		sess := create(t, m, "user-1")

		_, err := m.Delete(context.Background(), sess.ID, fabric.Reason("because"))
		assert.ErrorIs(t, err, session.ErrInvalidReason)
	})

	t.Run("store failure is reported", func(t *testing.T) {
		t.Parallel()

		store := &flakyDeleteStore{MemoryStore: session.NewMemoryStore()}
		m, err := session.NewManager(store)
		require.NoError(t, err)

		_, err = m.Delete(context.Background(), uuid.New(), fabric.ReasonUserInitiated)
		assert.ErrorIs(t, err, session.ErrDeleteSession)
		assert.ErrorIs(t, err, session.ErrStoreUnavailable)
	})
}

func TestManagerDeleteAllExcept(t *testing.T) {
	t.Parallel()

	t.Run("keeps the current session", func(t *testing.T) {
		t.Parallel()

		pub := &recordingPublisher{}
		m, _, _ := newManager(t, session.WithPublisher(pub))
		ctx := context.Background()

		keep := create(t, m, "user-1")
		create(t, m, "user-1")
		create(t, m, "user-1")
		other := create(t, m, "user-2")

		n, err := m.DeleteAllExcept(ctx, "user-1", keep.Token)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		active, err := m.GetActive(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, keep.ID, active[0].ID)

		got, err := m.GetByID(ctx, other.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)

		events := pub.all()
		require.GreaterOrEqual(t, len(events), 2)
		tail := events[len(events)-2:]
		fl, ok := tail[0].event.(fabric.ForceLogout)
		require.True(t, ok)
		assert.Equal(t, fabric.ReasonUserInitiated, fl.Reason)
		assert.Equal(t, keep.Token, fl.ExcludeSessionToken)
		assert.Empty(t, fl.TargetSessionToken)
		assert.Equal(t, fabric.KindSessionListChanged, tail[1].event.Kind())
	})

	t.Run("empty keep token removes everything", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t)
		ctx := context.Background()
		for range 3 {
			create(t, m, "user-1")
		}

		n, err := m.DeleteAllExcept(ctx, "user-1", "")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		active, err := m.GetActive(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, active)
	})

	t.Run("nothing to delete emits nothing", func(t *testing.T) {
		t.Parallel()

		pub := &mockPublisher{}
		pub.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("fabric.SessionListChanged")).Return(nil).Once()

		m, _, _ := newManager(t, session.WithPublisher(pub))
		keep := create(t, m, "user-1")

		n, err := m.DeleteAllExcept(context.Background(), "user-1", keep.Token)
		require.NoError(t, err)
		assert.Zero(t, n)

		pub.AssertExpectations(t)
	})

	t.Run("requires a principal", func(t *testing.T) {
		t.Parallel()

		m, _, _ := newManager(t)
		_, err := m.DeleteAllExcept(context.Background(), "", "")
		assert.ErrorIs(t, err, session.ErrMissingPrincipal)
	})
}

func TestManagerSweepExpired(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	m, store, clock := newManager(t,
		session.WithPublisher(pub),
		session.WithLifetime(2*time.Hour),
		session.WithInactivityTimeout(30*time.Minute),
	)
	ctx := context.Background()

	idle := create(t, m, "user-q")
	expired := create(t, m, "user-q")

	// expired stays active right up to the end of its lifetime
	for range 6 {
		clock.Advance(20 * time.Minute)
		_, err := m.Touch(ctx, expired.Token)
		require.NoError(t, err)
	}
	live := create(t, m, "user-r")
	clock.Advance(time.Minute)

	eventsBefore := len(pub.all())

	deleted, err := m.SweepExpired(ctx)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(deleted))
	for _, s := range deleted {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{idle.ID, expired.ID}, ids)
	assert.Equal(t, 1, store.Len())

	got, err := m.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Len(t, pub.all(), eventsBefore, "sweep must not publish")
}

type deadlineStore struct {
	*session.MemoryStore
	deadline chan time.Duration
}

func (s *deadlineStore) DeleteExpired(ctx context.Context, now, idleCutoff time.Time) ([]session.Session, error) {
	if dl, ok := ctx.Deadline(); ok {
		s.deadline <- time.Until(dl)
	} else {
		s.deadline <- -1
	}
	return s.MemoryStore.DeleteExpired(ctx, now, idleCutoff)
}

func TestManagerSweepExpiredTimeout(t *testing.T) {
	t.Parallel()

	store := &deadlineStore{MemoryStore: session.NewMemoryStore(), deadline: make(chan time.Duration, 1)}
	m, err := session.NewManager(store, session.WithOperationTimeout(time.Second))
	require.NoError(t, err)

	_, err = m.SweepExpired(context.Background())
	require.NoError(t, err)

	left := <-store.deadline
	assert.Positive(t, left)
	assert.LessOrEqual(t, left, time.Second)
}

func TestManagerTimeoutInfo(t *testing.T) {
	t.Parallel()

	m, _, clock := newManager(t, session.WithInactivityTimeout(30*time.Minute))
	ctx := context.Background()
	sess := create(t, m, "user-1")

	clock.Advance(10 * time.Minute)
	info, err := m.TimeoutInfo(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, info.IsDead)
	assert.Equal(t, 20*time.Minute, info.TimeRemaining)
	assert.Equal(t, sess.ExpiresAt, info.ExpiresAt)
	assert.Equal(t, sess.LastActivityAt, info.LastActivityAt)

	clock.Advance(21 * time.Minute)
	info, err = m.TimeoutInfo(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, info.IsDead)
	assert.Zero(t, info.TimeRemaining)
}

func TestNewManager(t *testing.T) {
	t.Parallel()

	t.Run("requires a store", func(t *testing.T) {
		t.Parallel()

		_, err := session.NewManager(nil)
		assert.ErrorIs(t, err, session.ErrMissingStore)
	})

	t.Run("validates the resulting config", func(t *testing.T) {
		t.Parallel()

		_, err := session.NewManager(session.NewMemoryStore(), session.WithMaxSessions(0))
		assert.ErrorIs(t, err, session.ErrInvalidConfig)
	})

	t.Run("options override config", func(t *testing.T) {
		t.Parallel()

		cfg := session.DefaultConfig()
		cfg.MaxSessions = 3
		m, err := session.NewFromConfig(cfg, session.NewMemoryStore(), session.WithMaxSessions(7))
		require.NoError(t, err)
		assert.Equal(t, 7, m.Config().MaxSessions)
	})
}

func ExampleManager_Create() {
	m, _ := session.NewManager(session.NewMemoryStore(), session.WithMaxSessions(2))
	ctx := context.Background()

	for range 3 {
		_, _ = m.Create(ctx, session.CreateParams{PrincipalID: "user-1"})
	}

	active, _ := m.GetActive(ctx, "user-1")
	fmt.Println(len(active))
	// Output: 2
}
