// Package sessiontest holds the behavioral suite every session.Store
// implementation must pass.
package sessiontest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/session"
)

// Factory returns an empty-enough store for one subtest. Stores backed by a
// shared database may return the same instance; every subtest uses fresh
// principal ids and only asserts on its own rows.
type Factory func(t *testing.T) session.Store

const inactivity = 30 * time.Minute

// Run executes the suite. Subtests run sequentially because the sweep case
// deletes by time across all principals.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("insert evicts the oldest at the cap", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		principal := uuid.NewString()
		base := now()

		var created []session.Session
		for i := range 3 {
			s := New(principal, base.Add(time.Duration(i)*time.Second))
			_, err := store.Insert(ctx, s, params(3, base.Add(3*time.Second)))
			require.NoError(t, err)
			created = append(created, s)
		}

		s4 := New(principal, base.Add(3*time.Second))
		evicted, err := store.Insert(ctx, s4, params(3, base.Add(3*time.Second)))
		require.NoError(t, err)
		require.Len(t, evicted, 1)
		assert.Equal(t, created[0].ID, evicted[0].ID)
		assert.Equal(t, created[0].Token, evicted[0].Token)

		all, err := store.ListByPrincipal(ctx, principal)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{created[1].ID, created[2].ID, s4.ID}, ids(all))
	})

	t.Run("insert purges dead sessions before counting", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		principal := uuid.NewString()
		base := now()

		stale := New(principal, base)
		_, err := store.Insert(ctx, stale, params(2, base))
		require.NoError(t, err)

		later := base.Add(20 * time.Minute)
		live := New(principal, later)
		_, err = store.Insert(ctx, live, params(2, later))
		require.NoError(t, err)

		at := base.Add(inactivity + time.Minute)
		evicted, err := store.Insert(ctx, New(principal, at), params(2, at))
		require.NoError(t, err)
		assert.Empty(t, evicted, "dead sessions are purged, not reported as evicted")

		_, err = store.GetByID(ctx, stale.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.GetByID(ctx, live.ID)
		assert.NoError(t, err)
	})

	t.Run("concurrent inserts never exceed the cap", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		principal := uuid.NewString()
		base := now()

		const goroutines = 20
		var wg sync.WaitGroup
		errs := make(chan error, goroutines)
		for i := range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				at := base.Add(time.Duration(i) * time.Millisecond)
				_, err := store.Insert(ctx, New(principal, at), params(1, at))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}

		all, err := store.ListByPrincipal(ctx, principal)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("insert rejects a duplicate token", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := now()

		first := New(uuid.NewString(), base)
		_, err := store.Insert(ctx, first, params(5, base))
		require.NoError(t, err)

		dup := New(uuid.NewString(), base)
		dup.Token = first.Token
		_, err = store.Insert(ctx, dup, params(5, base))
		assert.ErrorIs(t, err, session.ErrDuplicateToken)
	})

	t.Run("lookups round-trip every field", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := now()

		s := New(uuid.NewString(), base)
		_, err := store.Insert(ctx, s, params(5, base))
		require.NoError(t, err)

		byID, err := store.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assertSame(t, s, byID)

		byToken, err := store.GetByToken(ctx, s.Token)
		require.NoError(t, err)
		assertSame(t, s, byToken)

		_, err = store.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.GetByToken(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)

		none, err := store.ListByPrincipal(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("touch only moves forward and only for live sessions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := now()

		s := New(uuid.NewString(), base)
		_, err := store.Insert(ctx, s, params(5, base))
		require.NoError(t, err)

		later := base.Add(10 * time.Minute)
		touched, err := store.Touch(ctx, s.Token, later, later.Add(-inactivity))
		require.NoError(t, err)
		assert.True(t, later.Equal(touched.LastActivityAt))

		earlier := base.Add(5 * time.Minute)
		touched, err = store.Touch(ctx, s.Token, earlier, earlier.Add(-inactivity))
		require.NoError(t, err)
		assert.True(t, later.Equal(touched.LastActivityAt), "last activity never moves back")

		tooLate := later.Add(inactivity + time.Minute)
		_, err = store.Touch(ctx, s.Token, tooLate, tooLate.Add(-inactivity))
		assert.ErrorIs(t, err, session.ErrNotFound)

		_, err = store.Touch(ctx, "missing", later, later.Add(-inactivity))
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("delete returns the row once", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := now()

		s := New(uuid.NewString(), base)
		_, err := store.Insert(ctx, s, params(5, base))
		require.NoError(t, err)

		deleted, err := store.Delete(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Token, deleted.Token)

		_, err = store.Delete(ctx, s.ID)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("delete by principal honors the keep token", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		principal := uuid.NewString()
		other := New(uuid.NewString(), now())
		base := now()

		_, err := store.Insert(ctx, other, params(5, base))
		require.NoError(t, err)

		var created []session.Session
		for i := range 3 {
			s := New(principal, base.Add(time.Duration(i)*time.Second))
			_, err := store.Insert(ctx, s, params(5, base.Add(3*time.Second)))
			require.NoError(t, err)
			created = append(created, s)
		}

		deleted, err := store.DeleteByPrincipal(ctx, principal, created[1].Token)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uuid.UUID{created[0].ID, created[2].ID}, ids(deleted))

		deleted, err = store.DeleteByPrincipal(ctx, principal, "")
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{created[1].ID}, ids(deleted))

		deleted, err = store.DeleteByPrincipal(ctx, principal, "")
		require.NoError(t, err)
		assert.Empty(t, deleted)

		_, err = store.GetByID(ctx, other.ID)
		assert.NoError(t, err)
	})

	t.Run("delete expired removes both kinds of dead sessions", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		base := now()

		idle := New(uuid.NewString(), base)
		expired := New(uuid.NewString(), base)
		expired.ExpiresAt = base.Add(time.Hour)
		live := New(uuid.NewString(), base)

		for _, s := range []session.Session{idle, expired, live} {
			_, err := store.Insert(ctx, s, params(5, base))
			require.NoError(t, err)
		}

		// keep expired and live active
		at := base.Add(50 * time.Minute)
		for _, s := range []session.Session{expired, live} {
			_, err := store.Touch(ctx, s.Token, at, at.Add(-inactivity))
			require.NoError(t, err)
		}

		sweepAt := base.Add(time.Hour + time.Minute)
		deleted, err := store.DeleteExpired(ctx, sweepAt, sweepAt.Add(-inactivity))
		require.NoError(t, err)

		got := ids(deleted)
		assert.Contains(t, got, idle.ID)
		assert.Contains(t, got, expired.ID)
		assert.NotContains(t, got, live.ID)

		_, err = store.GetByID(ctx, live.ID)
		assert.NoError(t, err)
	})
}

// New builds a session for principalID created at the given instant.
func New(principalID string, at time.Time) session.Session {
	at = at.UTC()
	return session.Session{
		ID:          uuid.New(),
		PrincipalID: principalID,
		Token:       uuid.NewString() + uuid.NewString(),
		Device: session.DeviceInfo{
			BrowserFamily: "firefox",
			OSFamily:      "linux",
			FormFactor:    "desktop",
		},
		OriginAddress:  "198.51.100.4",
		CreatedAt:      at,
		LastActivityAt: at,
		ExpiresAt:      at.Add(7 * 24 * time.Hour),
	}
}

func params(maxSessions int, at time.Time) session.InsertParams {
	return session.InsertParams{
		MaxSessions: maxSessions,
		Now:         at,
		IdleCutoff:  at.Add(-inactivity),
	}
}

// now returns the current time at the precision every backend keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func ids(ss []session.Session) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.ID)
	}
	return out
}

func assertSame(t *testing.T, want, got session.Session) {
	t.Helper()

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.PrincipalID, got.PrincipalID)
	assert.Equal(t, want.Token, got.Token)
	assert.Equal(t, want.Device, got.Device)
	assert.Equal(t, want.OriginAddress, got.OriginAddress)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at")
	assert.True(t, want.LastActivityAt.Equal(got.LastActivityAt), "last_activity_at")
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt), "expires_at")
}
