package sqlitestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/core/session/sessiontest"
	"github.com/dmitrymomot/sessionhub/core/session/sqlitestore"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()

	ctx := context.Background()
	cfg := sqlitestore.Config{
		Path:        filepath.Join(t.TempDir(), "sessions.db"),
		BusyTimeout: 5 * time.Second,
	}

	db, err := sqlitestore.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlitestore.Migrate(ctx, db, cfg, nil))
	return sqlitestore.New(db)
}

func TestStore(t *testing.T) {
	t.Parallel()

	sessiontest.Run(t, func(t *testing.T) session.Store {
		return openStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := sqlitestore.Config{Path: filepath.Join(t.TempDir(), "sessions.db"), BusyTimeout: time.Second}

	db, err := sqlitestore.Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, sqlitestore.Migrate(ctx, db, cfg, nil))
	require.NoError(t, sqlitestore.Migrate(ctx, db, cfg, nil))
}

func TestOpen(t *testing.T) {
	t.Parallel()

	_, err := sqlitestore.Open(context.Background(), sqlitestore.Config{})
	assert.ErrorIs(t, err, sqlitestore.ErrEmptyPath)
}

func TestManagerOnSQLite(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	m, err := session.NewManager(store, session.WithMaxSessions(2))
	require.NoError(t, err)

	ctx := context.Background()
	first, err := m.Create(ctx, session.CreateParams{PrincipalID: "user-1"})
	require.NoError(t, err)
	_, err = m.Create(ctx, session.CreateParams{PrincipalID: "user-1"})
	require.NoError(t, err)
	_, err = m.Create(ctx, session.CreateParams{PrincipalID: "user-1"})
	require.NoError(t, err)

	active, err := m.GetActive(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	got, err := m.GetByToken(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Healthcheck(ctx))
}
