package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("session", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "session", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestElapsed(t *testing.T) {
	t.Parallel()
	attr := logger.Elapsed(time.Now().Add(-500 * time.Millisecond))
	require.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), 500*time.Millisecond)
}

func TestSessionAttrs(t *testing.T) {
	t.Parallel()

	t.Run("principal id", func(t *testing.T) {
		t.Parallel()
		attr := logger.PrincipalID("user-1")
		require.Equal(t, "principal_id", attr.Key)
		assert.Equal(t, "user-1", attr.Value.String())
		assert.True(t, logger.PrincipalID("").Equal(slog.Attr{}))
	})

	t.Run("session id", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		attr := logger.SessionID(id)
		require.Equal(t, "session_id", attr.Key)
		assert.Equal(t, id, attr.Value.Any())
		assert.True(t, logger.SessionID(nil).Equal(slog.Attr{}))
	})

	t.Run("reason", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "session-expired", logger.Reason("session-expired").Value.String())
		assert.True(t, logger.Reason("").Equal(slog.Attr{}))
	})
}

func TestKey(t *testing.T) {
	t.Parallel()
	attr := logger.Key("shard", 3)
	require.Equal(t, "shard", attr.Key)
	assert.EqualValues(t, 3, attr.Value.Any())
	assert.True(t, logger.Key("k", nil).Equal(slog.Attr{}))
}
