package broadcast_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/pkg/broadcast"
)

type payload struct {
	Principal string `json:"principal"`
	Seq       int    `json:"seq"`
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisBroadcaster(t *testing.T) {
	t.Parallel()
	client := redisClient(t)

	t.Run("fans out across broadcaster instances", func(t *testing.T) {
		t.Parallel()
		channel := "sessionhub:test:" + uuid.NewString()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		instanceA := broadcast.NewRedisBroadcaster[payload](client, channel)
		instanceB := broadcast.NewRedisBroadcaster[payload](client, channel)
		defer instanceA.Close()
		defer instanceB.Close()

		subA := instanceA.Subscribe(ctx)
		subB := instanceB.Subscribe(ctx)

		for i := range 3 {
			require.NoError(t, instanceA.Broadcast(ctx, broadcast.Message[payload]{Data: payload{Principal: "p1", Seq: i}}))
		}

		for _, sub := range []broadcast.Subscriber[payload]{subA, subB} {
			for i := range 3 {
				msg, ok := receiveWithin(t, sub.Receive(ctx), 2*time.Second)
				require.True(t, ok)
				assert.Equal(t, payload{Principal: "p1", Seq: i}, msg.Data)
			}
		}
	})

	t.Run("rejects broadcast after close", func(t *testing.T) {
		t.Parallel()
		b := broadcast.NewRedisBroadcaster[payload](client, "sessionhub:test:"+uuid.NewString())
		require.NoError(t, b.Close())
		err := b.Broadcast(context.Background(), broadcast.Message[payload]{})
		assert.ErrorIs(t, err, broadcast.ErrBroadcasterClosed)
	})
}
