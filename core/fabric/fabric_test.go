package fabric_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/pkg/broadcast"
)

type received struct {
	principalID string
	event       fabric.Event
}

type recordingSink struct {
	mu     sync.Mutex
	events []received
}

func (s *recordingSink) Deliver(_ context.Context, principalID string, ev fabric.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, received{principalID: principalID, event: ev})
}

func (s *recordingSink) snapshot() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.events...)
}

// failingTransport fails every publish but still hands out working subscriptions.
type failingTransport struct {
	*broadcast.MemoryBroadcaster[fabric.Envelope]
	calls atomic.Int32
}

func (t *failingTransport) Broadcast(context.Context, broadcast.Message[fabric.Envelope]) error {
	t.calls.Add(1)
	return errors.New("connection reset")
}

func startFabric(t *testing.T, f *fabric.Fabric) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx)() }()

	require.Eventually(t, func() bool { return f.Stats().IsRunning }, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("fabric did not stop")
		}
	})
}

func TestFabric(t *testing.T) {
	t.Parallel()

	t.Run("keeps per-principal order", func(t *testing.T) {
		t.Parallel()

		transport := broadcast.NewMemoryBroadcaster[fabric.Envelope](64)
		f, err := fabric.New(transport, fabric.WithWorkers(4))
		require.NoError(t, err)

		sink := &recordingSink{}
		f.SetSink(sink)
		startFabric(t, f)

		ctx := context.Background()
		now := time.Now()
		require.NoError(t, f.Publish(ctx, "user-1", fabric.NewSessionListChanged(now)))
		require.NoError(t, f.Publish(ctx, "user-1", fabric.NewForceLogout(fabric.ReasonUserInitiated, now)))

		require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 5*time.Millisecond)

		got := sink.snapshot()
		assert.Equal(t, "user-1", got[0].principalID)
		assert.Equal(t, fabric.KindSessionListChanged, got[0].event.Kind())
		assert.Equal(t, fabric.KindForceLogout, got[1].event.Kind())
		assert.EqualValues(t, 2, f.Stats().Published)
		assert.EqualValues(t, 2, f.Stats().Delivered)
	})

	t.Run("delivers events published by another instance", func(t *testing.T) {
		t.Parallel()

		transport := broadcast.NewMemoryBroadcaster[fabric.Envelope](64)

		sender, err := fabric.New(transport, fabric.WithInstanceID("a"))
		require.NoError(t, err)
		receiver, err := fabric.New(transport, fabric.WithInstanceID("b"))
		require.NoError(t, err)

		sink := &recordingSink{}
		receiver.SetSink(sink)
		startFabric(t, sender)
		startFabric(t, receiver)

		ev := fabric.NewForceLogout(fabric.ReasonRemoteLogout, time.Now())
		ev.TargetSessionToken = "tok-x"
		require.NoError(t, sender.Publish(context.Background(), "user-2", ev))

		require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
		fl, ok := sink.snapshot()[0].event.(fabric.ForceLogout)
		require.True(t, ok)
		assert.Equal(t, "tok-x", fl.TargetSessionToken)
	})

	t.Run("drops when the shard is full", func(t *testing.T) {
		t.Parallel()

		transport := broadcast.NewMemoryBroadcaster[fabric.Envelope](1)
		f, err := fabric.New(transport, fabric.WithWorkers(1), fabric.WithQueueSize(1))
		require.NoError(t, err)

		ctx := context.Background()
		require.NoError(t, f.Publish(ctx, "user-1", fabric.NewSessionListChanged(time.Now())))
		err = f.Publish(ctx, "user-1", fabric.NewSessionListChanged(time.Now()))
		assert.ErrorIs(t, err, fabric.ErrQueueFull)

		stats := f.Stats()
		assert.EqualValues(t, 1, stats.Dropped)
		assert.Equal(t, 1, stats.Queued)
	})

	t.Run("retries then drops on transport failure", func(t *testing.T) {
		t.Parallel()

		transport := &failingTransport{MemoryBroadcaster: broadcast.NewMemoryBroadcaster[fabric.Envelope](4)}
		f, err := fabric.New(transport, fabric.WithRetry(3, time.Millisecond))
		require.NoError(t, err)
		startFabric(t, f)

		require.NoError(t, f.Publish(context.Background(), "user-1", fabric.NewSessionListChanged(time.Now())))

		require.Eventually(t, func() bool { return f.Stats().Dropped == 1 }, 2*time.Second, 5*time.Millisecond)
		assert.EqualValues(t, 3, transport.calls.Load())
		assert.Zero(t, f.Stats().Published)
	})

	t.Run("rejects publish after stop", func(t *testing.T) {
		t.Parallel()

		f, err := fabric.New(broadcast.NewMemoryBroadcaster[fabric.Envelope](1))
		require.NoError(t, err)

		assert.ErrorIs(t, f.Stop(), fabric.ErrNotRunning)
		err = f.Publish(context.Background(), "user-1", fabric.NewSessionListChanged(time.Now()))
		assert.ErrorIs(t, err, fabric.ErrFabricClosed)
	})

	t.Run("rejects missing principal", func(t *testing.T) {
		t.Parallel()

		f, err := fabric.New(broadcast.NewMemoryBroadcaster[fabric.Envelope](1))
		require.NoError(t, err)

		err = f.Publish(context.Background(), "", fabric.NewSessionListChanged(time.Now()))
		assert.ErrorIs(t, err, fabric.ErrMissingPrincipal)
	})

	t.Run("healthcheck follows the lifecycle", func(t *testing.T) {
		t.Parallel()

		f, err := fabric.New(broadcast.NewMemoryBroadcaster[fabric.Envelope](1))
		require.NoError(t, err)

		err = f.Healthcheck(context.Background())
		assert.ErrorIs(t, err, fabric.ErrHealthcheckFailed)
		assert.ErrorIs(t, err, fabric.ErrNotRunning)

		startFabric(t, f)
		assert.NoError(t, f.Healthcheck(context.Background()))
	})

	t.Run("requires a transport", func(t *testing.T) {
		t.Parallel()

		_, err := fabric.New(nil)
		assert.Error(t, err)
	})
}
