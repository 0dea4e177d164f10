package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes JSON-encoded messages on one Redis pub/sub channel.
// Every process subscribed to the channel, including the publisher, receives them.
type RedisBroadcaster[T any] struct {
	client  redis.UniversalClient
	channel string
	buffer  int
	logger  *slog.Logger
	closed  atomic.Bool

	mu   sync.Mutex
	subs map[*redisSubscriber[T]]struct{}
}

// RedisOption configures a RedisBroadcaster.
type RedisOption func(*redisOptions)

type redisOptions struct {
	buffer int
	logger *slog.Logger
}

// WithBufferSize sets the per-subscriber delivery buffer.
func WithBufferSize(size int) RedisOption {
	return func(o *redisOptions) {
		if size > 0 {
			o.buffer = size
		}
	}
}

// WithLogger sets the logger used for undecodable messages and subscription failures.
func WithLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewRedisBroadcaster creates a broadcaster bound to channel.
func NewRedisBroadcaster[T any](client redis.UniversalClient, channel string, opts ...RedisOption) *RedisBroadcaster[T] {
	o := &redisOptions{
		buffer: 256,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &RedisBroadcaster[T]{
		client:  client,
		channel: channel,
		buffer:  o.buffer,
		logger:  o.logger,
		subs:    make(map[*redisSubscriber[T]]struct{}),
	}
}

func (b *RedisBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	if b.closed.Load() {
		return ErrBroadcasterClosed
	}

	data, err := json.Marshal(msg.Data)
	if err != nil {
		return errors.Join(ErrEncodeMessage, err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Subscribe waits for Redis to confirm the subscription before returning, so
// messages published after Subscribe returns are not missed.
func (b *RedisBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &redisSubscriber[T]{
		ch:     make(chan Message[T], b.buffer),
		parent: b,
	}

	if b.closed.Load() {
		sub.shutdown()
		return sub
	}

	sub.ps = b.client.Subscribe(ctx, b.channel)
	if _, err := sub.ps.Receive(ctx); err != nil {
		b.logger.WarnContext(ctx, "redis subscription not confirmed",
			slog.String("channel", b.channel),
			slog.Any("error", err),
		)
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump(ctx)

	return sub
}

func (b *RedisBroadcaster[T]) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*redisSubscriber[T]]struct{})
	b.mu.Unlock()

	var errs []error
	for sub := range subs {
		errs = append(errs, sub.shutdown())
	}
	return errors.Join(errs...)
}

func (b *RedisBroadcaster[T]) remove(sub *redisSubscriber[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

type redisSubscriber[T any] struct {
	mu     sync.RWMutex
	ps     *redis.PubSub
	ch     chan Message[T]
	closed bool
	parent *RedisBroadcaster[T]
}

func (s *redisSubscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *redisSubscriber[T]) Close() error {
	s.parent.remove(s)
	return s.shutdown()
}

func (s *redisSubscriber[T]) pump(ctx context.Context) {
	defer s.Close()

	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var data T
			if err := json.Unmarshal([]byte(m.Payload), &data); err != nil {
				s.parent.logger.WarnContext(ctx, "dropping undecodable message",
					slog.String("channel", m.Channel),
					slog.Any("error", err),
				)
				continue
			}
			s.deliver(Message[T]{Data: data})
		}
	}
}

func (s *redisSubscriber[T]) deliver(msg Message[T]) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- msg:
	default:
	}
}

func (s *redisSubscriber[T]) shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	if s.ps != nil {
		return s.ps.Close()
	}
	return nil
}
