package broadcast

import (
	"context"
	"errors"
)

var (
	ErrBroadcasterClosed = errors.New("broadcaster is closed")
	ErrSubscriberClosed  = errors.New("subscriber is closed")
	ErrPublishFailed     = errors.New("failed to publish message")
	ErrEncodeMessage     = errors.New("failed to encode message")
)

// Message wraps a broadcast payload.
type Message[T any] struct {
	Data T
}

// Broadcaster sends messages to every active subscriber.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber that lives until ctx is done or it is closed.
	Subscribe(ctx context.Context) Subscriber[T]
	// Broadcast delivers msg to all subscribers without waiting for them to read it.
	Broadcast(ctx context.Context, msg Message[T]) error
	// Close detaches and closes every subscriber.
	Close() error
}

// Subscriber receives broadcast messages.
type Subscriber[T any] interface {
	// Receive returns the delivery channel. It is closed when the subscriber closes.
	Receive(ctx context.Context) <-chan Message[T]
	Close() error
}

var (
	_ Broadcaster[struct{}] = (*MemoryBroadcaster[struct{}])(nil)
	_ Broadcaster[struct{}] = (*RedisBroadcaster[struct{}])(nil)
)
