package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster delivers messages between subscribers of the same process.
// Messages for a subscriber whose buffer is full are dropped.
type MemoryBroadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[*memorySubscriber[T]]struct{}
	buffer int
	closed bool
}

// NewMemoryBroadcaster creates a broadcaster with a per-subscriber buffer.
func NewMemoryBroadcaster[T any](buffer int) *MemoryBroadcaster[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &MemoryBroadcaster[T]{
		subs:   make(map[*memorySubscriber[T]]struct{}),
		buffer: buffer,
	}
}

func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &memorySubscriber[T]{
		ch:     make(chan Message[T], b.buffer),
		quit:   make(chan struct{}),
		parent: b,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.shutdown()
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.quit:
		}
	}()

	return sub
}

func (b *MemoryBroadcaster[T]) Broadcast(_ context.Context, msg Message[T]) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBroadcasterClosed
	}
	for sub := range b.subs {
		sub.deliver(msg)
	}
	return nil
}

func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*memorySubscriber[T]]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
	return nil
}

func (b *MemoryBroadcaster[T]) remove(sub *memorySubscriber[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

type memorySubscriber[T any] struct {
	mu     sync.RWMutex
	ch     chan Message[T]
	closed bool
	quit   chan struct{}
	parent *MemoryBroadcaster[T]
}

func (s *memorySubscriber[T]) Receive(context.Context) <-chan Message[T] {
	return s.ch
}

func (s *memorySubscriber[T]) Close() error {
	s.parent.remove(s)
	s.shutdown()
	return nil
}

func (s *memorySubscriber[T]) deliver(msg Message[T]) {
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

func (s *memorySubscriber[T]) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	close(s.quit)
}
