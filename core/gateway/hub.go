package gateway

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/session"
)

// Sessions is the part of session.Manager the gateway depends on.
type Sessions interface {
	Touch(ctx context.Context, token string) (*session.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*session.Session, error)
	GetByToken(ctx context.Context, token string) (*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID, reason fabric.Reason) (*session.Session, error)
	DeleteAllExcept(ctx context.Context, principalID, keepToken string) (int, error)
}

// Hub is the registry of connections bound on this instance, grouped by
// principal. It receives fabric events and fans them out to the principal's
// local connections.
type Hub struct {
	sessions Sessions
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	closed  bool

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Stats is a point-in-time snapshot of hub counters.
type Stats struct {
	Connections int
	Principals  int
	Delivered   int64 // Messages queued to clients
	Dropped     int64 // Messages lost to full send buffers
}

// Option configures a Hub.
type Option func(*Hub)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(h *Hub) {
		h.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides time.Now for outbound timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHub creates a hub backed by sessions.
func NewHub(sessions Sessions, opts ...Option) (*Hub, error) {
	if sessions == nil {
		return nil, ErrMissingSessions
	}

	h := &Hub{
		sessions: sessions,
		cfg:      DefaultConfig(),
		logger:   logger.Discard(),
		now:      time.Now,
		clients:  make(map[string]map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := h.cfg.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// NewFromConfig creates a hub from cfg. Options may override config values.
func NewFromConfig(cfg Config, sessions Sessions, opts ...Option) (*Hub, error) {
	return NewHub(sessions, append([]Option{WithConfig(cfg)}, opts...)...)
}

var _ fabric.Sink = (*Hub)(nil)

// Deliver fans ev out to every local connection of principalID.
//
// A force-logout never reaches the connection bound to ExcludeSessionToken.
// The connection bound to TargetSessionToken receives it and is closed;
// other connections only receive it. An untargeted force-logout makes every
// receiving connection re-check its own session after delivery.
func (h *Hub) Deliver(ctx context.Context, principalID string, ev fabric.Event) {
	for _, c := range h.clientsOf(principalID) {
		var out outbound
		switch e := ev.(type) {
		case fabric.ForceLogout:
			if e.ExcludeSessionToken != "" && c.token == e.ExcludeSessionToken {
				continue
			}
			targeted := e.TargetSessionToken != "" && c.token == e.TargetSessionToken
			out = outbound{
				msg:        forceLogoutMessage(e, targeted),
				closeAfter: targeted,
				recheck:    e.TargetSessionToken == "",
			}
		case fabric.SessionListChanged:
			out = outbound{msg: listChangedMessage(e)}
		default:
			h.logger.WarnContext(ctx, "unknown event dropped",
				logger.Component("gateway"),
				logger.PrincipalID(principalID),
			)
			return
		}
		h.send(ctx, c, out)
	}
}

// Close closes every connection with a going-away code and refuses new ones.
// Calls after the first are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.close(CloseGoingAway, ReasonServerShutdown)
		}()
	}
	wg.Wait()

	h.logger.Info("gateway hub closed",
		logger.Component("gateway"),
		logger.Count("connections", len(all)),
	)
}

// Connections returns the number of local connections bound to principalID.
func (h *Hub) Connections(principalID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[principalID])
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return Stats{
		Connections: n,
		Principals:  len(h.clients),
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

func (h *Hub) register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	set, ok := h.clients[c.principalID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.principalID] = set
	}
	set[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.principalID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.principalID)
	}
}

func (h *Hub) clientsOf(principalID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[principalID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// send queues out for c without blocking. A client with a full buffer is
// disconnected.
func (h *Hub) send(ctx context.Context, c *Client, out outbound) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- out:
		h.delivered.Add(1)
	default:
		h.dropped.Add(1)
		h.logger.WarnContext(ctx, "client send buffer full, disconnecting",
			logger.Component("gateway"),
			logger.PrincipalID(c.principalID),
			logger.ConnectionID(c.id),
			logger.Event(out.msg.Type),
		)
		go c.close(ClosePolicy, ReasonSlowConsumer)
	}
}
