package fabric

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/pkg/broadcast"
)

const meterName = "github.com/dmitrymomot/sessionhub/core/fabric"

// Sink receives events decoded from the shared transport. The gateway hub
// implements it to fan events out to local connections.
type Sink interface {
	Deliver(ctx context.Context, principalID string, ev Event)
}

// Transport is the shared pub/sub channel between instances.
type Transport = broadcast.Broadcaster[Envelope]

type job struct {
	principalID string
	event       Event
	queuedAt    time.Time
}

// Fabric fans session events out to every instance. Publish enqueues into
// one of several shards chosen by principal, so events for one principal keep
// their order while different principals proceed in parallel.
type Fabric struct {
	transport  Transport
	instanceID string
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	shards []chan job

	sinkMu sync.RWMutex
	sink   Sink

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	closed  atomic.Bool
	wg      sync.WaitGroup

	published    atomic.Int64
	dropped      atomic.Int64
	delivered    atomic.Int64
	decodeFailed atomic.Int64

	publishedCounter metric.Int64Counter
	droppedCounter   metric.Int64Counter
	deliveredCounter metric.Int64Counter
}

// Stats is a point-in-time snapshot of fabric counters.
type Stats struct {
	Published    int64 // Envelopes handed to the transport
	Dropped      int64 // Events lost to a full queue or exhausted retries
	Delivered    int64 // Events handed to the local sink
	DecodeFailed int64 // Transport messages that could not be decoded
	Queued       int   // Events waiting in the dispatch queue
	IsRunning    bool
}

// Option configures a Fabric.
type Option func(*Fabric)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(f *Fabric) {
		f.cfg = cfg
	}
}

// WithWorkers sets the number of dispatch shards.
func WithWorkers(n int) Option {
	return func(f *Fabric) {
		if n > 0 {
			f.cfg.Workers = n
		}
	}
}

// WithQueueSize sets the capacity of each shard.
func WithQueueSize(n int) Option {
	return func(f *Fabric) {
		if n > 0 {
			f.cfg.QueueSize = n
		}
	}
}

// WithRetry sets the publish attempt budget and the initial backoff.
func WithRetry(attempts int, base time.Duration) Option {
	return func(f *Fabric) {
		if attempts > 0 {
			f.cfg.PublishAttempts = attempts
		}
		if base > 0 {
			f.cfg.PublishBackoff = base
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for queued events.
func WithShutdownTimeout(d time.Duration) Option {
	return func(f *Fabric) {
		if d > 0 {
			f.cfg.ShutdownTimeout = d
		}
	}
}

// WithInstanceID sets the origin stamped on outgoing envelopes.
func WithInstanceID(id string) Option {
	return func(f *Fabric) {
		if id != "" {
			f.instanceID = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fabric) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. The global one is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(f *Fabric) {
		if mp != nil {
			f.initCounters(mp.Meter(meterName))
		}
	}
}

// New creates a Fabric over transport. Call Start (or Run) to begin
// dispatching and receiving; events published before that wait in the queue.
func New(transport Transport, opts ...Option) (*Fabric, error) {
	if transport == nil {
		return nil, errors.New("fabric: transport is required")
	}

	f := &Fabric{
		transport:  transport,
		instanceID: uuid.NewString(),
		cfg:        DefaultConfig(),
		logger:     logger.Discard(),
		now:        time.Now,
	}
	f.initCounters(otel.Meter(meterName))

	for _, opt := range opts {
		opt(f)
	}

	if f.cfg.Workers < 1 || f.cfg.QueueSize < 1 {
		return nil, fmt.Errorf("fabric: workers and queue size must be positive, got %d and %d",
			f.cfg.Workers, f.cfg.QueueSize)
	}
	if f.cfg.PublishAttempts < 1 {
		f.cfg.PublishAttempts = 1
	}

	f.shards = make([]chan job, f.cfg.Workers)
	for i := range f.shards {
		f.shards[i] = make(chan job, f.cfg.QueueSize)
	}

	return f, nil
}

// NewFromConfig creates a Fabric from cfg. Options may override config values.
func NewFromConfig(cfg Config, transport Transport, opts ...Option) (*Fabric, error) {
	return New(transport, append([]Option{WithConfig(cfg)}, opts...)...)
}

// InstanceID returns the origin stamped on envelopes sent by this instance.
func (f *Fabric) InstanceID() string {
	return f.instanceID
}

// SetSink registers where received events go. It may be called at any time;
// events received while no sink is set are discarded.
func (f *Fabric) SetSink(s Sink) {
	f.sinkMu.Lock()
	f.sink = s
	f.sinkMu.Unlock()
}

// Publish enqueues ev for principalID and returns without waiting for the
// transport. A full shard drops the event and returns ErrQueueFull.
func (f *Fabric) Publish(ctx context.Context, principalID string, ev Event) error {
	if f.closed.Load() {
		return ErrFabricClosed
	}
	if principalID == "" {
		return ErrMissingPrincipal
	}
	if ev == nil {
		return ErrUnknownEvent
	}

	j := job{principalID: principalID, event: ev, queuedAt: f.now()}
	select {
	case f.shards[f.shardFor(principalID)] <- j:
		return nil
	default:
		f.drop(ctx, j, ErrQueueFull)
		return ErrQueueFull
	}
}

// Start subscribes to the transport and runs the dispatch workers. It blocks
// until ctx is cancelled or Stop is called.
func (f *Fabric) Start(ctx context.Context) error {
	if f.closed.Load() {
		return ErrFabricClosed
	}

	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	sub := f.transport.Subscribe(runCtx)
	f.running.Store(true)

	for i := range f.shards {
		f.wg.Add(1)
		go f.work(runCtx, f.shards[i])
	}

	f.logger.InfoContext(runCtx, "fabric started",
		logger.Component("fabric"),
		logger.Instance(f.instanceID),
		slog.Int("workers", len(f.shards)),
		slog.Int("queue_size", f.cfg.QueueSize),
	)

	f.receive(runCtx, sub)
	_ = sub.Close()
	f.running.Store(false)

	return runCtx.Err()
}

// Stop cancels the receive loop and waits up to the shutdown timeout for the
// workers to flush queued events. Publish fails with ErrFabricClosed afterwards.
func (f *Fabric) Stop() error {
	f.closed.Store(true)

	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	f.running.Store(false)

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		f.logger.Info("fabric stopped", logger.Component("fabric"))
		return nil
	case <-time.After(f.cfg.ShutdownTimeout):
		f.logger.Warn("fabric shutdown timeout exceeded, queued events abandoned",
			logger.Component("fabric"),
			slog.Duration("timeout", f.cfg.ShutdownTimeout),
		)
		return fmt.Errorf("fabric: shutdown timeout exceeded after %s", f.cfg.ShutdownTimeout)
	}
}

// Run provides errgroup compatibility.
func (f *Fabric) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- f.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = f.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Stats returns current counters.
func (f *Fabric) Stats() Stats {
	queued := 0
	for _, s := range f.shards {
		queued += len(s)
	}
	return Stats{
		Published:    f.published.Load(),
		Dropped:      f.dropped.Load(),
		Delivered:    f.delivered.Load(),
		DecodeFailed: f.decodeFailed.Load(),
		Queued:       queued,
		IsRunning:    f.running.Load(),
	}
}

// Healthcheck reports whether the fabric is running.
func (f *Fabric) Healthcheck(ctx context.Context) error {
	if !f.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrNotRunning)
	}
	return nil
}

func (f *Fabric) shardFor(principalID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	return int(h.Sum32() % uint32(len(f.shards)))
}

// work drains one shard. After ctx is cancelled it flushes whatever is
// already queued and returns.
func (f *Fabric) work(ctx context.Context, shard <-chan job) {
	defer f.wg.Done()

	for {
		select {
		case j := <-shard:
			f.dispatch(j)
		case <-ctx.Done():
			for {
				select {
				case j := <-shard:
					f.dispatch(j)
				default:
					return
				}
			}
		}
	}
}

func (f *Fabric) dispatch(j job) {
	env, err := Seal(j.principalID, j.event, f.instanceID, f.now())
	if err != nil {
		f.drop(context.Background(), j, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.PublishTimeout)
	defer cancel()

	attempt := 0
	err = retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		attempt++
		if err := f.transport.Broadcast(ctx, broadcast.Message[Envelope]{Data: env}); err != nil {
			if errors.Is(err, broadcast.ErrBroadcasterClosed) || errors.Is(err, broadcast.ErrEncodeMessage) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		f.logger.Warn("fabric publish failed",
			logger.Component("fabric"),
			logger.PrincipalID(j.principalID),
			logger.Event(string(env.Kind)),
			logger.RetryCount(attempt),
			logger.Error(err),
		)
		f.drop(ctx, j, err)
		return
	}

	f.published.Add(1)
	f.publishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(env.Kind))))
}

func (f *Fabric) backoff() retry.Backoff {
	retries := uint64(f.cfg.PublishAttempts - 1)
	return retry.WithMaxRetries(retries, retry.WithJitterPercent(10, retry.NewExponential(f.cfg.PublishBackoff)))
}

func (f *Fabric) receive(ctx context.Context, sub broadcast.Subscriber[Envelope]) {
	msgs := sub.Receive(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					f.logger.Warn("fabric subscription closed", logger.Component("fabric"))
				}
				return
			}
			f.handle(ctx, msg.Data)
		}
	}
}

func (f *Fabric) handle(ctx context.Context, env Envelope) {
	ev, err := env.Open()
	if err != nil {
		f.decodeFailed.Add(1)
		f.logger.WarnContext(ctx, "fabric message skipped",
			logger.Component("fabric"),
			logger.PrincipalID(env.PrincipalID),
			logger.Instance(env.Origin),
			logger.Error(err),
		)
		return
	}

	f.sinkMu.RLock()
	sink := f.sink
	f.sinkMu.RUnlock()
	if sink == nil {
		return
	}

	sink.Deliver(ctx, env.PrincipalID, ev)
	f.delivered.Add(1)
	f.deliveredCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(env.Kind))))
}

func (f *Fabric) drop(ctx context.Context, j job, cause error) {
	f.dropped.Add(1)
	f.droppedCounter.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(attribute.String("kind", string(j.event.Kind()))))
	f.logger.WarnContext(ctx, "fabric event dropped",
		logger.Component("fabric"),
		logger.PrincipalID(j.principalID),
		logger.Event(string(j.event.Kind())),
		logger.Error(cause),
	)
}

func (f *Fabric) initCounters(m metric.Meter) {
	f.publishedCounter = counter(m, "fabric.events.published", "Events handed to the shared transport")
	f.droppedCounter = counter(m, "fabric.events.dropped", "Events dropped by the dispatch queue or after retries")
	f.deliveredCounter = counter(m, "fabric.events.delivered", "Events delivered to local connections")
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
