package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/session"
)

const meterName = "github.com/dmitrymomot/sessionhub/core/sweeper"

// Sessions deletes every dead session and returns what it removed.
type Sessions interface {
	SweepExpired(ctx context.Context) ([]session.Session, error)
}

// Publisher hands events to the broadcast fabric.
type Publisher interface {
	Publish(ctx context.Context, principalID string, ev fabric.Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, fabric.Event) error { return nil }

// Scheduler runs a sweep of dead sessions on a fixed interval and tells each
// affected principal once per sweep.
type Scheduler struct {
	sessions  Sessions
	publisher Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  atomic.Bool
	sweeping atomic.Bool
	wg       sync.WaitGroup

	runs      atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	deleted   atomic.Int64
	lastRunAt atomic.Int64

	deletedCounter metric.Int64Counter
	failedCounter  metric.Int64Counter
	skippedCounter metric.Int64Counter
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	Runs       int64     // Sweeps that completed
	Failed     int64     // Sweeps that returned an error
	Skipped    int64     // Ticks skipped because a sweep was still running
	Deleted    int64     // Sessions removed across all sweeps
	LastRunAt  time.Time // Completion time of the last successful sweep
	IsRunning  bool
	IsSweeping bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

// WithInterval sets the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.cfg.Interval = d
	}
}

// WithRunOnStart toggles the sweep at startup.
func WithRunOnStart(enabled bool) Option {
	return func(s *Scheduler) {
		s.cfg.RunOnStart = enabled
	}
}

// WithShutdownTimeout bounds how long Stop waits for a running sweep.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.cfg.ShutdownTimeout = d
		}
	}
}

// WithPublisher sets where session-expired events go.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. The global
// provider is used otherwise.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Scheduler) {
		if mp != nil {
			s.initCounters(mp.Meter(meterName))
		}
	}
}

// New creates a sweep scheduler over sessions.
func New(sessions Sessions, opts ...Option) (*Scheduler, error) {
	if sessions == nil {
		return nil, ErrMissingSessions
	}

	s := &Scheduler{
		sessions:  sessions,
		publisher: noopPublisher{},
		cfg:       DefaultConfig(),
		logger:    logger.Discard(),
		now:       time.Now,
	}
	s.initCounters(otel.GetMeterProvider().Meter(meterName))

	for _, opt := range opts {
		opt(s)
	}

	if s.cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	return s, nil
}

// NewFromConfig creates a scheduler from cfg. Options may override config values.
func NewFromConfig(cfg Config, sessions Sessions, opts ...Option) (*Scheduler, error) {
	return New(sessions, append([]Option{WithConfig(cfg)}, opts...)...)
}

// Start runs sweeps on every interval tick. It blocks until ctx is cancelled
// or Stop is called. Use Run for errgroup integration.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(runCtx, "sweeper started",
		logger.Component("sweeper"),
		slog.Duration("interval", s.cfg.Interval),
		slog.Bool("run_on_start", s.cfg.RunOnStart),
	)

	if s.cfg.RunOnStart {
		s.tick(runCtx)
	}

	for {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		case <-ticker.C:
			s.tick(runCtx)
		}
	}
}

// Stop cancels the tick loop and waits up to the shutdown timeout for a
// running sweep.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	s.running.Store(false)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sweeper stopped", logger.Component("sweeper"))
		return nil
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn("sweeper shutdown timeout exceeded, sweep abandoned",
			logger.Component("sweeper"),
			slog.Duration("timeout", s.cfg.ShutdownTimeout),
		)
		return fmt.Errorf("sweeper: shutdown timeout exceeded after %s", s.cfg.ShutdownTimeout)
	}
}

// Run provides errgroup compatibility.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
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

// SweepNow runs one sweep synchronously and returns how many sessions it
// removed. It fails with ErrSweepInProgress instead of overlapping a
// running sweep.
func (s *Scheduler) SweepNow(ctx context.Context) (int, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return 0, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	return s.sweep(ctx)
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	var last time.Time
	if n := s.lastRunAt.Load(); n != 0 {
		last = time.Unix(0, n).UTC()
	}
	return Stats{
		Runs:       s.runs.Load(),
		Failed:     s.failed.Load(),
		Skipped:    s.skipped.Load(),
		Deleted:    s.deleted.Load(),
		LastRunAt:  last,
		IsRunning:  s.running.Load(),
		IsSweeping: s.sweeping.Load(),
	}
}

// Healthcheck reports whether the scheduler loop is running.
func (s *Scheduler) Healthcheck(ctx context.Context) error {
	if !s.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrNotRunning)
	}
	return nil
}

// tick starts a sweep in the background unless one is still running.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.skippedCounter.Add(context.WithoutCancel(ctx), 1)
		s.logger.WarnContext(ctx, "sweep still running, tick skipped",
			logger.Component("sweeper"),
		)
		return
	}

	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		s.sweeping.Store(false)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.sweeping.Store(false)

		// A sweep outlives shutdown of the tick loop but never its own interval.
		sweepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Interval)
		defer cancel()
		_, _ = s.sweep(sweepCtx)
	}()
}

func (s *Scheduler) sweep(ctx context.Context) (int, error) {
	start := time.Now()

	deleted, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		s.failed.Add(1)
		s.failedCounter.Add(context.WithoutCancel(ctx), 1)
		s.logger.ErrorContext(ctx, "session sweep failed",
			logger.Component("sweeper"),
			logger.Elapsed(start),
			logger.Error(err),
		)
		return 0, err
	}

	principals := groupByPrincipal(deleted)
	now := s.now()
	for _, principalID := range principals {
		ev := fabric.NewForceLogout(fabric.ReasonSessionExpired, now)
		if err := s.publisher.Publish(context.WithoutCancel(ctx), principalID, ev); err != nil {
			s.logger.WarnContext(ctx, "session-expired event not published",
				logger.Component("sweeper"),
				logger.PrincipalID(principalID),
				logger.Error(err),
			)
		}
	}

	s.runs.Add(1)
	s.deleted.Add(int64(len(deleted)))
	s.deletedCounter.Add(context.WithoutCancel(ctx), int64(len(deleted)))
	s.lastRunAt.Store(time.Now().UnixNano())

	s.logger.InfoContext(ctx, "session sweep finished",
		logger.Component("sweeper"),
		logger.Count("sessions", len(deleted)),
		logger.Count("principals", len(principals)),
		logger.Elapsed(start),
	)
	return len(deleted), nil
}

// groupByPrincipal returns each principal once, in order of first appearance.
func groupByPrincipal(sessions []session.Session) []string {
	seen := make(map[string]struct{}, len(sessions))
	out := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		if _, ok := seen[sess.PrincipalID]; ok {
			continue
		}
		seen[sess.PrincipalID] = struct{}{}
		out = append(out, sess.PrincipalID)
	}
	return out
}

func (s *Scheduler) initCounters(m metric.Meter) {
	s.deletedCounter = counter(m, "sweeper.sessions.deleted", "Sessions removed by the sweep")
	s.failedCounter = counter(m, "sweeper.runs.failed", "Sweeps that failed")
	s.skippedCounter = counter(m, "sweeper.ticks.skipped", "Ticks skipped because a sweep was still running")
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
