package sessiond

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sessionhub/core/config"
	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/gateway"
	"github.com/dmitrymomot/sessionhub/core/health"
	"github.com/dmitrymomot/sessionhub/core/logger"
	"github.com/dmitrymomot/sessionhub/core/middleware"
	"github.com/dmitrymomot/sessionhub/core/server"
	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/core/session/pgstore"
	"github.com/dmitrymomot/sessionhub/core/session/sqlitestore"
	"github.com/dmitrymomot/sessionhub/core/sessionapi"
	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
	"github.com/dmitrymomot/sessionhub/core/sweeper"
	"github.com/dmitrymomot/sessionhub/integration/database/pg"
	"github.com/dmitrymomot/sessionhub/integration/database/redis"
	"github.com/dmitrymomot/sessionhub/pkg/broadcast"
)

// App owns every component of one sessiond instance.
type App struct {
	config    Config
	configSet bool
	logger    *slog.Logger

	store     session.Store
	transport fabric.Transport
	fabric    *fabric.Fabric
	manager   *session.Manager
	hub       *gateway.Hub
	gateway   *gateway.Handler
	api       *sessionapi.API
	sweeper   *sweeper.Scheduler
	jwt       *sessiontransport.JWT
	server    *server.Server

	checks  []func(context.Context) error
	closers []func() error
}

// AppOption customizes App construction.
type AppOption func(*App) error

// NewApp loads configuration from the environment (unless WithConfig is
// given), connects the datastore and the broadcast transport, and wires
// the components together. Nothing runs until Run.
func NewApp(ctx context.Context, opts ...AppOption) (*App, error) {
	app := &App{}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if !app.configSet {
		if err := config.Load(&app.config); err != nil {
			return nil, err
		}
	}

	if app.logger == nil {
		app.logger = newLogger(app.config)
	}

	if err := app.build(ctx); err != nil {
		app.close()
		return nil, err
	}

	return app, nil
}

// WithConfig skips environment loading and uses cfg.
func WithConfig(cfg Config) AppOption {
	return func(app *App) error {
		app.config = cfg
		app.configSet = true
		return nil
	}
}

func WithLogger(logger *slog.Logger) AppOption {
	return func(app *App) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = logger
		return nil
	}
}

// WithStore replaces the configured datastore. The caller keeps ownership.
func WithStore(store session.Store) AppOption {
	return func(app *App) error {
		if store == nil {
			return errors.New("session store cannot be nil")
		}
		app.store = store
		return nil
	}
}

// WithTransport replaces the configured broadcast transport. Instances that
// share a transport see each other's events. The caller keeps ownership.
func WithTransport(transport fabric.Transport) AppOption {
	return func(app *App) error {
		if transport == nil {
			return errors.New("transport cannot be nil")
		}
		app.transport = transport
		return nil
	}
}

func WithServer(server *server.Server) AppOption {
	return func(app *App) error {
		if server == nil {
			return errors.New("server cannot be nil")
		}
		app.server = server
		return nil
	}
}

func (app *App) build(ctx context.Context) error {
	cfg := app.config
	log := app.logger

	if app.store == nil {
		if err := app.openStore(ctx); err != nil {
			return err
		}
	}
	if hc, ok := app.store.(interface{ Healthcheck(context.Context) error }); ok {
		app.checks = append(app.checks, hc.Healthcheck)
	}

	if app.transport == nil {
		app.openTransport(ctx)
	}

	fab, err := fabric.NewFromConfig(cfg.Fabric, app.transport,
		fabric.WithLogger(log),
		fabric.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		return err
	}
	app.fabric = fab

	manager, err := session.NewFromConfig(cfg.Session, app.store,
		session.WithPublisher(fab),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}
	app.manager = manager

	hub, err := gateway.NewFromConfig(cfg.Gateway, manager, gateway.WithLogger(log))
	if err != nil {
		return err
	}
	fab.SetSink(hub)
	app.hub = hub

	jwt, err := sessiontransport.NewJWTFromConfig(cfg.JWT)
	if err != nil {
		return err
	}
	app.jwt = jwt

	if app.gateway, err = gateway.NewHandler(hub, jwt, gateway.WithHandlerLogger(log)); err != nil {
		return err
	}

	if app.api, err = sessionapi.NewFromConfig(cfg.API, manager, jwt, sessionapi.WithLogger(log)); err != nil {
		return err
	}

	app.sweeper, err = sweeper.NewFromConfig(cfg.Sweeper, manager,
		sweeper.WithPublisher(fab),
		sweeper.WithLogger(log),
		sweeper.WithMeterProvider(otel.GetMeterProvider()),
	)
	if err != nil {
		return err
	}

	app.checks = append(app.checks, fab.Healthcheck)

	if app.server == nil {
		srv, err := server.NewFromConfig(cfg.Server,
			server.WithLogger(log),
			server.WithOnShutdown(hub.Close),
		)
		if err != nil {
			return err
		}
		app.server = srv
	}

	return nil
}

func (app *App) openStore(ctx context.Context) error {
	log := app.logger

	switch app.config.StoreDriver {
	case StorePostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
		if err := pgstore.Migrate(ctx, pool, pgCfg, log); err != nil {
			return err
		}
		app.store = pgstore.New(pool)

	case StoreSQLite, "":
		db, err := sqlitestore.Open(ctx, app.config.SQLite)
		if err != nil {
			return err
		}
		app.closers = append(app.closers, db.Close)
		if err := sqlitestore.Migrate(ctx, db, app.config.SQLite, log); err != nil {
			return err
		}
		app.store = sqlitestore.New(db)

	case StoreMemory:
		app.store = session.NewMemoryStore()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, app.config.StoreDriver)
	}

	log.InfoContext(ctx, "session store ready", slog.String("driver", app.storeDriver()))
	return nil
}

// openTransport prefers Redis pub/sub and falls back to the in-process
// broadcaster, so a single instance keeps working without Redis.
func (app *App) openTransport(ctx context.Context) {
	cfg := app.config
	log := app.logger

	if cfg.BroadcastRedis {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err == nil {
			app.transport = broadcast.NewRedisBroadcaster[fabric.Envelope](client, cfg.Fabric.Channel,
				broadcast.WithBufferSize(cfg.BroadcastBuffer),
				broadcast.WithLogger(log),
			)
			app.closers = append(app.closers, client.Close, app.transport.Close)
			app.checks = append(app.checks, redis.Healthcheck(client))
			log.InfoContext(ctx, "cross-instance broadcast enabled", slog.String("channel", cfg.Fabric.Channel))
			return
		}
		log.WarnContext(ctx, "cross-instance broadcast disabled", logger.Error(err))
	} else {
		log.WarnContext(ctx, "cross-instance broadcast disabled", logger.Reason("redis turned off"))
	}

	app.transport = broadcast.NewMemoryBroadcaster[fabric.Envelope](cfg.BroadcastBuffer)
	app.closers = append(app.closers, app.transport.Close)
}

// Handler returns the HTTP routes of the instance.
func (app *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", app.gateway)
	mux.Handle("/sessions", app.api)
	mux.Handle("/sessions/", app.api)
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.Handle("GET /health/ready", health.Readiness(app.logger, app.readiness()...))

	return middleware.Chain(mux,
		middleware.RequestID(),
		middleware.LoggingWithConfig(middleware.LoggingConfig{
			Logger: app.logger,
			Skip:   func(r *http.Request) bool { return strings.HasPrefix(r.URL.Path, "/health/") },
		}),
		middleware.SecurityHeadersWithConfig(app.securityHeaders()),
	)
}

func (app *App) securityHeaders() middleware.SecurityHeadersConfig {
	cfg := middleware.APISecurity
	cfg.IsDevelopment = !strings.EqualFold(app.config.Env, "production")
	return cfg
}

func (app *App) readiness() []func(context.Context) error {
	return append(slices.Clone(app.checks), app.sweeper.Healthcheck)
}

// Run serves until ctx is cancelled, then shuts down in order: HTTP server,
// gateway hub, sweeper, fabric, broadcast transport, datastore.
func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Background components get their own context so they outlive the
	// server and keep publishing while requests drain.
	bgCtx, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()

	bg, bgCtx := errgroup.WithContext(bgCtx)
	bg.Go(app.fabric.Run(bgCtx))
	bg.Go(app.sweeper.Run(bgCtx))
	go func() {
		<-bgCtx.Done()
		cancel()
	}()

	app.logger.InfoContext(ctx, "sessiond starting",
		logger.Instance(app.fabric.InstanceID()),
		slog.String("store", app.storeDriver()),
	)

	serveErr := app.server.Run(ctx, app.Handler())()

	app.hub.Close()
	if err := app.sweeper.Stop(); err != nil && !errors.Is(err, sweeper.ErrNotRunning) {
		app.logger.Error("failed to stop sweeper", logger.Error(err))
	}
	if err := app.fabric.Stop(); err != nil && !errors.Is(err, fabric.ErrNotRunning) {
		app.logger.Error("failed to stop fabric", logger.Error(err))
	}
	stopBackground()
	bgErr := bg.Wait()

	app.close()
	app.logger.Info("sessiond stopped")

	return errors.Join(serveErr, bgErr)
}

// Addr reports the address the HTTP server listens on.
func (app *App) Addr() string {
	return app.server.Addr()
}

// Manager exposes the session manager for in-process callers such as a
// login handler living next to sessiond.
func (app *App) Manager() *session.Manager {
	return app.manager
}

// Hub exposes the gateway hub.
func (app *App) Hub() *gateway.Hub {
	return app.hub
}

// Sweeper exposes the sweep scheduler.
func (app *App) Sweeper() *sweeper.Scheduler {
	return app.sweeper
}

// close releases owned resources in reverse order of acquisition.
func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn("failed to release resource", logger.Error(err))
		}
	}
	app.closers = nil
}

func (app *App) storeDriver() string {
	switch app.store.(type) {
	case *pgstore.Store:
		return StorePostgres
	case *sqlitestore.Store:
		return StoreSQLite
	case *session.MemoryStore:
		return StoreMemory
	default:
		return "custom"
	}
}

func newLogger(cfg Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := []logger.Option{}
	switch strings.ToLower(cfg.Env) {
	case "production":
		opts = append(opts, logger.WithProduction(cfg.AppName))
	case "staging":
		opts = append(opts, logger.WithStaging(cfg.AppName))
	default:
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	opts = append(opts, logger.WithLevel(level))

	return logger.New(opts...)
}
