package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/lumiere-storefront/internal/commerce/memory"
	"github.com/xenking/lumiere-storefront/internal/commerce/storefront"
	"github.com/xenking/lumiere-storefront/internal/domain/cart"
	"github.com/xenking/lumiere-storefront/internal/domain/product"
	"github.com/xenking/lumiere-storefront/internal/handler"
	"github.com/xenking/lumiere-storefront/internal/session"
	"github.com/xenking/lumiere-storefront/internal/storage"
	kvmemory "github.com/xenking/lumiere-storefront/internal/storage/memory"
	"github.com/xenking/lumiere-storefront/internal/storage/postgres"
	kvredis "github.com/xenking/lumiere-storefront/internal/storage/redis"
	"github.com/xenking/lumiere-storefront/internal/storage/sqlite"
	"github.com/xenking/lumiere-storefront/pkg/health"
	"github.com/xenking/lumiere-storefront/pkg/httpmiddleware"
)

// Commerce is the remote commerce API: cart mutations and catalog reads.
type Commerce interface {
	cart.Backend
	product.Catalog
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("commerce", cfg.Commerce.Driver),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()

	commerce, err := NewCommerce(cfg.Commerce, m)
	if err != nil {
		return errors.Wrap(err, "create commerce backend")
	}
	if p, ok := commerce.(health.Pinger); ok {
		healthSvc.Readiness(health.Check{Name: "commerce", Timeout: 5 * time.Second, Func: health.PingCheck(p)})
	}

	kv, closeStorage, err := OpenStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeStorage()
	if p, ok := kv.(health.Pinger); ok {
		healthSvc.Readiness(health.Check{Name: "storage", Timeout: 5 * time.Second, Func: health.PingCheck(p)})
	}

	// Per-session cart stores.
	registry := session.NewRegistry(commerce, kv, session.Options{
		IdleTimeout: cfg.Session.IdleTimeout,
		Store: cart.StoreOptions{
			Logger:         lg.Named("cart"),
			Alerter:        logAlerter(),
			MeterProvider:  m.MeterProvider(),
			TracerProvider: m.TracerProvider(),
			LazyCreate:     cfg.Session.LazyCreate,
		},
	})
	registry.StartCleanup(ctx, time.Minute)

	healthSvc.Liveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})
	healthSvc.Liveness(health.Check{Name: "sessions", Timeout: time.Second, Func: health.SizeCheck("sessions", registry.Len, cfg.Session.MaxSessions)})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{
		CookieName:         cfg.Session.CookieName,
		CookieSecure:       cfg.Session.Secure,
		FeaturedCollection: cfg.FeaturedCollection,
	}, registry, commerce)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Commerce.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.CookieKey(cfg.Session.CookieName),
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("lumiere-storefront", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// NewCommerce builds the configured commerce backend.
func NewCommerce(cfg CommerceConfig, m httpmiddleware.Telemetry) (Commerce, error) {
	switch cfg.Driver {
	case CommerceMemory:
		return memory.New(memory.Config{}), nil
	case CommerceStorefront:
		client, err := storefront.New(storefront.Config{
			Endpoint:       cfg.Endpoint,
			AccessToken:    cfg.AccessToken,
			Timeout:        cfg.Timeout,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, errors.Errorf("unknown commerce driver %q", cfg.Driver)
	}
}

// OpenStorage opens the configured cart identifier storage. The returned
// function releases it.
func OpenStorage(ctx context.Context, lg *zap.Logger, cfg StorageConfig) (storage.KeyValue, func(), error) {
	switch cfg.Driver {
	case StorageMemory:
		return kvmemory.New(), func() {}, nil

	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, errors.Wrap(err, "run migrations")
		}
		store := postgres.NewStore(pool)
		if cfg.TTL > 0 {
			go sweepStaleSessions(ctx, lg, store, cfg.TTL)
		}
		return store, pool.Close, nil

	case StorageRedis:
		client, err := kvredis.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		store := kvredis.New(client, kvredis.Options{TTL: cfg.TTL})
		return store, func() { _ = client.Close() }, nil

	case StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// sweepStaleSessions deletes session rows older than ttl until ctx is done.
func sweepStaleSessions(ctx context.Context, lg *zap.Logger, store *postgres.Store, ttl time.Duration) {
	ticker := time.NewTicker(min(ttl, time.Hour))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteStale(ctx, now.Add(-ttl))
			if err != nil {
				lg.Warn("Stale session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				lg.Info("Deleted stale sessions", zap.Int64("count", n))
			}
		}
	}
}

// logAlerter records user-facing alerts. The HTTP surface shows the message
// in the error response.
func logAlerter() cart.Alerter {
	return cart.AlerterFunc(func(ctx context.Context, message string) {
		zctx.From(ctx).Warn("Cart alert", zap.String("message", message))
	})
}
