package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/config"
	"github.com/healthportal/portal/internal/domain/facility"
	"github.com/healthportal/portal/internal/domain/identity"
	"github.com/healthportal/portal/internal/domain/portal"
	"github.com/healthportal/portal/internal/domain/scheduling"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/logging"
	"github.com/healthportal/portal/internal/platform/metrics"
	"github.com/healthportal/portal/internal/platform/middleware"
	"github.com/healthportal/portal/internal/platform/websocket"
	"github.com/healthportal/portal/pkg/clock"
)

// services holds the domain services shared by the HTTP server and the
// seed command.
type services struct {
	facilities   *facility.Service
	identity     *identity.Service
	appointments *scheduling.Service
	portal       *portal.Service
	feed         *websocket.Hub
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics, clk clock.Clock, logger zerolog.Logger) (*services, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHub(logger.With().Str("component", "feed").Logger())

	facilitySvc := facility.NewService(facility.NewRepoPG(pool), logger.With().Str("domain", "facility").Logger())

	schedulingSvc := scheduling.NewService(
		scheduling.NewAppointmentRepoPG(pool),
		db.NewTxRunner(pool),
		clk,
		scheduling.Config{Location: loc, NoShowRequiresPastStart: cfg.NoShowRequiresPastStart},
		scheduling.WithRecorder(m),
		scheduling.WithPublisher(appointmentFeed{hub: hub, logger: logger}),
		scheduling.WithLogger(logger.With().Str("domain", "scheduling").Logger()),
	)

	identitySvc := identity.NewService(
		identity.NewDoctorRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		facilitySvc,
		schedulingSvc,
		clk,
		logger.With().Str("domain", "identity").Logger(),
	)

	portalSvc := portal.NewService(schedulingSvc, facilitySvc, logger.With().Str("domain", "portal").Logger(),
		portal.WithAuthenticator(auth.UserDoctor, portal.AuthenticatorFunc(identitySvc.AuthenticateDoctor)),
		portal.WithAuthenticator(auth.UserPatient, portal.AuthenticatorFunc(identitySvc.AuthenticatePatient)),
		portal.WithAuthenticator(auth.UserFacility, facilitySvc),
		portal.WithLoginRecorder(m),
	)

	return &services{
		facilities:   facilitySvc,
		identity:     identitySvc,
		appointments: schedulingSvc,
		portal:       portalSvc,
		feed:         hub,
	}, nil
}

// newSessionStore uses Redis when it is reachable. Development falls back
// to an in-process store so the server can run without Redis.
func newSessionStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.SessionStore, redis.UniversalClient, error) {
	rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err == nil {
		return auth.NewRedisSessionStore(rdb), rdb, nil
	}
	if !cfg.IsDev() {
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Warn().Err(err).Msg("redis unavailable, using in-memory sessions")
	return auth.NewMemorySessionStore(nil), nil, nil
}

// newRouter builds the echo instance with the global middleware chain and
// every route mounted.
func newRouter(cfg *config.Config, svcs *services, sessions *auth.Sessions, authorizer *auth.Authorizer,
	health *db.HealthChecker, m *metrics.Metrics, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(m.Middleware())
	e.Use(sessions.Authenticate())
	e.Use(authorizer.Authorize())

	e.GET("/health", health.Handler())
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	api := e.Group("/api/v1")
	facility.NewHandler(svcs.facilities).RegisterRoutes(api)
	identity.NewHandler(svcs.identity).RegisterRoutes(api)
	scheduling.NewHandler(svcs.appointments).RegisterRoutes(api)
	portal.NewHandler(svcs.portal, sessions).RegisterRoutes(api)
	websocket.NewHandler(svcs.feed, cfg.CORSOrigins, logger).RegisterRoutes(api)

	return e
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer) {
	return logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Console:    cfg.IsDev(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Service:    "portal-server",
	})
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser := newLogger(cfg)
	defer logCloser.Close()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, rdb, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set up session store")
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	signer, err := auth.NewTokenSigner(cfg.SessionSecret, nil)
	if err != nil {
		return err
	}
	clk := clock.System{}
	sessions := auth.NewSessions(store, signer, auth.CookieConfig{
		Name:   cfg.SessionCookie,
		Secure: cfg.IsProduction(),
		TTL:    cfg.SessionTTL,
	}, clk, logger)

	authorizer, err := auth.NewAuthorizer(nil)
	if err != nil {
		return err
	}

	health := db.NewHealthChecker(2*time.Second).Add("postgres", db.PostgresProbe(pool))
	if rdb != nil {
		health.Add("redis", db.RedisProbe(rdb))
	}
	health.WithPool(pool)

	m := metrics.New()
	svcs, err := newServices(cfg, pool, m, clk, logger)
	if err != nil {
		return err
	}
	e := newRouter(cfg, svcs, sessions, authorizer, health, m, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
