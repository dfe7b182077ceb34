package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sigchi/clinic/internal/config"
	"github.com/sigchi/clinic/internal/domain/clinical"
	"github.com/sigchi/clinic/internal/domain/identity"
	"github.com/sigchi/clinic/internal/domain/scheduling"
	"github.com/sigchi/clinic/internal/platform/auth"
	"github.com/sigchi/clinic/internal/platform/db"
	"github.com/sigchi/clinic/internal/platform/middleware"
	"github.com/sigchi/clinic/internal/policy"
)

const (
	shutdownTimeout = 10 * time.Second
	bodyLimit       = "1M"
)

// deps holds the services shared by the HTTP server and the CLI commands.
type deps struct {
	authn      *auth.Authenticator
	identity   *identity.Service
	scheduling *scheduling.Service
	clinical   *clinical.Service
}

func newDeps(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*deps, error) {
	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenIssuer([]byte(cfg.SecretKey), cfg.Algorithm, cfg.AccessTokenTTL())
	if err != nil {
		return nil, err
	}
	engine := policy.DefaultEngine()

	identitySvc := identity.NewService(
		identity.NewRoleRepoPG(pool),
		identity.NewUserRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		hasher, engine, db.NewTxManager(pool), logger,
	)
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool), identitySvc, engine, logger)
	clinicalSvc := clinical.NewService(clinical.NewHistoryRepoPG(pool), identitySvc, schedulingSvc, engine, logger)

	return &deps{
		authn:      auth.NewAuthenticator(identitySvc, hasher, tokens, logger),
		identity:   identitySvc,
		scheduling: schedulingSvc,
		clinical:   clinicalSvc,
	}, nil
}

// healthPayload is the fixed body of GET /api/health.
var healthPayload = map[string]string{
	"status":  "OK",
	"system":  "SIGCHI",
	"message": "API running",
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, error) {
	d, err := newDeps(cfg, pool, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Pre(echomw.RemoveTrailingSlash())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(bodyLimit))
	e.Use(metrics.Middleware())
	e.Use(auth.Middleware(d.authn, d.identity, auth.AuthSkipper))
	e.Use(middleware.Audit(logger, metrics))

	// Public endpoints
	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthPayload)
	})
	e.GET("/api/health/db", db.PoolHealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 || rateLimitCfg.BurstSize <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	authGroup := e.Group("/api/auth", middleware.RateLimit(rateLimitCfg))
	auth.NewHandler(d.authn).RegisterRoutes(authGroup)

	identityHandler := identity.NewHandler(d.identity)
	identityHandler.RegisterAuthRoutes(authGroup)

	api := e.Group("/api")
	identityHandler.RegisterRoutes(api)
	scheduling.NewHandler(d.scheduling).RegisterRoutes(api)
	clinical.NewHandler(d.clinical).RegisterRoutes(api)

	return e, nil
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, err := newServer(cfg, pool, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
