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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/script-licensing-service/internal/config"
	"github.com/script-licensing-service/internal/handler"
	"github.com/script-licensing-service/internal/metrics"
	"github.com/script-licensing-service/internal/middleware"
	"github.com/script-licensing-service/internal/obfuscator"
	"github.com/script-licensing-service/internal/service"
	"github.com/script-licensing-service/internal/store"
)

// verifyRequestsPerMinute is the per-IP ceiling on the public verify
// endpoint, which has no credential to derive a tier limit from.
const verifyRequestsPerMinute = 60

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if err := runMigrations(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("database ping failed")
	}

	metrics.Register()

	pg := store.NewPostgres(pool)
	engine := obfuscator.NewClient(cfg.ObfuscatorURL, cfg.ObfuscatorTimeout)

	keys := service.NewKeyService(pg)
	licenses := service.NewLicenseService(pg, pg)
	quota := service.NewQuotaService(pg, pg)
	obfuscation := service.NewObfuscationService(quota, engine, cfg.ObfuscatorTimeout)

	rateLimiter := middleware.NewRateLimiter()
	attemptLimiter := middleware.NewAuthAttemptLimiter(0, 0, 0)

	router := newRouter(cfg, pool, routerServices{
		keys:           keys,
		licenses:       licenses,
		quota:          quota,
		obfuscation:    obfuscation,
		accounts:       pg,
		rateLimiter:    rateLimiter,
		attemptLimiter: attemptLimiter,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

type routerServices struct {
	keys           *service.KeyService
	licenses       *service.LicenseService
	quota          *service.QuotaService
	obfuscation    *service.ObfuscationService
	accounts       store.AccountStore
	rateLimiter    *middleware.RateLimiter
	attemptLimiter *middleware.AuthAttemptLimiter
}

func newRouter(cfg *config.Config, pool *pgxpool.Pool, svc routerServices) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Metrics)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-API-Key", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.RequireJSON)

	r.Method(http.MethodGet, "/healthz", handler.NewHealthHandler(pool))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	whitelist := handler.NewWhitelistHandler(svc.licenses)
	keysHandler := handler.NewKeysHandler(svc.keys)

	r.Route("/v1", func(r chi.Router) {
		// Public verification is rate-limited by caller IP; it has no
		// credential.
		r.Group(func(r chi.Router) {
			r.Use(middleware.IPRateLimit(svc.rateLimiter, verifyRequestsPerMinute))
			r.Method(http.MethodPost, "/verify", handler.NewVerifyHandler(svc.licenses))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(svc.keys, svc.accounts, svc.attemptLimiter))
			r.Use(middleware.RateLimit(svc.rateLimiter))

			r.Method(http.MethodPost, "/obfuscate", handler.NewObfuscateHandler(svc.obfuscation))
			r.Method(http.MethodPost, "/products", handler.NewCreateProductHandler(svc.licenses))
			r.Method(http.MethodPost, "/systems", handler.NewCreateSystemHandler(svc.licenses))
			r.Method(http.MethodGet, "/systems", handler.NewListSystemsHandler(svc.licenses))
			r.Method(http.MethodGet, "/usage", handler.NewUsageHandler(svc.quota, svc.rateLimiter))

			r.Post("/whitelist", whitelist.Add)
			r.Get("/whitelist", whitelist.List)
			r.Delete("/whitelist/{id}", whitelist.Delete)
			r.Post("/whitelist/{id}/ban", whitelist.Ban)
			r.Post("/whitelist/{id}/unban", whitelist.Unban)

			r.Post("/keys", keysHandler.Issue)
			r.Get("/keys", keysHandler.List)
			r.Delete("/keys/{id}", keysHandler.Revoke)
		})
	})

	return r
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsDir, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
