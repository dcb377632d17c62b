package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nbsync/sync-server-go/internal/config"
	"github.com/nbsync/sync-server-go/internal/database"
	"github.com/nbsync/sync-server-go/internal/handler"
	"github.com/nbsync/sync-server-go/internal/jobs"
	"github.com/nbsync/sync-server-go/internal/middleware"
	"github.com/nbsync/sync-server-go/internal/redis"
	"github.com/nbsync/sync-server-go/internal/repository"
	"github.com/nbsync/sync-server-go/internal/service"
	"github.com/nbsync/sync-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRepo := repository.NewSessionRepository(db.DB)
	contentStore := repository.NewContentStore(redisClient)
	ledgerRepo := repository.NewLedgerRepository(redisClient)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionService := service.NewSessionService(sessionRepo, broker, cfg.SessionCodeLength)
	syncService := service.NewSyncService(
		sessionRepo, contentStore, ledgerRepo, broker,
		cfg.ContentTTL(), cfg.SessionTTL(),
	)
	contentService := service.NewContentService(contentStore, cfg.ContentTTL())

	identityMiddleware := middleware.NewIdentityMiddleware()
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)

	sessionHandler := handler.NewSessionHandler(sessionService, syncService)
	contentHandler := handler.NewContentHandler(contentService)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)
	statusHandler := handler.NewStatusHandler(db, redisClient, sessionRepo)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

	r.Get("/health", statusHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(identityMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/{code}/events", eventsHandler.ServeHTTP)
			r.Mount("/", sessionHandler.Routes())
		})
		r.Mount("/content", contentHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		sessionRepo, ledgerRepo,
		cfg.SessionTTL(), config.EndedSessionRetention, config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
