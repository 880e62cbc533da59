package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/example/ride-ops-console/internal/auth"
	"github.com/example/ride-ops-console/internal/config"
	"github.com/example/ride-ops-console/internal/feed"
	"github.com/example/ride-ops-console/internal/geocode"
	httpapi "github.com/example/ride-ops-console/internal/http"
	"github.com/example/ride-ops-console/internal/ingest"
	"github.com/example/ride-ops-console/internal/logging"
	"github.com/example/ride-ops-console/internal/payments"
	"github.com/example/ride-ops-console/internal/session"
	"github.com/example/ride-ops-console/internal/storage"
	"github.com/example/ride-ops-console/internal/stream"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN, logger)
	}

	// stores: postgres when configured, in-memory otherwise
	var rides storage.RideStore
	var messages storage.MessageStore
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		rides, messages = pg, pg
	} else {
		rides = storage.NewMemoryRideStore()
		messages = storage.NewMemoryMessageStore()
		logger.Warn("PG_DSN not set, using in-memory stores")
	}

	// message subscription source: redis pub/sub when configured
	var source stream.Source
	var notifier stream.Notifier
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		rs := stream.NewRedisSource(redisClient, messages, cfg.WindowSize, logger)
		source, notifier = rs, rs
	} else {
		ms := stream.NewMemorySource(messages, cfg.WindowSize)
		source, notifier = ms, ms
		logger.Warn("REDIS_ADDR not set, chat updates stay process-local")
	}

	// ride feed querier: external ride service when configured, otherwise
	// the console serves itself from the local ride store
	var querier feed.Querier
	if cfg.RideServiceURL != "" {
		querier = feed.NewHTTPQuerier(cfg.RideServiceURL)
	} else {
		querier = &feed.StoreQuerier{Store: rides}
	}

	hub := session.NewHub(querier, source, messages, notifier, session.Config{
		PollInterval: cfg.PollInterval,
		WindowSize:   cfg.WindowSize,
	}, logger)

	if redisClient != nil {
		go ingest.RunInvalidationListener(ctx, redisClient, cfg.InvalidateTopic, hub, logger)
	}

	var events ingest.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
	}

	var geocoder geocode.Client
	if cfg.GeocodeURL != "" {
		geocoder = geocode.NewCached(geocode.NewHTTPClient(cfg.GeocodeURL), cfg.GeocodeTTL)
	}

	var stripeClient *payments.StripeClient
	if cfg.StripeEnabled {
		stripeClient = payments.NewStripeClient()
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-only-insecure-secret"
		logger.Warn("JWT_SECRET not set, using development secret")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Hub:      hub,
		Rides:    rides,
		Messages: messages,
		Auth:     auth.NewManager(cfg.JWTSecret, cfg.SessionTTL),
		Geocoder: geocoder,
		Events:   events,
		Payments: stripeClient,
		Logger:   logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("ride-ops console listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func runMigrations(dsn string, logger *slog.Logger) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_schema.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_schema.sql")
}
