package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jws1910/saleworker/catalog"
	"github.com/jws1910/saleworker/config"
	"github.com/jws1910/saleworker/helpers"
	"github.com/jws1910/saleworker/internal/events"
	"github.com/jws1910/saleworker/internal/httpapi"
	"github.com/jws1910/saleworker/internal/salestate"
	"github.com/jws1910/saleworker/internal/scraper"
	"github.com/jws1910/saleworker/logger"
	"github.com/jws1910/saleworker/services/cache"
	"github.com/jws1910/saleworker/services/publisher"
	"github.com/jws1910/saleworker/services/store"
	"github.com/jws1910/saleworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Load the brand catalog; a missing or malformed catalog is fatal.
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to load catalog")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("brands", len(cat.Brands)).
		Int("categories", len(cat.Categories)).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services := initializeServices(ctx, cfg)
	defer services.Cleanup()

	// Wire the pipeline
	metrics := scraper.NewMetrics()
	fetcher := helpers.NewFetcher(cfg.FetchTimeout, cfg.HostRateLimit)
	extractor := scraper.NewExtractor(cat.Categories)
	orchestrator := scraper.NewOrchestrator(fetcher, extractor, cat, services.Cache, cfg.BlockMarkTTL, metrics)
	scheduler := scraper.NewScheduler(orchestrator, cat, cfg.GroupSize, cfg.GroupCooldown, metrics)

	var subscribers salestate.SubscriberStore
	var notifications salestate.NotificationSink
	if services.Store != nil {
		subscribers, notifications = services.Store, services.Store
	}
	tracker := salestate.NewTracker(subscribers, notifications, services.Publisher, metrics)
	hub := events.NewHub()

	// Background worker
	w := worker.NewWorker(ctx, scheduler, tracker, hub, services.Publisher, cfg.DefaultCountry, cfg.CrawlInterval)
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting sale worker")
		workerDone <- w.Start()
	}()

	// HTTP surface
	router := httpapi.NewRouter(httpapi.Deps{
		Scheduler:      scheduler,
		Tracker:        tracker,
		Hub:            hub,
		Metrics:        metrics,
		DefaultCountry: cfg.DefaultCountry,
	})
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server exited")
		}
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	case err := <-workerDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized external services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *store.PostgresStore
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes the external collaborators. All of them are
// optional at runtime: a missing collaborator degrades the matching side
// effect rather than stopping the pipeline.
func initializeServices(ctx context.Context, cfg config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Using memcache block marks at %s", cfg.MemcacheAddr)
	} else {
		services.Cache = cache.NewMemoryService()
		logger.Info("Using in-process block marks")
	}

	services.Publisher = publisher.NewRedisPublisher(
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamMaxLength,
	)
	logger.Info("Publishing transitions to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("Identity store unavailable, notifications disabled: %v", err)
	} else {
		services.Store = pgStore
	}

	return services
}
