package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/listingworker/config"
	"sjsage522/listingworker/internal"
	"sjsage522/listingworker/internal/api"
	"sjsage522/listingworker/internal/crawler"
	"sjsage522/listingworker/internal/ratelimit"
	"sjsage522/listingworker/logger"
	"sjsage522/listingworker/services/cache"
	"sjsage522/listingworker/services/export"
	"sjsage522/listingworker/services/publisher"
	"sjsage522/listingworker/services/worker"
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

	log.Info().
		Str("environment", cfg.Environment).
		Str("category", cfg.Category).
		Int("pages", cfg.PageCount).
		Dur("page_delay", cfg.PageDelay).
		Dur("crawl_interval", cfg.CrawlInterval).
		Msg("Starting application")

	if !cfg.IsProduction() {
		log.Debug().
			Str("base_url", cfg.BaseURL).
			Str("categories_file", cfg.CategoriesFile).
			Bool("publish", cfg.PublishEnabled).
			Strs("export_formats", cfg.ExportFormats).
			Str("http_addr", cfg.HTTPAddr).
			Msg("Loaded configuration")
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	deps, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Close()

	categories, checks, err := resolveCategories(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve categories")
	}

	defaults := crawler.ScrapeJob{PageCount: cfg.PageCount, InterPageDelay: cfg.PageDelay}
	targets, err := buildTargets(cfg, categories, defaults)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select categories")
	}
	for _, name := range unavailableTargets(targets, checks) {
		log.Warn().Str("category", name).Msg("Category did not answer the liveness check, scraping it anyway")
	}

	var server *http.Server
	if cfg.HTTPAddr != "" {
		handlers := api.NewHandlers(deps, categories, cfg.ProbeTimeout, cfg.FetchTimeout, defaults)
		server = api.NewServer(cfg.HTTPAddr, handlers)
		go func() {
			log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP API listening")
			if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("HTTP API failed")
				cancel()
			}
		}()
	}

	w := worker.NewWorker(
		ctx,
		targets,
		func() *crawler.Session { return deps.NewSession() },
		deps.Publisher,
		deps.Exporter,
		cfg.CrawlInterval,
	)

	workerDone := make(chan error, 1)
	go func() {
		log.Info().Int("targets", len(targets)).Msg("Starting listing worker")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker exit. With the API enabled a
	// finished one-shot worker keeps the process serving.
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
		if server != nil {
			select {
			case sig := <-sigChan:
				log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			case <-ctx.Done():
			}
			cancel()
		}
	}

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP API shutdown failed")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*internal.Dependencies, error) {
	deps := &internal.Dependencies{}

	// Memcache holds rate-limit blocks; fall back to process memory without it
	memcache := cache.NewMemcacheService(cfg.MemcacheAddr)
	if err := memcache.Ping(); err != nil {
		logger.Warn("Memcache at %s unavailable, using in-memory cache: %v", cfg.MemcacheAddr, err)
		deps.Cache = cache.NewMemoryCache()
	} else {
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		deps.Cache = memcache
	}

	deps.Fetcher = crawler.NewPageFetcher(cfg.FetchTimeout, deps.Cache, cfg.BlockTime)

	if bucket := ratelimit.PerMinute(cfg.PagesPerMinute); bucket != nil {
		deps.Limiter = bucket
		logger.Info("Page rate limited to %d per minute", cfg.PagesPerMinute)
	}

	if cfg.PublishEnabled {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, err
		}
		deps.Publisher = redisPublisher
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if len(cfg.ExportFormats) > 0 {
		deps.Exporter = export.NewFileExporter(cfg.ExportDir, cfg.ExportFormats)
	}

	return deps, nil
}

// resolveCategories loads the registry and checks which categories answer.
// The check only informs; targets are always chosen from the full registry.
func resolveCategories(ctx context.Context, cfg *config.Config) ([]crawler.Category, []crawler.ProbeResult, error) {
	categories, err := crawler.LoadCategories(cfg.CategoriesFile)
	if err != nil {
		return nil, nil, err
	}
	if cfg.BaseURL != "" {
		return categories, nil, nil
	}

	results := crawler.ProbeCategories(ctx, categories, cfg.ProbeTimeout)
	log := logger.ForComponent("registry")
	for _, r := range results {
		log.Info().
			Str("category", r.Name).
			Bool("available", r.Available).
			Int("status", r.StatusCode).
			Str("error", r.Error).
			Msg("Category checked")
	}
	log.Info().
		Int("available", len(crawler.AvailableCategories(results))).
		Int("registered", len(categories)).
		Msg("Category registry checked")
	return categories, results, nil
}

// unavailableTargets names the targets whose category did not answer
func unavailableTargets(targets []worker.Target, checks []crawler.ProbeResult) []string {
	failed := map[string]bool{}
	for _, c := range checks {
		if !c.Available {
			failed[c.Name] = true
		}
	}
	var names []string
	for _, t := range targets {
		if failed[t.Category.Name] {
			names = append(names, t.Category.Name)
		}
	}
	return names
}

// buildTargets scrapes BASE_URL when set, otherwise the configured category
func buildTargets(cfg *config.Config, categories []crawler.Category, defaults crawler.ScrapeJob) ([]worker.Target, error) {
	if cfg.BaseURL != "" {
		job := defaults
		job.BaseURL = cfg.BaseURL
		return []worker.Target{{
			Category: crawler.Category{Name: cfg.Category, URL: cfg.BaseURL},
			Job:      job,
		}}, nil
	}
	return worker.TargetsFor(categories, cfg.Category, defaults)
}
