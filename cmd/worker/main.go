// Package main provides the batch scrape worker entry point.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insight-scraper/internal/config"
	"github.com/insight-scraper/internal/logging"
	"github.com/insight-scraper/internal/scraper"
	"github.com/insight-scraper/internal/storage"
	"github.com/insight-scraper/internal/worker"
)

func main() {
	log.Println("Insight scrape worker starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	logger.Info("Connecting to databases...")
	db, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer db.Close()

	var cache *storage.RedisCache
	if cfg.Database.Redis.Host != "" {
		cache, err = storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without freshness cache")
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	logger.Info("Database connections established")

	client, err := scraper.NewHTTPClientFromConfig(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build upstream client")
	}

	sources := storage.NewSourceRepository(db)
	sink := scraper.NewStoreSink(
		storage.NewFetchResultRepository(db),
		sources,
		cache,
		cfg.Cache.TTL,
		logger,
	)

	batchCfg := cfg.Scraper
	batchCfg.TweetFetchLimit = cfg.Scraper.BatchTweetFetchLimit

	orchestrator, err := scraper.NewOrchestrator(&scraper.OrchestratorConfig{
		Accounts:   storage.NewAccountRepository(db),
		Scrapers:   storage.NewScraperMappingRepository(db),
		Jobs:       storage.NewJobStateRepository(db),
		Sink:       sink,
		Capability: client,
		Scraper:    batchCfg,
		ProxyUsed:  cfg.Proxy.URL != "",
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build orchestrator")
	}

	var freshness scraper.FreshnessCache
	if cache != nil {
		freshness = cache
	}
	batch := scraper.NewBatchRunner(sources, freshness, orchestrator, batchCfg, logger)

	scrapeWorker, err := worker.NewScrapeWorker(&worker.ScrapeWorkerConfig{
		Batch:        batch,
		PollInterval: cfg.Worker.PollInterval,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build scrape worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scrapeWorker.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scrape worker")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := scrapeWorker.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Scrape worker did not stop cleanly")
	}

	logger.Info("Scrape worker shut down")
}
