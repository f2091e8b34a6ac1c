// Package main runs a single scrape job for one target handle.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/insight-scraper/internal/config"
	"github.com/insight-scraper/internal/logging"
	"github.com/insight-scraper/internal/scraper"
	"github.com/insight-scraper/internal/storage"
)

func main() {
	var (
		target  = flag.String("target", "", "Handle to scrape; additional handles may follow as arguments")
		jobType = flag.String("job-type", scraper.JobTypeScrape, "Job type recorded on the ledger")
	)
	flag.Parse()

	targets := flag.Args()
	if *target != "" {
		targets = append([]string{*target}, targets...)
	}
	if len(targets) == 0 {
		log.Fatal("at least one target handle is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

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

	client, err := scraper.NewHTTPClientFromConfig(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build upstream client")
	}

	sink := scraper.NewStoreSink(
		storage.NewFetchResultRepository(db),
		storage.NewSourceRepository(db),
		cache,
		cfg.Cache.TTL,
		logger,
	)

	orchestrator, err := scraper.NewOrchestrator(&scraper.OrchestratorConfig{
		Accounts:   storage.NewAccountRepository(db),
		Scrapers:   storage.NewScraperMappingRepository(db),
		Jobs:       storage.NewJobStateRepository(db),
		Sink:       sink,
		Capability: client,
		Scraper:    cfg.Scraper,
		ProxyUsed:  cfg.Proxy.URL != "",
		Logger:     logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build orchestrator")
	}

	for _, handle := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.TargetTimeout)
		err := orchestrator.RunJob(ctx, *jobType, handle)
		cancel()
		if err != nil {
			logger.WithField("target", handle).WithError(err).Error("Scrape job failed")
			continue
		}
		logger.WithField("target", handle).Info("Scrape job finished")
	}
}
