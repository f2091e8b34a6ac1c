package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/insight-scraper/internal/logging"
	"github.com/insight-scraper/internal/models"
	"github.com/insight-scraper/internal/storage"
)

// StoreSink persists completed scrapes: the raw payload into the fetch
// result log, the profile and tweets into the source tables, and a
// freshness marker into the cache so batch runs skip the target until
// the TTL lapses.
type StoreSink struct {
	results  *storage.FetchResultRepository
	sources  *storage.SourceRepository
	cache    *storage.RedisCache
	cacheTTL time.Duration
	logger   *logging.Logger
}

// NewStoreSink creates a new store-backed result sink. cache may be nil
// when no freshness cache is configured.
func NewStoreSink(results *storage.FetchResultRepository, sources *storage.SourceRepository, cache *storage.RedisCache, cacheTTL time.Duration, logger *logging.Logger) *StoreSink {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &StoreSink{
		results:  results,
		sources:  sources,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// scrapePayload is the serialized form of one completed scrape
type scrapePayload struct {
	Target  string          `json:"target"`
	Profile *models.Profile `json:"profile,omitempty"`
	Tweets  []models.Tweet  `json:"tweets,omitempty"`
}

// SaveResult implements ResultSink
func (s *StoreSink) SaveResult(ctx context.Context, result *ScrapeResult) error {
	payload, err := json.Marshal(scrapePayload{
		Target:  result.Target,
		Profile: result.Profile,
		Tweets:  result.Tweets,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize scrape result: %w", err)
	}
	raw := string(payload)

	fetchResult := &models.FetchResult{
		AccountID:  result.AccountID,
		DataRaw:    raw,
		DataParsed: &raw,
		ProxyUsed:  result.ProxyUsed,
		DurationMs: int(result.Duration / time.Millisecond),
	}
	id, err := s.results.Save(ctx, fetchResult)
	if err != nil {
		return fmt.Errorf("failed to persist fetch result: %w", err)
	}

	if err := s.sources.UpsertFromProfile(ctx, result.Profile); err != nil {
		return fmt.Errorf("failed to persist source profile: %w", err)
	}
	inserted, err := s.sources.InsertTweets(ctx, result.Tweets)
	if err != nil {
		return fmt.Errorf("failed to persist tweets: %w", err)
	}

	// Cache write failures only cost a redundant scrape later.
	if s.cache != nil {
		if err := s.cache.MarkScraped(ctx, result.Target, raw, s.cacheTTL); err != nil {
			s.logger.WithField("target", result.Target).WithError(err).Warn("Failed to mark target fresh")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"target":        result.Target,
		"fetchResultId": id,
		"newTweets":     inserted,
		"durationMs":    fetchResult.DurationMs,
	}).Info("Scrape result persisted")
	return nil
}
