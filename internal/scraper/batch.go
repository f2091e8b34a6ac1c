package scraper

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/insight-scraper/internal/config"
	apperrors "github.com/insight-scraper/internal/errors"
	"github.com/insight-scraper/internal/logging"
)

// JobTypeScrape is the job type recorded for profile+timeline scrapes.
// Resumable jobs are matched on it, so the value is part of the ledger
// schema contract.
const JobTypeScrape = "profile_scrape"

// TargetLister provides the batch target list
type TargetLister interface {
	ListUsernames(ctx context.Context) ([]string, error)
}

// FreshnessCache reports whether a target was scraped recently enough
// to skip
type FreshnessCache interface {
	GetFresh(ctx context.Context, handle string) (payload string, ok bool, err error)
}

// JobRunner runs a single scrape job. Satisfied by *Orchestrator.
type JobRunner interface {
	RunJob(ctx context.Context, jobType, target string) error
}

// BatchReport summarizes one batch pass
type BatchReport struct {
	Targets   int
	Skipped   int
	Succeeded int
	Deferred  int
	Failed    int
}

// BatchRunner walks the tracked target list, pacing jobs with a rate
// limiter and skipping targets still fresh in the cache. Each target
// gets a wall-clock budget; targets that fail within it are deferred
// and retried once at the end of the pass.
type BatchRunner struct {
	targets TargetLister
	cache   FreshnessCache
	runner  JobRunner
	limiter *rate.Limiter
	cfg     config.ScraperConfig
	logger  *logging.Logger
}

// NewBatchRunner creates a new batch runner. cache may be nil, in which
// case every target is scraped.
func NewBatchRunner(targets TargetLister, cache FreshnessCache, runner JobRunner, cfg config.ScraperConfig, logger *logging.Logger) *BatchRunner {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	perMinute := cfg.RatePerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	return &BatchRunner{
		targets: targets,
		cache:   cache,
		runner:  runner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes one batch pass over all tracked targets. Store failures
// abort the pass; everything else is absorbed into the report.
func (b *BatchRunner) Run(ctx context.Context) (*BatchReport, error) {
	usernames, err := b.targets.ListUsernames(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list batch targets", err)
	}

	report := &BatchReport{Targets: len(usernames)}
	logger := b.logger.WithField("targets", len(usernames))
	logger.Info("Starting batch pass")

	var deferred []string
	for _, username := range usernames {
		fresh, err := b.isFresh(ctx, username)
		if err != nil {
			// A cache miss is cheaper than a stalled pass.
			b.logger.WithField("target", username).WithError(err).Warn("Freshness check failed, scraping anyway")
		}
		if fresh {
			report.Skipped++
			continue
		}

		if err := b.runTarget(ctx, username); err != nil {
			if apperrors.IsDatabase(err) {
				return report, err
			}
			b.logger.WithField("target", username).WithError(err).Warn("Target failed, deferring retry")
			deferred = append(deferred, username)
			continue
		}
		report.Succeeded++
	}

	// One retry pass for deferred targets. A second failure is final.
	report.Deferred = len(deferred)
	for _, username := range deferred {
		if err := b.runTarget(ctx, username); err != nil {
			if apperrors.IsDatabase(err) {
				return report, err
			}
			b.logger.WithField("target", username).WithError(err).Error("Target failed on deferred retry")
			report.Failed++
			continue
		}
		report.Succeeded++
	}

	logger.WithFields(map[string]interface{}{
		"succeeded": report.Succeeded,
		"skipped":   report.Skipped,
		"deferred":  report.Deferred,
		"failed":    report.Failed,
	}).Info("Batch pass finished")
	return report, nil
}

func (b *BatchRunner) isFresh(ctx context.Context, username string) (bool, error) {
	if b.cache == nil {
		return false, nil
	}
	_, ok, err := b.cache.GetFresh(ctx, username)
	return ok, err
}

// runTarget runs one job inside the per-target wall-clock budget
func (b *BatchRunner) runTarget(ctx context.Context, username string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	targetCtx := ctx
	if b.cfg.TargetTimeout > 0 {
		var cancel context.CancelFunc
		targetCtx, cancel = context.WithTimeout(ctx, b.cfg.TargetTimeout)
		defer cancel()
	}

	return b.runner.RunJob(targetCtx, JobTypeScrape, username)
}
