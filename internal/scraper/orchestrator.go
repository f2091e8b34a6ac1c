// Package scraper contains the account-lifecycle and job-checkpoint
// coordinator: account selection, ownership registration, resumable
// job state, and the failure penalty policy.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/insight-scraper/internal/config"
	apperrors "github.com/insight-scraper/internal/errors"
	"github.com/insight-scraper/internal/logging"
	"github.com/insight-scraper/internal/models"
	"github.com/insight-scraper/internal/retry"
	"github.com/insight-scraper/internal/storage"
)

// AccountStore is the account pool with its atomic state transitions
type AccountStore interface {
	ClaimEligible(ctx context.Context) (*models.Account, error)
	MarkIdle(ctx context.Context, accountID string) error
	IncrementFailure(ctx context.Context, accountID string) (int, error)
	SetCooldown(ctx context.Context, accountID string, minutes int) error
	ResetFailure(ctx context.Context, accountID string) error
	Burn(ctx context.Context, accountID string) error
	SetRestUntil(ctx context.Context, accountID string, minutes int) error
}

// OwnershipRegistry maps scraper instances to the accounts they hold
type OwnershipRegistry interface {
	Register(ctx context.Context, scraperID, accountID string) error
	UpdateStatus(ctx context.Context, scraperID, status string) error
	ActiveCount(ctx context.Context) (int, error)
}

// JobLedger is the persisted checkpoint/status record per job
type JobLedger interface {
	Create(ctx context.Context, scraperID, accountID, jobType string) (*models.JobState, error)
	FindResumable(ctx context.Context, accountID, jobType string) (*models.JobState, error)
	AdoptScraper(ctx context.Context, jobID, scraperID string) error
	Checkpoint(ctx context.Context, jobID, marker string) error
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, message string) error
}

// ScrapeResult is a completed (profile, timeline) tuple with metadata
type ScrapeResult struct {
	AccountID string
	Target    string
	Profile   *models.Profile
	Tweets    []models.Tweet
	ProxyUsed bool
	Duration  time.Duration
}

// ResultSink receives completed scrape results
type ResultSink interface {
	SaveResult(ctx context.Context, result *ScrapeResult) error
}

// Orchestrator drives one scrape job end to end: select an eligible
// account, claim ownership, resume or create the job record, run the
// work with checkpoints, and finalize with either a penalty or a rest
// window.
type Orchestrator struct {
	accounts   AccountStore
	scrapers   OwnershipRegistry
	jobs       JobLedger
	sink       ResultSink
	capability Capability
	derive     PasswordDeriver
	penalty    *PenaltyPolicy
	cfg        config.ScraperConfig
	proxyUsed  bool
	logger     *logging.Logger
}

// OrchestratorConfig wires the orchestrator's collaborators
type OrchestratorConfig struct {
	Accounts   AccountStore
	Scrapers   OwnershipRegistry
	Jobs       JobLedger
	Sink       ResultSink
	Capability Capability
	// DerivePassword defaults to the argon2id derivation.
	DerivePassword PasswordDeriver
	// Penalty defaults to a policy built from Scraper.
	Penalty   *PenaltyPolicy
	Scraper   config.ScraperConfig
	ProxyUsed bool
	Logger    *logging.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(cfg *OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Accounts == nil {
		return nil, fmt.Errorf("account store cannot be nil")
	}
	if cfg.Scrapers == nil {
		return nil, fmt.Errorf("ownership registry cannot be nil")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("job ledger cannot be nil")
	}
	if cfg.Capability == nil {
		return nil, fmt.Errorf("scrape capability cannot be nil")
	}

	derive := cfg.DerivePassword
	if derive == nil {
		derive = DerivePassword
	}
	penalty := cfg.Penalty
	if penalty == nil {
		penalty = NewPenaltyPolicy(&cfg.Scraper)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Orchestrator{
		accounts:   cfg.Accounts,
		scrapers:   cfg.Scrapers,
		jobs:       cfg.Jobs,
		sink:       cfg.Sink,
		capability: cfg.Capability,
		derive:     derive,
		penalty:    penalty,
		cfg:        cfg.Scraper,
		proxyUsed:  cfg.ProxyUsed,
		logger:     logger,
	}, nil
}

// session is the state acquired before work starts: the claimed
// account, the job record, and the checkpoint to resume from.
type session struct {
	scraperID        string
	account          *models.Account
	job              *models.JobState
	resumeCheckpoint *string
}

// RunJob runs one scrape job for the target. It returns nil without
// side effects when the active-scraper cap is reached or no account is
// eligible; both are backpressure, not failure.
func (o *Orchestrator) RunJob(ctx context.Context, jobType, target string) error {
	if target == "" {
		return apperrors.NewValidationError("target", "must not be empty")
	}
	if jobType == "" {
		return apperrors.NewValidationError("jobType", "must not be empty")
	}

	logger := o.logger.WithFields(map[string]interface{}{
		"jobType": jobType,
		"target":  target,
	})

	active, err := o.scrapers.ActiveCount(ctx)
	if err != nil {
		return apperrors.NewDatabaseError("count active scrapers", err)
	}
	if active >= o.cfg.MaxActiveScrapers {
		logger.WithField("active", active).Warn("Active scraper cap reached, skipping job")
		return nil
	}

	scraperID := uuid.NewString()
	sess, err := o.acquireSession(ctx, scraperID, jobType, logger)
	if err != nil {
		return err
	}
	if sess == nil {
		logger.Info("No eligible accounts available")
		return nil
	}

	logger = logger.WithFields(map[string]interface{}{
		"scraperId": scraperID,
		"accountId": sess.account.ID,
		"jobId":     sess.job.JobID,
	})

	if err := o.executeWork(ctx, sess, target, logger); err != nil {
		return o.finalizeFailure(ctx, sess, target, err, logger)
	}
	return o.finalizeSuccess(ctx, sess, logger)
}

// acquireSession rotates through eligible accounts until one logs in,
// applying the penalty policy to each failure. Returns (nil, nil) when
// the pool is exhausted before any login succeeds.
func (o *Orchestrator) acquireSession(ctx context.Context, scraperID, jobType string, logger *logging.Logger) (*session, error) {
	seen := make(map[string]bool)
	registered := false
	var sess *session

	err := retry.Bounded(ctx, o.cfg.MaxLoginAttempts, func(ctx context.Context, attempt int) error {
		account, err := o.accounts.ClaimEligible(ctx)
		if err != nil {
			return apperrors.NewDatabaseError("claim eligible account", err)
		}
		if account == nil {
			return retry.ErrStop
		}

		// An account resurfacing within one rotation means the rest of
		// the pool is spent; going around again would hammer the same
		// credential.
		if seen[account.ID] {
			if err := o.accounts.MarkIdle(ctx, account.ID); err != nil {
				return apperrors.NewDatabaseError("release reselected account", err)
			}
			return retry.ErrStop
		}
		seen[account.ID] = true

		if err := o.scrapers.Register(ctx, scraperID, account.ID); err != nil {
			if errors.Is(err, storage.ErrAccountAlreadyOwned) {
				// Lost a claim race against another worker; rotate.
				return apperrors.NewConflictError(account.ID, err)
			}
			return apperrors.NewDatabaseError("register ownership", err)
		}
		registered = true

		job, resume, err := o.resumeOrCreateJob(ctx, scraperID, account.ID, jobType, logger)
		if err != nil {
			return err
		}

		password, err := o.derive(account.Username, account.Email)
		if err != nil {
			return apperrors.NewValidationError("credentials", err.Error())
		}

		if err := o.capability.Login(ctx, account.Username, password, account.Email); err != nil {
			logger.WithFields(map[string]interface{}{
				"accountId": account.ID,
				"attempt":   attempt,
			}).WithError(err).Warn("Login failed, penalizing account")

			if perr := o.penalize(ctx, account.ID, logger); perr != nil {
				return perr
			}
			return apperrors.NewAuthError(account.ID, err)
		}

		sess = &session{
			scraperID:        scraperID,
			account:          account,
			job:              job,
			resumeCheckpoint: resume,
		}
		return nil
	})

	// A rotation that ends without a session leaves the last Register
	// active; park it so its account returns to the pool once the
	// cooldown lapses instead of counting as owned forever.
	if sess == nil && registered {
		if uerr := o.scrapers.UpdateStatus(ctx, scraperID, models.ScraperStatusCooldown); uerr != nil {
			logger.WithFields(map[string]interface{}{
				"scraperId": scraperID,
			}).WithError(uerr).Error("Failed to release scraper mapping after rotation")
		}
	}

	if err != nil {
		if errors.Is(err, retry.ErrStop) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// resumeOrCreateJob finds the resumable job for (account, job type) or
// creates a fresh one. A job only counts as resumable when it has a
// checkpoint; a running row with none carries no progress worth keeping.
func (o *Orchestrator) resumeOrCreateJob(ctx context.Context, scraperID, accountID, jobType string, logger *logging.Logger) (*models.JobState, *string, error) {
	found, err := o.jobs.FindResumable(ctx, accountID, jobType)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("find resumable job", err)
	}

	if found != nil && found.LastCheckpoint != nil {
		if err := o.jobs.AdoptScraper(ctx, found.JobID, scraperID); err != nil {
			return nil, nil, apperrors.NewDatabaseError("adopt resumable job", err)
		}
		found.ScraperID = scraperID
		found.Status = models.JobStatusRunning
		logger.WithFields(map[string]interface{}{
			"jobId":      found.JobID,
			"checkpoint": *found.LastCheckpoint,
		}).Info("Resuming job from checkpoint")
		return found, found.LastCheckpoint, nil
	}

	job, err := o.jobs.Create(ctx, scraperID, accountID, jobType)
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("create job state", err)
	}
	return job, nil, nil
}

// executeWork runs the milestones, checkpointing after each one and
// skipping those at or before the resume checkpoint.
func (o *Orchestrator) executeWork(ctx context.Context, sess *session, target string, logger *logging.Logger) error {
	resumeRank := -1
	if sess.resumeCheckpoint != nil {
		resumeRank = models.CheckpointRank(*sess.resumeCheckpoint)
	}

	started := time.Now()
	var profile *models.Profile
	var tweets []models.Tweet

	if resumeRank < models.CheckpointRank(models.CheckpointProfileFetched) {
		p, err := o.capability.Profile(ctx, target)
		if err != nil {
			return apperrors.NewScrapeError("profile fetch", err)
		}
		profile = p
		if err := o.jobs.Checkpoint(ctx, sess.job.JobID, models.CheckpointProfileFetched); err != nil {
			return apperrors.NewDatabaseError("checkpoint profile_fetched", err)
		}
	}

	if resumeRank < models.CheckpointRank(models.CheckpointMeFetched) {
		if profile == nil {
			p, err := o.capability.Profile(ctx, target)
			if err != nil {
				return apperrors.NewScrapeError("user id fetch", err)
			}
			profile = p
		}
		if profile != nil && profile.UserID == "" {
			logger.Warn("No user id found for target")
		}
		if err := o.jobs.Checkpoint(ctx, sess.job.JobID, models.CheckpointMeFetched); err != nil {
			return apperrors.NewDatabaseError("checkpoint me_fetched", err)
		}
	}

	if resumeRank < models.CheckpointRank(models.CheckpointTweetsFetched) {
		ts, err := o.capability.Timeline(ctx, target, o.cfg.TweetFetchLimit)
		if err != nil {
			return apperrors.NewScrapeError("timeline fetch", err)
		}
		tweets = ts
		logger.WithField("tweets", len(ts)).Info("Timeline fetched")
		if err := o.jobs.Checkpoint(ctx, sess.job.JobID, models.CheckpointTweetsFetched); err != nil {
			return apperrors.NewDatabaseError("checkpoint tweets_fetched", err)
		}
	}

	if o.sink != nil {
		result := &ScrapeResult{
			AccountID: sess.account.ID,
			Target:    target,
			Profile:   profile,
			Tweets:    tweets,
			ProxyUsed: o.proxyUsed,
			Duration:  time.Since(started),
		}
		if err := o.sink.SaveResult(ctx, result); err != nil {
			return apperrors.NewDatabaseError("save scrape result", err)
		}
	}

	return nil
}

// finalizeSuccess releases the account back to the pool with a clean
// slate and the mandatory rest window, and completes the job.
func (o *Orchestrator) finalizeSuccess(ctx context.Context, sess *session, logger *logging.Logger) error {
	if err := o.scrapers.UpdateStatus(ctx, sess.scraperID, models.ScraperStatusIdle); err != nil {
		return apperrors.NewDatabaseError("release scraper", err)
	}
	if err := o.accounts.MarkIdle(ctx, sess.account.ID); err != nil {
		return apperrors.NewDatabaseError("release account", err)
	}
	if err := o.accounts.ResetFailure(ctx, sess.account.ID); err != nil {
		return apperrors.NewDatabaseError("reset failure count", err)
	}
	if err := o.accounts.SetRestUntil(ctx, sess.account.ID, o.restMinutes()); err != nil {
		return apperrors.NewDatabaseError("set rest window", err)
	}
	if err := o.jobs.Complete(ctx, sess.job.JobID); err != nil {
		return apperrors.NewDatabaseError("complete job", err)
	}

	logger.Info("Job completed successfully")
	return nil
}

// finalizeFailure applies the penalty path for post-login failures:
// park the scraper, penalize the account, record the failure on the
// ledger. The job is not retried with another account; the error goes
// back to the caller.
func (o *Orchestrator) finalizeFailure(ctx context.Context, sess *session, target string, workErr error, logger *logging.Logger) error {
	if errors.Is(workErr, context.DeadlineExceeded) {
		workErr = apperrors.NewTimeoutError(target, workErr)
	}
	logger.WithError(workErr).Error("Job failed")

	// The ledger write below is the durable record; these are best
	// effort and must not mask workErr.
	if err := o.scrapers.UpdateStatus(ctx, sess.scraperID, models.ScraperStatusCooldown); err != nil {
		logger.WithError(err).Error("Failed to park scraper mapping")
	}
	if err := o.penalize(ctx, sess.account.ID, logger); err != nil {
		logger.WithError(err).Error("Failed to penalize account")
	}
	if err := o.jobs.Fail(ctx, sess.job.JobID, workErr.Error()); err != nil {
		logger.WithError(err).Error("Failed to record job failure")
	}

	return workErr
}

// penalize increments the failure counter and applies the policy
// outcome: cooldown and back to the idle pool, or a permanent burn.
func (o *Orchestrator) penalize(ctx context.Context, accountID string, logger *logging.Logger) error {
	newCount, err := o.accounts.IncrementFailure(ctx, accountID)
	if err != nil {
		return apperrors.NewDatabaseError("increment failure count", err)
	}

	minutes := o.penalty.CooldownMinutes(newCount)
	if err := o.accounts.SetCooldown(ctx, accountID, minutes); err != nil {
		return apperrors.NewDatabaseError("set cooldown", err)
	}

	if o.penalty.ShouldBurn(newCount) {
		if err := o.accounts.Burn(ctx, accountID); err != nil {
			return apperrors.NewDatabaseError("burn account", err)
		}
		logger.WithFields(map[string]interface{}{
			"accountId":    accountID,
			"failureCount": newCount,
		}).Warn("Account burned")
		return nil
	}

	if err := o.accounts.MarkIdle(ctx, accountID); err != nil {
		return apperrors.NewDatabaseError("idle cooled account", err)
	}
	logger.WithFields(map[string]interface{}{
		"accountId":       accountID,
		"failureCount":    newCount,
		"cooldownMinutes": minutes,
	}).Info("Cooldown applied")
	return nil
}

func (o *Orchestrator) restMinutes() int {
	minutes := int(o.cfg.Rest / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
