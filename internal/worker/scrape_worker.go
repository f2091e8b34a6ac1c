// Package worker runs the periodic batch scrape loop.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/insight-scraper/internal/retry"
	"github.com/insight-scraper/internal/scraper"
)

// BatchPass runs one pass over the tracked targets. Satisfied by
// *scraper.BatchRunner.
type BatchPass interface {
	Run(ctx context.Context) (*scraper.BatchReport, error)
}

// ScrapeWorker triggers a batch pass on every tick
type ScrapeWorker struct {
	batch        BatchPass
	pollInterval time.Duration
	retryConfig  *retry.Config
	running      bool
	mu           sync.RWMutex
	stopCh       chan struct{}
	doneCh       chan struct{}
	lastPollTime time.Time
	lastReport   *scraper.BatchReport
}

// ScrapeWorkerConfig holds configuration for a scrape worker
type ScrapeWorkerConfig struct {
	Batch        BatchPass
	PollInterval time.Duration // default: 15 minutes
	RetryConfig  *retry.Config // default: retry.DefaultConfig()
}

// NewScrapeWorker creates a new scrape worker
func NewScrapeWorker(cfg *ScrapeWorkerConfig) (*ScrapeWorker, error) {
	if cfg.Batch == nil {
		return nil, fmt.Errorf("batch runner cannot be nil")
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 15 * time.Minute
	}
	if pollInterval < time.Minute {
		return nil, fmt.Errorf("poll interval must be at least 1 minute, got %v", pollInterval)
	}

	retryConfig := cfg.RetryConfig
	if retryConfig == nil {
		retryConfig = retry.DefaultConfig()
	}

	return &ScrapeWorker{
		batch:        cfg.Batch,
		pollInterval: pollInterval,
		retryConfig:  retryConfig,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the polling loop. The first pass runs immediately rather
// than waiting out a full interval.
func (w *ScrapeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("scrape worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	log.Printf("[ScrapeWorker] Starting with poll interval %v", w.pollInterval)

	go w.pollLoop(ctx)

	return nil
}

// Stop gracefully stops the scrape worker
func (w *ScrapeWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("scrape worker is not running")
	}
	w.mu.Unlock()

	log.Printf("[ScrapeWorker] Stopping")

	close(w.stopCh)

	select {
	case <-w.doneCh:
		log.Printf("[ScrapeWorker] Stopped gracefully")
	case <-ctx.Done():
		log.Printf("[ScrapeWorker] Stop timed out")
		return ctx.Err()
	case <-time.After(30 * time.Second):
		log.Printf("[ScrapeWorker] Stop timed out after 30s")
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// pollLoop is the main polling loop that runs in a goroutine
func (w *ScrapeWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	w.runPass(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[ScrapeWorker] Context cancelled")
			return
		case <-w.stopCh:
			log.Printf("[ScrapeWorker] Stop signal received")
			return
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

// runPass runs one batch pass with backoff retries. A pass that still
// fails after the retry budget is logged and dropped; the next tick
// starts clean.
func (w *ScrapeWorker) runPass(ctx context.Context) {
	w.mu.Lock()
	w.lastPollTime = time.Now()
	w.mu.Unlock()

	var report *scraper.BatchReport
	err := retry.WithExponentialBackoff(ctx, w.retryConfig, func(ctx context.Context, attempt int) error {
		r, err := w.batch.Run(ctx)
		if err != nil {
			return err
		}
		report = r
		return nil
	})
	if err != nil {
		log.Printf("[ScrapeWorker] Batch pass failed: %v", err)
		return
	}

	w.mu.Lock()
	w.lastReport = report
	w.mu.Unlock()

	log.Printf("[ScrapeWorker] Batch pass complete: %d succeeded, %d skipped, %d failed of %d targets",
		report.Succeeded, report.Skipped, report.Failed, report.Targets)
}

// IsRunning reports whether the worker loop is active
func (w *ScrapeWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// Status returns the last poll time and report for health reporting
func (w *ScrapeWorker) Status() (time.Time, *scraper.BatchReport) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastPollTime, w.lastReport
}
