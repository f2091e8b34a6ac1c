package scraper

import (
	"math"
	"time"

	"github.com/insight-scraper/internal/config"
)

// PenaltyPolicy decides what happens to an account after a failure:
// exponential cooldown with a hard cap, or a permanent burn once the
// failure count reaches the threshold.
type PenaltyPolicy struct {
	BaseMinutes   int
	MaxMinutes    int
	BurnThreshold int
}

// NewPenaltyPolicy builds a policy from the scraper configuration
func NewPenaltyPolicy(cfg *config.ScraperConfig) *PenaltyPolicy {
	return &PenaltyPolicy{
		BaseMinutes:   int(cfg.CooldownBase / time.Minute),
		MaxMinutes:    int(cfg.CooldownMax / time.Minute),
		BurnThreshold: cfg.MaxFailureCount,
	}
}

// DefaultPenaltyPolicy returns the stock policy: 60min base doubling
// per failure, capped at one week, burn at the third failure.
func DefaultPenaltyPolicy() *PenaltyPolicy {
	return &PenaltyPolicy{
		BaseMinutes:   60,
		MaxMinutes:    10080,
		BurnThreshold: 3,
	}
}

// CooldownMinutes returns min(base * 2^(failureCount-1), max).
// A failure count below 1 is treated as 1.
func (p *PenaltyPolicy) CooldownMinutes(failureCount int) int {
	if failureCount < 1 {
		failureCount = 1
	}

	cooldown := float64(p.BaseMinutes) * math.Pow(2, float64(failureCount-1))
	if cooldown > float64(p.MaxMinutes) || math.IsInf(cooldown, 1) {
		return p.MaxMinutes
	}
	return int(cooldown)
}

// ShouldBurn reports whether the post-increment failure count calls for
// a permanent burn rather than a cooldown.
func (p *PenaltyPolicy) ShouldBurn(failureCount int) bool {
	return failureCount >= p.BurnThreshold
}
