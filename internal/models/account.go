package models

import "time"

// Account status values stored in current_status. The column is
// informational; eligibility is derived from the flag and timestamp
// columns, never from this string.
const (
	AccountStatusIdle   = "idle"
	AccountStatusActive = "active"
	AccountStatusBurned = "burned"
)

// Account represents a scraping credential in the pool.
type Account struct {
	ID               string     `json:"id" db:"id"`
	Username         string     `json:"username" db:"username"`
	Email            string     `json:"email" db:"email"`
	IsActive         bool       `json:"isActive" db:"is_active"`
	IsBurned         bool       `json:"isBurned" db:"is_burned"`
	FailureCount     int        `json:"failureCount" db:"failure_count"`
	CooldownUntil    *time.Time `json:"cooldownUntil,omitempty" db:"cooldown_until"`
	RestUntil        *time.Time `json:"restUntil,omitempty" db:"rest_until"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty" db:"last_used_at"`
	CurrentStatus    string     `json:"currentStatus" db:"current_status"`
	ScraperStartedAt *time.Time `json:"scraperStartedAt,omitempty" db:"scraper_started_at"`
}

// Eligible reports whether the account passes every pool-membership
// predicate at the given instant. Ownership by an active scraper is
// checked at the store layer, not here.
func (a *Account) Eligible(now time.Time) bool {
	if !a.IsActive || a.IsBurned {
		return false
	}
	if a.CooldownUntil != nil && a.CooldownUntil.After(now) {
		return false
	}
	if a.RestUntil != nil && a.RestUntil.After(now) {
		return false
	}
	return true
}
