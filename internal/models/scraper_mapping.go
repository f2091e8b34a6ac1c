package models

import "time"

// Scraper mapping status values.
const (
	ScraperStatusActive   = "active"
	ScraperStatusIdle     = "idle"
	ScraperStatusCooldown = "cooldown"
)

// ScraperMapping records which account a scraper instance currently
// holds. At most one mapping may reference a given account with
// status=active; the store enforces this with a partial unique index.
type ScraperMapping struct {
	ScraperID     string    `json:"scraperId" db:"scraper_id"`
	AccountID     string    `json:"accountId" db:"account_id"`
	Status        string    `json:"status" db:"status"`
	StartedAt     time.Time `json:"startedAt" db:"started_at"`
	LastHeartbeat time.Time `json:"lastHeartbeat" db:"last_heartbeat"`
}
