package models

import "time"

// FetchResult stores one completed scrape payload together with the
// account and transport metadata that produced it.
type FetchResult struct {
	ID         string    `json:"id" db:"id"`
	AccountID  string    `json:"accountId" db:"account_id"`
	FetchedAt  time.Time `json:"fetchedAt" db:"fetched_at"`
	DataRaw    string    `json:"dataRaw" db:"data_raw"`
	DataParsed *string   `json:"dataParsed,omitempty" db:"data_parsed"`
	ProxyUsed  bool      `json:"proxyUsed" db:"proxy_used"`
	DurationMs int       `json:"durationMs" db:"duration_ms"`
}
