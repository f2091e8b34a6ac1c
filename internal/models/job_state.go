package models

import "time"

// Job status values.
const (
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Checkpoint markers written in milestone order during a scrape job.
const (
	CheckpointProfileFetched = "profile_fetched"
	CheckpointMeFetched      = "me_fetched"
	CheckpointTweetsFetched  = "tweets_fetched"
)

// JobState is one row of the job ledger: the durable audit trail and
// resumability anchor for a (account, job type) pair. Rows are never
// deleted.
type JobState struct {
	JobID          string    `json:"jobId" db:"job_id"`
	ScraperID      string    `json:"scraperId" db:"scraper_id"`
	AccountID      string    `json:"accountId" db:"account_id"`
	JobType        string    `json:"jobType" db:"job_type"`
	LastCheckpoint *string   `json:"lastCheckpoint,omitempty" db:"last_checkpoint"`
	Status         string    `json:"status" db:"status"`
	ErrorMessage   *string   `json:"errorMessage,omitempty" db:"error_message"`
	StartedAt      time.Time `json:"startedAt" db:"started_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// CheckpointRank maps a milestone marker to its position in the job's
// milestone order. Unknown markers rank as -1 so a corrupt checkpoint
// falls back to a full re-run rather than skipping work.
func CheckpointRank(marker string) int {
	switch marker {
	case CheckpointProfileFetched:
		return 0
	case CheckpointMeFetched:
		return 1
	case CheckpointTweetsFetched:
		return 2
	default:
		return -1
	}
}
