package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/insight-scraper/internal/models"
	"github.com/jackc/pgx/v5"
)

// JobStateRepository handles the job ledger: checkpoint and status
// records per (account, job type). Rows are never deleted; the ledger
// doubles as the audit trail.
type JobStateRepository struct {
	db *PostgresDB
}

// NewJobStateRepository creates a new job state repository
func NewJobStateRepository(db *PostgresDB) *JobStateRepository {
	return &JobStateRepository{db: db}
}

const jobColumns = `job_id, scraper_id, account_id, job_type, last_checkpoint,
	status, error_message, started_at, updated_at`

// Create inserts a new running job with no checkpoint
func (r *JobStateRepository) Create(ctx context.Context, scraperID, accountID, jobType string) (*models.JobState, error) {
	query := `
		INSERT INTO scraper_job_state (scraper_id, account_id, job_type, status)
		VALUES ($1, $2, $3, 'running')
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, scraperID, accountID, jobType))
	if err != nil {
		return nil, fmt.Errorf("failed to create job state: %w", err)
	}
	return job, nil
}

// FindResumable returns the most recently updated running or failed job
// for (account, job type), or nil when there is none. Resumability is
// deliberately keyed without the scraper id: scraper ids are generated
// fresh per run, so a scraper-scoped lookup would never match across
// restarts.
func (r *JobStateRepository) FindResumable(ctx context.Context, accountID, jobType string) (*models.JobState, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scraper_job_state
		WHERE account_id = $1 AND job_type = $2 AND status IN ('running', 'failed')
		ORDER BY updated_at DESC
		LIMIT 1`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, accountID, jobType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find resumable job: %w", err)
	}
	return job, nil
}

// Checkpoint records a completed milestone
func (r *JobStateRepository) Checkpoint(ctx context.Context, jobID, marker string) error {
	query := `
		UPDATE scraper_job_state
		SET last_checkpoint = $2, updated_at = NOW()
		WHERE job_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, marker)
	if err != nil {
		return fmt.Errorf("failed to checkpoint job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// Complete finalizes the job as completed
func (r *JobStateRepository) Complete(ctx context.Context, jobID string) error {
	query := `
		UPDATE scraper_job_state
		SET status = 'completed', updated_at = NOW()
		WHERE job_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// Fail finalizes the job as failed with the captured error message
func (r *JobStateRepository) Fail(ctx context.Context, jobID, message string) error {
	query := `
		UPDATE scraper_job_state
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE job_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, message)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// AdoptScraper re-homes a resumed job to the scraper instance that
// picked it up, so the ledger reflects who is driving it now.
func (r *JobStateRepository) AdoptScraper(ctx context.Context, jobID, scraperID string) error {
	query := `
		UPDATE scraper_job_state
		SET scraper_id = $2, status = 'running', updated_at = NOW()
		WHERE job_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, jobID, scraperID)
	if err != nil {
		return fmt.Errorf("failed to adopt job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// GetByID retrieves a job by id
func (r *JobStateRepository) GetByID(ctx context.Context, jobID string) (*models.JobState, error) {
	query := `SELECT ` + jobColumns + ` FROM scraper_job_state WHERE job_id = $1`

	job, err := scanJob(r.db.Pool().QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}
	return job, nil
}

// ListRecent retrieves jobs ordered by most recent update
func (r *JobStateRepository) ListRecent(ctx context.Context, limit int) ([]*models.JobState, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM scraper_job_state
		ORDER BY updated_at DESC
		LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job states: %w", err)
	}
	defer rows.Close()

	var jobs []*models.JobState
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job state: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job states: %w", err)
	}

	return jobs, nil
}

func scanJob(row rowScanner) (*models.JobState, error) {
	var j models.JobState
	err := row.Scan(
		&j.JobID,
		&j.ScraperID,
		&j.AccountID,
		&j.JobType,
		&j.LastCheckpoint,
		&j.Status,
		&j.ErrorMessage,
		&j.StartedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
