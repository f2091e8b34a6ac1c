package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/insight-scraper/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrAccountAlreadyOwned is returned when a register attempt collides
// with another scraper's active claim on the same account.
var ErrAccountAlreadyOwned = errors.New("account already owned by an active scraper")

// ScraperMappingRepository handles the ownership registry: which
// scraper instance currently holds which account.
type ScraperMappingRepository struct {
	db *PostgresDB
}

// NewScraperMappingRepository creates a new scraper mapping repository
func NewScraperMappingRepository(db *PostgresDB) *ScraperMappingRepository {
	return &ScraperMappingRepository{db: db}
}

// Register upserts the mapping for a scraper instance, claiming the
// account as active. The partial unique index on (account_id) WHERE
// status='active' rejects a second active claim on the same account;
// that collision surfaces as ErrAccountAlreadyOwned.
func (r *ScraperMappingRepository) Register(ctx context.Context, scraperID, accountID string) error {
	query := `
		INSERT INTO scraper_mapping (scraper_id, account_id, status, started_at, last_heartbeat)
		VALUES ($1, $2, 'active', NOW(), NOW())
		ON CONFLICT (scraper_id) DO UPDATE
		SET account_id = $2, status = 'active', started_at = NOW(), last_heartbeat = NOW()`

	_, err := r.db.Pool().Exec(ctx, query, scraperID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation, from the active-owner partial index
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("account %s: %w", accountID, ErrAccountAlreadyOwned)
		}
		return fmt.Errorf("failed to register scraper: %w", err)
	}
	return nil
}

// UpdateStatus releases or parks the mapping and touches the heartbeat
func (r *ScraperMappingRepository) UpdateStatus(ctx context.Context, scraperID, status string) error {
	query := `
		UPDATE scraper_mapping
		SET status = $2, last_heartbeat = NOW()
		WHERE scraper_id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, scraperID, status)
	if err != nil {
		return fmt.Errorf("failed to update scraper status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("scraper %s: %w", scraperID, ErrNotFound)
	}
	return nil
}

// ActiveCount returns the number of active scraper instances
func (r *ScraperMappingRepository) ActiveCount(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM scraper_mapping WHERE status = 'active'`

	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active scrapers: %w", err)
	}
	return count, nil
}

// Remove deletes a mapping. Optional cleanup; Register reuses rows by
// scraper id, so correctness does not depend on removal.
func (r *ScraperMappingRepository) Remove(ctx context.Context, scraperID string) error {
	query := `DELETE FROM scraper_mapping WHERE scraper_id = $1`

	if _, err := r.db.Pool().Exec(ctx, query, scraperID); err != nil {
		return fmt.Errorf("failed to remove scraper mapping: %w", err)
	}
	return nil
}

// GetByScraperID retrieves the mapping for a scraper instance
func (r *ScraperMappingRepository) GetByScraperID(ctx context.Context, scraperID string) (*models.ScraperMapping, error) {
	query := `
		SELECT scraper_id, account_id, status, started_at, last_heartbeat
		FROM scraper_mapping
		WHERE scraper_id = $1`

	var m models.ScraperMapping
	err := r.db.Pool().QueryRow(ctx, query, scraperID).Scan(
		&m.ScraperID,
		&m.AccountID,
		&m.Status,
		&m.StartedAt,
		&m.LastHeartbeat,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("scraper %s: %w", scraperID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get scraper mapping: %w", err)
	}
	return &m, nil
}

// List retrieves mappings ordered by most recent heartbeat
func (r *ScraperMappingRepository) List(ctx context.Context, limit int) ([]*models.ScraperMapping, error) {
	query := `
		SELECT scraper_id, account_id, status, started_at, last_heartbeat
		FROM scraper_mapping
		ORDER BY last_heartbeat DESC
		LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraper mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.ScraperMapping
	for rows.Next() {
		var m models.ScraperMapping
		if err := rows.Scan(&m.ScraperID, &m.AccountID, &m.Status, &m.StartedAt, &m.LastHeartbeat); err != nil {
			return nil, fmt.Errorf("failed to scan scraper mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scraper mappings: %w", err)
	}

	return mappings, nil
}
