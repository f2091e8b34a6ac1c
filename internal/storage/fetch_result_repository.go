package storage

import (
	"context"
	"fmt"

	"github.com/insight-scraper/internal/models"
)

// FetchResultRepository persists completed scrape payloads with their
// timing and transport metadata.
type FetchResultRepository struct {
	db *PostgresDB
}

// NewFetchResultRepository creates a new fetch result repository
func NewFetchResultRepository(db *PostgresDB) *FetchResultRepository {
	return &FetchResultRepository{db: db}
}

// Save inserts a fetch result and returns its generated id
func (r *FetchResultRepository) Save(ctx context.Context, result *models.FetchResult) (string, error) {
	query := `
		INSERT INTO fetch_results (account_id, fetched_at, data_raw, data_parsed, proxy_used, duration_ms)
		VALUES ($1, NOW(), $2, $3, $4, $5)
		RETURNING id`

	var id string
	err := r.db.Pool().QueryRow(ctx, query,
		result.AccountID,
		result.DataRaw,
		result.DataParsed,
		result.ProxyUsed,
		result.DurationMs,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to save fetch result: %w", err)
	}
	return id, nil
}

// ListByAccount retrieves results for an account, newest first
func (r *FetchResultRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.FetchResult, error) {
	query := `
		SELECT id, account_id, fetched_at, data_raw, data_parsed, proxy_used, duration_ms
		FROM fetch_results
		WHERE account_id = $1
		ORDER BY fetched_at DESC
		LIMIT $2`

	rows, err := r.db.Pool().Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fetch results: %w", err)
	}
	defer rows.Close()

	var results []*models.FetchResult
	for rows.Next() {
		var fr models.FetchResult
		err := rows.Scan(
			&fr.ID,
			&fr.AccountID,
			&fr.FetchedAt,
			&fr.DataRaw,
			&fr.DataParsed,
			&fr.ProxyUsed,
			&fr.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch result: %w", err)
		}
		results = append(results, &fr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch results: %w", err)
	}

	return results, nil
}
