package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/insight-scraper/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// AccountRepository handles account pool persistence and the atomic
// state transitions of the penalty lifecycle.
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, username, email, is_active, is_burned, failure_count,
	cooldown_until, rest_until, last_used_at, current_status, scraper_started_at`

// ClaimEligible selects one eligible account and marks it active in a
// single statement. Eligibility: active, not burned, past any cooldown
// and rest window, and not referenced by an active scraper mapping.
// Least-recently-used accounts are preferred, never-used first. The
// locking read with SKIP LOCKED makes concurrent claimers pick
// different rows; selecting and marking separately would race.
// Returns (nil, nil) when no account is eligible.
func (r *AccountRepository) ClaimEligible(ctx context.Context) (*models.Account, error) {
	query := `
		UPDATE accounts
		SET current_status = 'active', scraper_started_at = NOW(), last_used_at = NOW()
		WHERE id = (
			SELECT a.id
			FROM accounts a
			WHERE a.is_active = TRUE
			  AND a.is_burned = FALSE
			  AND (a.cooldown_until IS NULL OR a.cooldown_until < NOW())
			  AND (a.rest_until IS NULL OR a.rest_until < NOW())
			  AND NOT EXISTS (
				SELECT 1 FROM scraper_mapping m
				WHERE m.account_id = a.id AND m.status = 'active'
			  )
			ORDER BY a.last_used_at ASC NULLS FIRST, a.id
			LIMIT 1
			FOR UPDATE OF a SKIP LOCKED
		)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim eligible account: %w", err)
	}

	return account, nil
}

// MarkActive sets the account active and records the scrape start time
func (r *AccountRepository) MarkActive(ctx context.Context, accountID string) error {
	return r.setStatus(ctx, accountID, models.AccountStatusActive, true)
}

// MarkIdle returns the account to the idle pool
func (r *AccountRepository) MarkIdle(ctx context.Context, accountID string) error {
	return r.setStatus(ctx, accountID, models.AccountStatusIdle, false)
}

func (r *AccountRepository) setStatus(ctx context.Context, accountID, status string, touchStart bool) error {
	query := `UPDATE accounts SET current_status = $2 WHERE id = $1`
	if touchStart {
		query = `UPDATE accounts SET current_status = $2, scraper_started_at = NOW() WHERE id = $1`
	}

	tag, err := r.db.Pool().Exec(ctx, query, accountID, status)
	if err != nil {
		return fmt.Errorf("failed to set account status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// IncrementFailure atomically increments the failure counter and
// returns the post-increment value.
func (r *AccountRepository) IncrementFailure(ctx context.Context, accountID string) (int, error) {
	query := `
		UPDATE accounts
		SET failure_count = failure_count + 1
		WHERE id = $1
		RETURNING failure_count`

	var count int
	if err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to increment failure count: %w", err)
	}
	return count, nil
}

// SetCooldown puts the account into cooldown for the given number of minutes
func (r *AccountRepository) SetCooldown(ctx context.Context, accountID string, minutes int) error {
	query := `UPDATE accounts SET cooldown_until = NOW() + make_interval(mins => $2) WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, accountID, minutes)
	if err != nil {
		return fmt.Errorf("failed to set cooldown: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// ResetFailure zeroes the failure counter and clears any cooldown.
// Called only after a fully successful job.
func (r *AccountRepository) ResetFailure(ctx context.Context, accountID string) error {
	query := `UPDATE accounts SET failure_count = 0, cooldown_until = NULL WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to reset failure count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// Burn permanently excludes the account from the pool. There is no
// un-burn operation.
func (r *AccountRepository) Burn(ctx context.Context, accountID string) error {
	query := `
		UPDATE accounts
		SET is_burned = TRUE, current_status = 'burned', scraper_started_at = NULL
		WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to burn account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// SetRestUntil applies the mandatory post-success rest window
func (r *AccountRepository) SetRestUntil(ctx context.Context, accountID string, minutes int) error {
	query := `UPDATE accounts SET rest_until = NOW() + make_interval(mins => $2) WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query, accountID, minutes)
	if err != nil {
		return fmt.Errorf("failed to set rest window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return nil
}

// Create inserts a new account into the pool
func (r *AccountRepository) Create(ctx context.Context, username, email string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (username, email)
		VALUES ($1, $2)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, username, email))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Seed inserts accounts, skipping usernames already present
func (r *AccountRepository) Seed(ctx context.Context, accounts []models.Account) (int, error) {
	inserted := 0
	for _, a := range accounts {
		query := `
			INSERT INTO accounts (username, email)
			VALUES ($1, $2)
			ON CONFLICT (username) DO NOTHING`

		tag, err := r.db.Pool().Exec(ctx, query, a.Username, a.Email)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed account %s: %w", a.Username, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByID retrieves an account by id
func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.Pool().QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// List retrieves accounts ordered by last use, most recent first
func (r *AccountRepository) List(ctx context.Context, limit int) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY last_used_at DESC NULLS LAST, username
		LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.IsActive,
		&a.IsBurned,
		&a.FailureCount,
		&a.CooldownUntil,
		&a.RestUntil,
		&a.LastUsedAt,
		&a.CurrentStatus,
		&a.ScraperStartedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
