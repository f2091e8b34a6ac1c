package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-scraper/internal/config"
	"github.com/insight-scraper/internal/models"
)

// setupRepoTest connects to the development database. Skipped in short
// mode and when Postgres is unavailable, like the connection tests.
func setupRepoTest(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("Skipping test - config not loadable: %v", err)
	}

	db, err := NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// createTestAccount inserts an account with a unique username and
// removes it (and its dependent rows) when the test finishes.
func createTestAccount(t *testing.T, db *PostgresDB) *models.Account {
	t.Helper()
	ctx := testContext(t)
	repo := NewAccountRepository(db)

	username := "it_" + uuid.NewString()[:8]
	account, err := repo.Create(ctx, username, username+"@example.com")
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Pool().Exec(ctx, `DELETE FROM fetch_results WHERE account_id = $1`, account.ID)
		db.Pool().Exec(ctx, `DELETE FROM scraper_job_state WHERE account_id = $1`, account.ID)
		db.Pool().Exec(ctx, `DELETE FROM scraper_mapping WHERE account_id = $1`, account.ID)
		db.Pool().Exec(ctx, `DELETE FROM accounts WHERE id = $1`, account.ID)
	})
	return account
}

func TestAccountCreateDefaults(t *testing.T) {
	db := setupRepoTest(t)
	account := createTestAccount(t, db)

	assert.True(t, account.IsActive)
	assert.False(t, account.IsBurned)
	assert.Zero(t, account.FailureCount)
	assert.Nil(t, account.CooldownUntil)
	assert.Nil(t, account.RestUntil)
	assert.True(t, account.Eligible(time.Now()))
}

func TestAccountPenaltyLifecycle(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)
	account := createTestAccount(t, db)

	count, err := repo.IncrementFailure(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.SetCooldown(ctx, account.ID, 60))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CooldownUntil)
	assert.True(t, got.CooldownUntil.After(time.Now().Add(55*time.Minute)))
	assert.False(t, got.Eligible(time.Now()), "cooldown must exclude the account")

	require.NoError(t, repo.ResetFailure(ctx, account.ID))
	got, err = repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailureCount)
	assert.Nil(t, got.CooldownUntil)
	assert.True(t, got.Eligible(time.Now()))
}

func TestAccountRestWindow(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)
	account := createTestAccount(t, db)

	require.NoError(t, repo.SetRestUntil(ctx, account.ID, 1))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RestUntil)
	assert.False(t, got.Eligible(time.Now()), "rest window must exclude the account")
}

func TestAccountBurnIsPermanentState(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)
	account := createTestAccount(t, db)

	require.NoError(t, repo.Burn(ctx, account.ID))

	got, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBurned)
	assert.Equal(t, models.AccountStatusBurned, got.CurrentStatus)
	assert.False(t, got.Eligible(time.Now()))
}

func TestAccountNotFoundErrors(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)
	missing := uuid.NewString()

	_, err := repo.GetByID(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.IncrementFailure(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Burn(ctx, missing), ErrNotFound)
	assert.ErrorIs(t, repo.SetCooldown(ctx, missing, 60), ErrNotFound)
}

func TestAccountSeedSkipsDuplicates(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)

	username := "it_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Pool().Exec(ctx, `DELETE FROM accounts WHERE username = $1`, username)
	})

	inserted, err := repo.Seed(ctx, []models.Account{
		{Username: username, Email: username + "@example.com"},
		{Username: username, Email: username + "@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
}

func TestClaimEligibleMarksClaimActive(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewAccountRepository(db)
	createTestAccount(t, db)

	claimed, err := repo.ClaimEligible(ctx)
	require.NoError(t, err)
	if claimed == nil {
		t.Skip("no eligible account in shared database")
	}
	defer repo.MarkIdle(ctx, claimed.ID)

	assert.Equal(t, models.AccountStatusActive, claimed.CurrentStatus)
	assert.False(t, claimed.IsBurned)
	require.NotNil(t, claimed.LastUsedAt)
	assert.WithinDuration(t, time.Now(), *claimed.LastUsedAt, time.Minute)
}

func TestClaimEligibleConcurrentClaimsAreDistinct(t *testing.T) {
	db := setupRepoTest(t)
	repo := NewAccountRepository(db)

	for i := 0; i < 4; i++ {
		createTestAccount(t, db)
	}

	const claimers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			account, err := repo.ClaimEligible(ctx)
			if err != nil || account == nil {
				return
			}
			mu.Lock()
			claimed = append(claimed, account.ID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range claimed {
		require.False(t, seen[id], fmt.Sprintf("account %s claimed twice", id))
		seen[id] = true
	}

	ctx := testContext(t)
	for _, id := range claimed {
		require.NoError(t, repo.MarkIdle(ctx, id))
	}
}
