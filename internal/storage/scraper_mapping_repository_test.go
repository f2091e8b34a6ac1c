package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-scraper/internal/models"
)

func registerTestScraper(t *testing.T, db *PostgresDB, repo *ScraperMappingRepository, accountID string) string {
	t.Helper()
	ctx := testContext(t)

	scraperID := uuid.NewString()
	require.NoError(t, repo.Register(ctx, scraperID, accountID))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		repo.Remove(ctx, scraperID)
	})
	return scraperID
}

func TestRegisterAndGet(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)
	account := createTestAccount(t, db)

	scraperID := registerTestScraper(t, db, repo, account.ID)

	mapping, err := repo.GetByScraperID(ctx, scraperID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, mapping.AccountID)
	assert.Equal(t, models.ScraperStatusActive, mapping.Status)
}

func TestRegisterRejectsSecondActiveOwner(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)
	account := createTestAccount(t, db)

	registerTestScraper(t, db, repo, account.ID)

	other := uuid.NewString()
	err := repo.Register(ctx, other, account.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccountAlreadyOwned)
}

func TestRegisterAllowsClaimAfterRelease(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)
	account := createTestAccount(t, db)

	first := registerTestScraper(t, db, repo, account.ID)
	require.NoError(t, repo.UpdateStatus(ctx, first, models.ScraperStatusIdle))

	second := registerTestScraper(t, db, repo, account.ID)

	mapping, err := repo.GetByScraperID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.ScraperStatusActive, mapping.Status)
}

func TestRegisterUpsertsByScraperID(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)
	first := createTestAccount(t, db)
	second := createTestAccount(t, db)

	scraperID := registerTestScraper(t, db, repo, first.ID)
	require.NoError(t, repo.UpdateStatus(ctx, scraperID, models.ScraperStatusIdle))

	// Same scraper id claims a different account; the row is reused.
	require.NoError(t, repo.Register(ctx, scraperID, second.ID))

	mapping, err := repo.GetByScraperID(ctx, scraperID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, mapping.AccountID)
	assert.Equal(t, models.ScraperStatusActive, mapping.Status)
}

func TestActiveCountTracksStatusChanges(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)
	account := createTestAccount(t, db)

	before, err := repo.ActiveCount(ctx)
	require.NoError(t, err)

	scraperID := registerTestScraper(t, db, repo, account.ID)

	during, err := repo.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, during)

	require.NoError(t, repo.UpdateStatus(ctx, scraperID, models.ScraperStatusIdle))

	after, err := repo.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateStatusUnknownScraper(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewScraperMappingRepository(db)

	err := repo.UpdateStatus(ctx, uuid.NewString(), models.ScraperStatusIdle)
	assert.ErrorIs(t, err, ErrNotFound)
}
