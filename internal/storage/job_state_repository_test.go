package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insight-scraper/internal/models"
)

func TestJobCreateAndGet(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	job, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.Nil(t, job.LastCheckpoint)
	assert.WithinDuration(t, time.Now(), job.StartedAt, time.Minute)

	got, err := repo.GetByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.AccountID)
}

func TestJobCheckpointProgression(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	job, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)

	for _, marker := range []string{
		models.CheckpointProfileFetched,
		models.CheckpointMeFetched,
		models.CheckpointTweetsFetched,
	} {
		require.NoError(t, repo.Checkpoint(ctx, job.JobID, marker))
		got, err := repo.GetByID(ctx, job.JobID)
		require.NoError(t, err)
		require.NotNil(t, got.LastCheckpoint)
		assert.Equal(t, marker, *got.LastCheckpoint)
	}
}

func TestFindResumableByAccountAndType(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	job, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)

	// Found regardless of which scraper instance created it.
	found, err := repo.FindResumable(ctx, account.ID, "profile_scrape")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, job.JobID, found.JobID)

	// A different job type does not match.
	found, err = repo.FindResumable(ctx, account.ID, "other_type")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindResumableIncludesFailedExcludesCompleted(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	job, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)

	require.NoError(t, repo.Fail(ctx, job.JobID, "timeline fetch: rate limited"))
	found, err := repo.FindResumable(ctx, account.ID, "profile_scrape")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, models.JobStatusFailed, found.Status)
	require.NotNil(t, found.ErrorMessage)
	assert.Contains(t, *found.ErrorMessage, "rate limited")

	require.NoError(t, repo.Complete(ctx, job.JobID))
	found, err = repo.FindResumable(ctx, account.ID, "profile_scrape")
	require.NoError(t, err)
	assert.Nil(t, found, "completed jobs are not resumable")
}

func TestFindResumablePrefersMostRecentlyUpdated(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	older, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)
	newer, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)

	// Touching the newer job keeps it first in the resume ordering.
	require.NoError(t, repo.Checkpoint(ctx, newer.JobID, models.CheckpointProfileFetched))

	found, err := repo.FindResumable(ctx, account.ID, "profile_scrape")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, newer.JobID, found.JobID)
	assert.NotEqual(t, older.JobID, found.JobID)
}

func TestAdoptScraperRehomesJob(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	account := createTestAccount(t, db)

	job, err := repo.Create(ctx, uuid.NewString(), account.ID, "profile_scrape")
	require.NoError(t, err)
	require.NoError(t, repo.Fail(ctx, job.JobID, "login failed"))

	adopter := uuid.NewString()
	require.NoError(t, repo.AdoptScraper(ctx, job.JobID, adopter))

	got, err := repo.GetByID(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, adopter, got.ScraperID)
	assert.Equal(t, models.JobStatusRunning, got.Status)
}

func TestJobNotFoundErrors(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewJobStateRepository(db)
	missing := uuid.NewString()

	_, err := repo.GetByID(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Checkpoint(ctx, missing, models.CheckpointProfileFetched), ErrNotFound)
	assert.ErrorIs(t, repo.Complete(ctx, missing), ErrNotFound)
	assert.ErrorIs(t, repo.Fail(ctx, missing, "boom"), ErrNotFound)
	assert.ErrorIs(t, repo.AdoptScraper(ctx, missing, uuid.NewString()), ErrNotFound)
}
