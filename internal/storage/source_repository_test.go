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

func TestUpsertFromProfileAndListUsernames(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewSourceRepository(db)

	userID := "it_" + uuid.NewString()[:8]
	username := "it_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Pool().Exec(ctx, `DELETE FROM insight_sources WHERE id = $1`, userID)
	})

	profile := &models.Profile{
		UserID:         userID,
		Name:           "Target",
		Username:       username,
		FollowersCount: 10,
		IsVerified:     true,
	}
	require.NoError(t, repo.UpsertFromProfile(ctx, profile))

	usernames, err := repo.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Contains(t, usernames, username)

	// Re-upsert refreshes the row instead of failing.
	profile.FollowersCount = 20
	require.NoError(t, repo.UpsertFromProfile(ctx, profile))

	var followers int
	require.NoError(t, db.Pool().QueryRow(ctx,
		`SELECT followers_count FROM insight_sources WHERE id = $1`, userID).Scan(&followers))
	assert.Equal(t, 20, followers)
}

func TestUpsertFromProfileSkipsMissingUserID(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewSourceRepository(db)

	assert.NoError(t, repo.UpsertFromProfile(ctx, nil))
	assert.NoError(t, repo.UpsertFromProfile(ctx, &models.Profile{Username: "nobody"}))
}

func TestInsertTweetsSkipsDuplicates(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewSourceRepository(db)

	tweetID := "it_" + uuid.NewString()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db.Pool().Exec(ctx, `DELETE FROM insight_source_tweets WHERE tweet_id = $1`, tweetID)
	})

	tweets := []models.Tweet{{
		TweetID:   tweetID,
		Text:      "hello",
		URL:       "https://example.com/" + tweetID,
		AuthorID:  "author-1",
		Photos:    []models.Media{{ID: "m1", URL: "https://example.com/m1.jpg"}},
		CreatedAt: time.Now().UTC(),
	}}

	inserted, err := repo.InsertTweets(ctx, tweets)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	inserted, err = repo.InsertTweets(ctx, tweets)
	require.NoError(t, err)
	assert.Zero(t, inserted, "duplicate tweet ids are skipped")
}

func TestFetchResultSaveAndList(t *testing.T) {
	db := setupRepoTest(t)
	ctx := testContext(t)
	repo := NewFetchResultRepository(db)
	account := createTestAccount(t, db)

	parsed := `{"target":"alpha"}`
	id, err := repo.Save(ctx, &models.FetchResult{
		AccountID:  account.ID,
		DataRaw:    parsed,
		DataParsed: &parsed,
		ProxyUsed:  true,
		DurationMs: 1200,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	results, err := repo.ListByAccount(ctx, account.ID, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.True(t, results[0].ProxyUsed)
	assert.Equal(t, 1200, results[0].DurationMs)
}
